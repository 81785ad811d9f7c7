package customer

import (
	"fmt"
	"strings"

	"leadflow/internal/services"
)

// Level is the coarse intent classification derived from the intent score.
type Level string

const (
	LevelS Level = "S"
	LevelA Level = "A"
	LevelB Level = "B"
	LevelC Level = "C"
)

// Rank orders levels so that higher intent compares greater; unknown levels rank below C.
func (l Level) Rank() int {
	switch l {
	case LevelS:
		return 3
	case LevelA:
		return 2
	case LevelB:
		return 1
	case LevelC:
		return 0
	default:
		return -1
	}
}

// Above reports whether l is a strictly higher level than other.
func (l Level) Above(other Level) bool {
	return l.Rank() > other.Rank()
}

func (l Level) String() string {
	return string(l)
}

// ParseLevel validates a level name.
func ParseLevel(value string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(value)))
	if level.Rank() < 0 {
		return "", services.Invalid("customer", "parse level", fmt.Sprintf("unknown level %q", value))
	}
	return level, nil
}
