package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// SQLite primary result codes for lock contention. Extended codes carry the
// primary code in the low byte.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// backoff retries an operation while SQLite reports contention from another
// connection, doubling the pause up to ceiling.
type backoff struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
}

var busyBackoff = backoff{attempts: 5, first: 10 * time.Millisecond, ceiling: 200 * time.Millisecond}

func (b backoff) run(ctx context.Context, op func() error) error {
	pause := b.first
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !isBusy(err) || attempt >= b.attempts {
			return err
		}
		timer := time.NewTimer(pause)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		pause = min(pause*2, b.ceiling)
	}
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
