package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Dispatch contains task queue limits and liveness timings.
type Dispatch struct {
	PriorityMin       int            `toml:"priority_min"`
	PriorityMax       int            `toml:"priority_max"`
	DefaultPriority   int            `toml:"default_priority"`
	DefaultRetryLimit int            `toml:"default_retry_limit"`
	LevelPriority     map[string]int `toml:"level_priority"`
	// ClaimTimeout is the number of seconds a processing task may go without a
	// heartbeat before the reclaimer treats the claim as stale.
	ClaimTimeout    int `toml:"claim_timeout"`
	ReclaimInterval int `toml:"reclaim_interval"`
	PollInterval    int `toml:"poll_interval"`
}

// Thresholds holds the minimum score for each intent level above C.
type Thresholds struct {
	S int `toml:"s" yaml:"s"`
	A int `toml:"a" yaml:"a"`
	B int `toml:"b" yaml:"b"`
}

// Scoring contains the signal rule table. When RulesFile is set the YAML
// document it points to replaces Signals (and Thresholds when present).
type Scoring struct {
	Version    string         `toml:"version"`
	Signals    map[string]int `toml:"signals"`
	Thresholds Thresholds     `toml:"thresholds"`
	RulesFile  string         `toml:"rules_file"`
}

// Notifications contains trigger filters and delivery sink settings.
type Notifications struct {
	Sink           string   `toml:"sink"`
	NotifyKinds    []string `toml:"notify_kinds"`
	Audience       string   `toml:"audience"`
	NtfyTopic      string   `toml:"ntfy_topic"`
	RequestTimeout int      `toml:"request_timeout"`
	KafkaBrokers   []string `toml:"kafka_brokers"`
	KafkaTopic     string   `toml:"kafka_topic"`
	RelayInterval  int      `toml:"relay_interval"`
	RelayRate      float64  `toml:"relay_rate"`
	RelayBatch     int      `toml:"relay_batch"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for leadflow.
//
// Configuration sections by subsystem:
//   - Paths: database and log directories
//   - Dispatch: priority range, retry defaults, claim liveness
//   - Scoring: signal deltas and level thresholds
//   - Notifications: notify-worthy task kinds and delivery sink
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Scoring       Scoring       `toml:"scoring"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// Load reads the configuration at path, or the first existing default location
// when path is empty, then normalizes and validates it. A missing file is not
// an error: defaults are used and exists reports false.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	resolved, exists, err = locate(path)
	if err != nil {
		return nil, "", false, err
	}
	loaded := Default()
	if exists {
		if err := decodeFile(resolved, &loaded); err != nil {
			return nil, "", false, err
		}
	}
	if err := loaded.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, "", false, err
	}
	return &loaded, resolved, exists, nil
}

func decodeFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(into); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ClaimTimeout returns the stale-claim liveness deadline.
func (c *Config) ClaimTimeout() time.Duration { return seconds(c.Dispatch.ClaimTimeout) }

// ReclaimInterval returns how often the daemon sweeps for stale claims.
func (c *Config) ReclaimInterval() time.Duration { return seconds(c.Dispatch.ReclaimInterval) }

// PollInterval returns how long idle workers wait before polling the queue again.
func (c *Config) PollInterval() time.Duration { return seconds(c.Dispatch.PollInterval) }

// RelayInterval returns how often the notification relay drains the outbox.
func (c *Config) RelayInterval() time.Duration { return seconds(c.Notifications.RelayInterval) }

// RequestTimeout bounds a single external sink request.
func (c *Config) RequestTimeout() time.Duration { return seconds(c.Notifications.RequestTimeout) }
