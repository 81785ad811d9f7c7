package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDispatch()
	if err := c.normalizeScoring(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDispatch() {
	if c.Dispatch.LevelPriority == nil {
		c.Dispatch.LevelPriority = defaultLevelPriority()
	} else {
		normalized := make(map[string]int, len(c.Dispatch.LevelPriority))
		for level, priority := range c.Dispatch.LevelPriority {
			normalized[strings.ToUpper(strings.TrimSpace(level))] = priority
		}
		c.Dispatch.LevelPriority = normalized
	}
	if c.Dispatch.PollInterval <= 0 {
		c.Dispatch.PollInterval = defaultPollInterval
	}
	if c.Dispatch.ReclaimInterval <= 0 {
		c.Dispatch.ReclaimInterval = defaultReclaimInterval
	}
}

func (c *Config) normalizeScoring() error {
	c.Scoring.Version = strings.TrimSpace(c.Scoring.Version)
	c.Scoring.RulesFile = strings.TrimSpace(c.Scoring.RulesFile)
	if c.Scoring.RulesFile != "" {
		var err error
		if c.Scoring.RulesFile, err = ExpandPath(c.Scoring.RulesFile); err != nil {
			return fmt.Errorf("scoring.rules_file: %w", err)
		}
		doc, err := loadRulesFile(c.Scoring.RulesFile)
		if err != nil {
			return err
		}
		doc.apply(&c.Scoring)
	}
	if c.Scoring.Signals == nil {
		c.Scoring.Signals = DefaultSignals()
	}
	normalized := make(map[string]int, len(c.Scoring.Signals))
	for key, delta := range c.Scoring.Signals {
		normalized[strings.ToLower(strings.TrimSpace(key))] = delta
	}
	c.Scoring.Signals = normalized
	if c.Scoring.Version == "" {
		c.Scoring.Version = defaultRulesVersion
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.Sink = strings.ToLower(strings.TrimSpace(c.Notifications.Sink))
	if c.Notifications.Sink == "" {
		c.Notifications.Sink = defaultSink
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("LEADFLOW_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if len(c.Notifications.KafkaBrokers) == 0 {
		if value, ok := os.LookupEnv("LEADFLOW_KAFKA_BROKERS"); ok {
			c.Notifications.KafkaBrokers = splitList(value)
		}
	}
	c.Notifications.KafkaTopic = strings.TrimSpace(c.Notifications.KafkaTopic)
	if c.Notifications.KafkaTopic == "" {
		c.Notifications.KafkaTopic = defaultKafkaTopic
	}
	c.Notifications.Audience = strings.TrimSpace(c.Notifications.Audience)
	if c.Notifications.Audience == "" {
		c.Notifications.Audience = defaultAudience
	}
	kinds := make([]string, 0, len(c.Notifications.NotifyKinds))
	seen := make(map[string]struct{}, len(c.Notifications.NotifyKinds))
	for _, kind := range c.Notifications.NotifyKinds {
		normalized := strings.ToLower(strings.TrimSpace(kind))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		kinds = append(kinds, normalized)
	}
	c.Notifications.NotifyKinds = kinds
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
	if c.Notifications.RelayInterval <= 0 {
		c.Notifications.RelayInterval = defaultRelayInterval
	}
	if c.Notifications.RelayRate <= 0 {
		c.Notifications.RelayRate = defaultRelayRate
	}
	if c.Notifications.RelayBatch <= 0 {
		c.Notifications.RelayBatch = defaultRelayBatch
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
