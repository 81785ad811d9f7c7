package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDispatch() error {
	d := c.Dispatch
	if d.PriorityMin < 1 {
		return errors.New("dispatch.priority_min must be at least 1")
	}
	if d.PriorityMax < d.PriorityMin {
		return errors.New("dispatch.priority_max must be greater than or equal to dispatch.priority_min")
	}
	if d.DefaultPriority < d.PriorityMin || d.DefaultPriority > d.PriorityMax {
		return fmt.Errorf("dispatch.default_priority must be between %d and %d", d.PriorityMin, d.PriorityMax)
	}
	if d.DefaultRetryLimit < 0 {
		return errors.New("dispatch.default_retry_limit must be non-negative")
	}
	for level, priority := range d.LevelPriority {
		switch level {
		case "S", "A", "B", "C":
		default:
			return fmt.Errorf("dispatch.level_priority: unknown level %q", level)
		}
		if priority < d.PriorityMin || priority > d.PriorityMax {
			return fmt.Errorf("dispatch.level_priority.%s must be between %d and %d", level, d.PriorityMin, d.PriorityMax)
		}
	}
	if d.ClaimTimeout <= 0 {
		return errors.New("dispatch.claim_timeout must be positive")
	}
	return nil
}

func (c *Config) validateScoring() error {
	t := c.Scoring.Thresholds
	if !(t.S > t.A && t.A > t.B) {
		return fmt.Errorf("scoring.thresholds must be strictly descending (s=%d a=%d b=%d)", t.S, t.A, t.B)
	}
	if len(c.Scoring.Signals) == 0 {
		return errors.New("scoring.signals must define at least one signal")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	switch n.Sink {
	case "log":
	case "ntfy":
		if n.NtfyTopic == "" {
			return errors.New("notifications.ntfy_topic is required when sink is ntfy (or set LEADFLOW_NTFY_TOPIC)")
		}
	case "kafka":
		if len(n.KafkaBrokers) == 0 {
			return errors.New("notifications.kafka_brokers is required when sink is kafka (or set LEADFLOW_KAFKA_BROKERS)")
		}
	default:
		return fmt.Errorf("notifications.sink: unsupported value %q", n.Sink)
	}
	return nil
}
