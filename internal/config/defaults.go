package config

const (
	defaultConfigPath      = "~/.config/leadflow/config.toml"
	defaultDataDir         = "~/.local/share/leadflow"
	defaultLogDir          = "~/.local/share/leadflow/logs"
	defaultPriorityMin     = 1
	defaultPriorityMax     = 10
	defaultPriority        = 5
	defaultRetryLimit      = 3
	defaultClaimTimeout    = 300
	defaultReclaimInterval = 30
	defaultPollInterval    = 2
	defaultRulesVersion    = "builtin-1"
	defaultThresholdS      = 80
	defaultThresholdA      = 60
	defaultThresholdB      = 30
	defaultSink            = "log"
	defaultAudience        = "sales"
	defaultKafkaTopic      = "leadflow-notifications"
	defaultRequestTimeout  = 10
	defaultRelayInterval   = 5
	defaultRelayRate       = 5.0
	defaultRelayBatch      = 50
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// DefaultSignals returns the builtin signal rule table.
func DefaultSignals() map[string]int {
	return map[string]int{
		"ask_price":             25,
		"provide_cargo_info":    20,
		"ask_transit_time":      15,
		"multiple_interactions": 30,
		"leave_contact":         50,
		"express_interest":      40,
		"just_asking":           -10,
	}
}

func defaultLevelPriority() map[string]int {
	return map[string]int{
		"S": 1,
		"A": 2,
		"B": 5,
		"C": 8,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Dispatch: Dispatch{
			PriorityMin:       defaultPriorityMin,
			PriorityMax:       defaultPriorityMax,
			DefaultPriority:   defaultPriority,
			DefaultRetryLimit: defaultRetryLimit,
			LevelPriority:     defaultLevelPriority(),
			ClaimTimeout:      defaultClaimTimeout,
			ReclaimInterval:   defaultReclaimInterval,
			PollInterval:      defaultPollInterval,
		},
		Scoring: Scoring{
			Version: defaultRulesVersion,
			Signals: DefaultSignals(),
			Thresholds: Thresholds{
				S: defaultThresholdS,
				A: defaultThresholdA,
				B: defaultThresholdB,
			},
		},
		Notifications: Notifications{
			Sink:           defaultSink,
			NotifyKinds:    []string{"draft_copy", "generate_video", "lead_report"},
			Audience:       defaultAudience,
			KafkaTopic:     defaultKafkaTopic,
			RequestTimeout: defaultRequestTimeout,
			RelayInterval:  defaultRelayInterval,
			RelayRate:      defaultRelayRate,
			RelayBatch:     defaultRelayBatch,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
