package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/config"
	"leadflow/internal/logging"
)

// globalFlags are the persistent flags every subcommand sees.
type globalFlags struct {
	config string
	json   bool
}

// commandContext is shared by all subcommands of one invocation. The
// configuration is loaded at most once, on first use.
type commandContext struct {
	flags      *globalFlags
	configPath string
	load       func() (*config.Config, error)
}

func newCommandContext(flags *globalFlags) *commandContext {
	c := &commandContext{flags: flags}
	c.load = sync.OnceValues(func() (*config.Config, error) {
		cfg, resolved, _, err := config.Load(strings.TrimSpace(flags.config))
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		c.configPath = resolved
		return cfg, nil
	})
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.load()
}

func (c *commandContext) jsonOutput() bool {
	return c.flags.json
}

// withApp opens the services for one command. CLI logging is limited to
// warnings on stderr so command output stays readable.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(*app.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:  "warn",
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// skipConfigAnnotation marks commands that must run without a loadable
// configuration, such as config init.
const skipConfigAnnotation = "skipConfigLoad"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
