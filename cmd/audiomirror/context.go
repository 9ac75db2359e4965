package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"audiomirror/internal/config"
	"audiomirror/internal/logging"
	"audiomirror/internal/pathmatch"
	"audiomirror/internal/reconcile"
)

type commandContext struct {
	configFlag *string
	logLevel   *string
	logFormat  *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevel, logFormat *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logLevel:   logLevel,
		logFormat:  logFormat,
	}
}

// ensureConfig loads configuration once. Overrides only take effect on the
// first call; commands that accept overriding flags skip the root pre-run
// load and call this themselves.
func (c *commandContext) ensureConfig(overrides ...config.Override) (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		all := append([]config.Override{c.loggingOverride()}, overrides...)
		cfg, resolved, _, err := config.Load(path, all...)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) loggingOverride() config.Override {
	return func(cfg *config.Config) {
		if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
			cfg.Logging.Level = *c.logLevel
		}
		if c.logFormat != nil && strings.TrimSpace(*c.logFormat) != "" {
			cfg.Logging.Format = *c.logFormat
		}
	}
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// transcodeTag is the processing tag new transcodes are recorded under.
func transcodeTag(cfg *config.Config) string {
	return reconcile.SettingsFromConfig(cfg).ConfigTag(pathmatch.Transcode)
}
