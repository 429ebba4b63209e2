package cli

import (
	"encoding/json"
	"fmt"

	defaults "github.com/creasty/defaults"

	"github.com/finbot/finbench/core"
)

// ValidateCommand validates the config file
type ValidateCommand struct {
	ConfigFile string `long:"config" env:"FINBENCH_CONFIG" description:"configuration file" default:"./finbench.ini"`
	LogLevel   string `long:"log-level" env:"FINBENCH_LOG_LEVEL" description:"Set log level (overrides config)"`
	Logger     core.Logger
}

// Execute runs the validation command
func (c *ValidateCommand) Execute(_ []string) error {
	ApplyLogLevel(c.LogLevel)
	c.Logger.Debugf("Validating %q ... ", c.ConfigFile)

	conf, err := BuildFromFile(c.ConfigFile, c.Logger)
	if err != nil {
		c.Logger.Errorf("ERROR")
		return err
	}
	if c.LogLevel == "" {
		ApplyLogLevel(conf.Global.LogLevel)
	}

	applyConfigDefaults(conf)
	if err := conf.Validate(); err != nil {
		return err
	}

	out, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	c.Logger.Debugf("OK")
	return nil
}

func applyConfigDefaults(conf *Config) {
	for _, s := range conf.Builds {
		_ = defaults.Set(s)
	}
	for _, s := range conf.Services {
		_ = defaults.Set(s)
	}
	for _, s := range conf.Tasks {
		_ = defaults.Set(s)
	}
	for _, s := range conf.Execs {
		_ = defaults.Set(s)
	}
	for _, s := range conf.Locals {
		_ = defaults.Set(s)
	}
}
