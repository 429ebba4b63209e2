package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	docker "github.com/fsouza/go-dockerclient"

	"github.com/finbot/finbench/core"
)

// RunCommand runs the pipeline once and exits with the test runner's exit
// code, so CI can consume the process status directly.
type RunCommand struct {
	ConfigFile string `long:"config" env:"FINBENCH_CONFIG" description:"configuration file" default:"./finbench.ini"`
	LogLevel   string `long:"log-level" env:"FINBENCH_LOG_LEVEL" description:"Set log level (overrides config)"`
	Logger     core.Logger

	// exit hook, replaceable in tests
	exit func(int)
}

// Execute runs the pipeline once.
func (c *RunCommand) Execute(_ []string) error {
	ApplyLogLevel(c.LogLevel)

	config, err := loadConfig(c.ConfigFile, c.Logger)
	if err != nil {
		return err
	}
	if c.LogLevel == "" {
		ApplyLogLevel(config.Global.LogLevel)
	}

	client, err := docker.NewClientFromEnv()
	if err != nil {
		return err
	}

	p, err := config.InitializePipeline(client)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := p.Run(ctx)
	if res.Failed {
		c.Logger.Errorf("Pipeline %q failed after %s: %v", res.Pipeline, res.Duration, res.Err)
	} else {
		c.Logger.Noticef("Pipeline %q passed in %s", res.Pipeline, res.Duration)
	}

	if c.exit == nil {
		c.exit = os.Exit
	}
	c.exit(res.ExitCode)
	return nil
}

// loadConfig reads the config file, falling back to the built-in Finance Bot
// topology when the file does not exist.
func loadConfig(filename string, logger core.Logger) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		logger.Noticef("No config file at %q, using the built-in topology", filename)
		return DefaultConfig(logger)
	}
	return BuildFromFile(filename, logger)
}
