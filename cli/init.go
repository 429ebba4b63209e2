package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/manifoldco/promptui"
	ini "gopkg.in/ini.v1"

	"github.com/finbot/finbench/core"
)

// InitCommand is an interactive wizard that generates a config file plus the
// .env.test file the test suite reads its database URL from.
type InitCommand struct {
	Output   string `long:"output" short:"o" description:"Output file path" default:"./finbench.ini"`
	EnvFile  string `long:"env-file" description:"Env file for the test suite" default:"./.env.test"`
	LogLevel string `long:"log-level" env:"FINBENCH_LOG_LEVEL" description:"Set log level"`
	Logger   core.Logger
}

var stageNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// initAnswers holds the wizard's answers.
type initAnswers struct {
	TestImage   string
	BuildImage  bool
	Context     string
	Smoke       string
	DBImage     string
	DBName      string
	DBUser      string
	DBPassword  string
	HostPort    string
	Command     string
	MinCoverage string
	Network     string
}

// Execute runs the interactive configuration wizard
func (c *InitCommand) Execute(_ []string) error {
	ApplyLogLevel(c.LogLevel)

	c.Logger.Noticef("Welcome to finbench setup")
	c.Logger.Noticef("This wizard creates a config file and the matching .env.test")

	if _, err := os.Stat(c.Output); err == nil {
		if !c.confirmOverwrite() {
			c.Logger.Noticef("Setup canceled")
			return nil
		}
	}

	a := &initAnswers{}
	if err := c.prompt(a); err != nil {
		return fmt.Errorf("gather configuration: %w", err)
	}

	if err := c.saveConfig(a); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	if err := c.saveEnvFile(a); err != nil {
		return fmt.Errorf("save env file: %w", err)
	}

	c.Logger.Noticef("Configuration saved to: %s", c.Output)
	c.Logger.Noticef("Env file saved to: %s", c.EnvFile)
	c.printNextSteps()
	return nil
}

func (c *InitCommand) confirmOverwrite() bool {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("File %s already exists. Overwrite", c.Output),
		IsConfirm: true,
		Default:   "n",
	}
	_, err := prompt.Run()
	return err == nil
}

func (c *InitCommand) prompt(a *initAnswers) error {
	var err error

	imagePrompt := promptui.Prompt{
		Label:   "Test image name",
		Default: "finance-bot-test:latest",
		Validate: func(input string) error {
			if input == "" {
				return fmt.Errorf("image cannot be empty")
			}
			return nil
		},
	}
	if a.TestImage, err = imagePrompt.Run(); err != nil {
		return err
	}

	buildPrompt := promptui.Prompt{
		Label:     "Build the test image from a Dockerfile",
		IsConfirm: true,
		Default:   "Y",
	}
	_, err = buildPrompt.Run()
	a.BuildImage = err == nil

	if a.BuildImage {
		contextPrompt := promptui.Prompt{Label: "Build context", Default: "."}
		if a.Context, err = contextPrompt.Run(); err != nil {
			return err
		}
		smokePrompt := promptui.Prompt{
			Label:   "Smoke command run after the build (empty to skip)",
			Default: `python -c "import app"`,
		}
		if a.Smoke, err = smokePrompt.Run(); err != nil {
			return err
		}
	}

	dbImagePrompt := promptui.Select{
		Label: "PostgreSQL image",
		Items: []string{"postgres:15", "postgres:16", "postgres:17"},
	}
	if _, a.DBImage, err = dbImagePrompt.Run(); err != nil {
		return err
	}

	dbNamePrompt := promptui.Prompt{
		Label:   "Test database name",
		Default: "test_finance_bot",
		Validate: func(input string) error {
			if !stageNameRe.MatchString(input) {
				return fmt.Errorf("database name must be alphanumeric with hyphens or underscores only")
			}
			return nil
		},
	}
	if a.DBName, err = dbNamePrompt.Run(); err != nil {
		return err
	}

	userPrompt := promptui.Prompt{Label: "Database user", Default: "postgres"}
	if a.DBUser, err = userPrompt.Run(); err != nil {
		return err
	}
	passPrompt := promptui.Prompt{Label: "Database password", Default: "postgres", Mask: '*'}
	if a.DBPassword, err = passPrompt.Run(); err != nil {
		return err
	}

	portPrompt := promptui.Prompt{
		Label:   "Host port for the database",
		Default: "5433",
		Validate: func(input string) error {
			p, err := strconv.Atoi(input)
			if err != nil || p < 1 || p > 65535 {
				return fmt.Errorf("port must be a number between 1 and 65535")
			}
			return nil
		},
	}
	if a.HostPort, err = portPrompt.Run(); err != nil {
		return err
	}

	commandPrompt := promptui.Prompt{
		Label:   "Test command",
		Default: "pytest tests/ -v --tb=short --maxfail=5",
	}
	if a.Command, err = commandPrompt.Run(); err != nil {
		return err
	}

	coveragePrompt := promptui.Prompt{
		Label:   "Minimum coverage percentage (0 disables the gate)",
		Default: "80",
		Validate: func(input string) error {
			p, err := strconv.ParseFloat(input, 64)
			if err != nil || p < 0 || p > 100 {
				return fmt.Errorf("coverage must be a number between 0 and 100")
			}
			return nil
		},
	}
	if a.MinCoverage, err = coveragePrompt.Run(); err != nil {
		return err
	}

	networkPrompt := promptui.Prompt{Label: "Docker network", Default: "finance-bot-test"}
	if a.Network, err = networkPrompt.Run(); err != nil {
		return err
	}

	return nil
}

// saveConfig writes the configuration to an INI file
func (c *InitCommand) saveConfig(a *initAnswers) error {
	dir := filepath.Dir(c.Output)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	cfg := ini.Empty()

	global := cfg.Section("global")
	global.Key("log-level").SetValue("info")

	db := cfg.Section("database")
	db.Key("url").SetValue(fmt.Sprintf("postgresql://%s:%s@localhost:%s/%s",
		a.DBUser, a.DBPassword, a.HostPort, a.DBName))

	if a.BuildImage {
		build := cfg.Section(`build "test-image"`)
		build.Key("image").SetValue(a.TestImage)
		build.Key("context").SetValue(a.Context)
		if a.Smoke != "" {
			build.Key("smoke").SetValue(a.Smoke)
		}
	}

	service := cfg.Section(`service "finance-bot-db"`)
	service.Key("image").SetValue(a.DBImage)
	service.Key("container-name").SetValue("finance-bot-db")
	service.Key("ports").SetValue(a.HostPort + ":5432")
	service.Key("network").SetValue(a.Network)
	service.Key("environment").SetValue("POSTGRES_USER=" + a.DBUser)
	service.Key("environment").AddShadow("POSTGRES_PASSWORD=" + a.DBPassword)
	service.Key("environment").AddShadow("POSTGRES_DB=" + a.DBName)
	service.Key("healthcheck-test").SetValue(fmt.Sprintf("pg_isready -U %s -d %s", a.DBUser, a.DBName))
	service.Key("healthcheck-interval").SetValue("5s")
	service.Key("healthcheck-timeout").SetValue("5s")
	service.Key("healthcheck-retries").SetValue("5")
	service.Key("healthcheck-start-period").SetValue("10s")

	task := cfg.Section(`task "tests"`)
	task.Key("image").SetValue(a.TestImage)
	task.Key("network").SetValue(a.Network)
	task.Key("command").SetValue(a.Command)
	task.Key("environment").SetValue(fmt.Sprintf(
		"TEST_DATABASE_URL=postgresql://%s:%s@finance-bot-db:5432/%s",
		a.DBUser, a.DBPassword, a.DBName))
	task.Key("environment").AddShadow("PYTHONPATH=/app")
	if a.MinCoverage != "0" {
		task.Key("min-coverage").SetValue(a.MinCoverage)
	}

	if err := cfg.SaveTo(c.Output); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// saveEnvFile writes .env.test with the host-side database URL so the test
// suite run outside Docker reaches the mapped port.
func (c *InitCommand) saveEnvFile(a *initAnswers) error {
	content := fmt.Sprintf("TEST_DATABASE_URL=postgresql://%s:%s@localhost:%s/%s\n",
		a.DBUser, a.DBPassword, a.HostPort, a.DBName)
	return os.WriteFile(c.EnvFile, []byte(content), 0o600)
}

func (c *InitCommand) printNextSteps() {
	c.Logger.Noticef("Setup complete. Next steps:")
	c.Logger.Noticef("  review the configuration: cat %s", c.Output)
	c.Logger.Noticef("  validate it:              finbench validate --config=%s", c.Output)
	c.Logger.Noticef("  run the pipeline:         finbench run --config=%s", c.Output)
}
