package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	ini "gopkg.in/ini.v1"

	"github.com/finbot/finbench/cli"
	"github.com/finbot/finbench/core"
)

var version string
var build string

func buildLogger(level string) core.Logger {
	logrus.SetOutput(os.Stdout)
	logrus.SetReportCaller(true)
	forceColors := false
	if term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("TERM") != "dumb" && os.Getenv("NO_COLOR") == "" {
		forceColors = true
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     forceColors,
		DisableQuote:    true,
		TimestampFormat: "2006-01-02 15:04:05",
		CallerPrettyfier: func(frame *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		},
	})
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	return &core.LogrusAdapter{Logger: logrus.StandardLogger()}
}

func main() {
	// Pre-parse log-level flag to configure logger early
	var pre struct {
		LogLevel   string `long:"log-level"`
		ConfigFile string `long:"config" default:"./finbench.ini"`
	}
	args := os.Args[1:]
	preParser := flags.NewParser(&pre, flags.IgnoreUnknown)
	_, _ = preParser.ParseArgs(args)

	if pre.LogLevel == "" {
		cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, InsensitiveKeys: true}, pre.ConfigFile)
		if err == nil {
			if sec, err := cfg.GetSection("global"); err == nil {
				pre.LogLevel = sec.Key("log-level").String()
			}
		}
	}

	logger := buildLogger(pre.LogLevel)

	parser := flags.NewNamedParser("finbench", flags.Default)
	parser.AddCommand(
		"run",
		"run the test pipeline once",
		"Builds the test image, starts the database service, waits for its health gate, runs the tests and tears everything down. The process exits with the test runner's exit code.",
		&cli.RunCommand{Logger: logger, LogLevel: pre.LogLevel, ConfigFile: pre.ConfigFile},
	)
	parser.AddCommand(
		"daemon",
		"run the pipeline on a schedule",
		"",
		&cli.DaemonCommand{Logger: logger, LogLevel: pre.LogLevel, ConfigFile: pre.ConfigFile},
	)
	parser.AddCommand(
		"validate",
		"validates the config file",
		"",
		&cli.ValidateCommand{Logger: logger, LogLevel: pre.LogLevel, ConfigFile: pre.ConfigFile},
	)
	parser.AddCommand(
		"doctor",
		"run health checks on the configuration and environment",
		"",
		&cli.DoctorCommand{Logger: logger, LogLevel: pre.LogLevel},
	)
	parser.AddCommand(
		"init",
		"interactive configuration wizard",
		"",
		&cli.InitCommand{Logger: logger, LogLevel: pre.LogLevel},
	)
	parser.AddCommand(
		"compose-import",
		"convert a docker-compose file into a finbench config",
		"",
		&cli.ComposeImportCommand{Logger: logger, LogLevel: pre.LogLevel},
	)

	dbOpts := cli.DbOptions{Logger: logger, ConfigFile: pre.ConfigFile}
	if db, err := parser.AddCommand("db", "test database management", "", &struct{}{}); err == nil {
		db.AddCommand("setup", "create, migrate and seed the test database", "",
			&cli.DbSetupCommand{DbOptions: dbOpts})
		db.AddCommand("check", "report the state of the core tables", "",
			&cli.DbCheckCommand{DbOptions: dbOpts})
		db.AddCommand("reset", "drop and recreate the schema", "",
			&cli.DbResetCommand{DbOptions: dbOpts})
	}

	if _, err := parser.ParseArgs(args); err != nil {
		if flagErr, ok := err.(*flags.Error); ok {
			if flagErr.Type == flags.ErrHelp {
				return
			}

			parser.WriteHelp(os.Stdout)
			fmt.Printf("\nBuild information\n  commit: %s\n  date:%s\n", version, build)
		}

		os.Exit(1)
	}
}
