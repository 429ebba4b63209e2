package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	docker "github.com/fsouza/go-dockerclient"

	"github.com/finbot/finbench/core"
	"github.com/finbot/finbench/database"
)

// DoctorCommand runs health checks on the configuration and environment
type DoctorCommand struct {
	ConfigFile string `long:"config" description:"Path to configuration file"`
	LogLevel   string `long:"log-level" env:"FINBENCH_LOG_LEVEL" description:"Set log level"`
	JSON       bool   `long:"json" description:"Output results as JSON"`
	Logger     core.Logger
}

// commonConfigPaths lists config file locations to search (in order of priority)
var commonConfigPaths = []string{
	"./finbench.ini",
	"./config.ini",
	"/etc/finbench/config.ini",
	"/etc/finbench.ini",
}

// findConfigFile searches for a config file in common locations
func findConfigFile() string {
	for _, path := range commonConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Status constants for health check results.
const (
	statusPass = "pass"
	statusFail = "fail"
	statusSkip = "skip"
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Hints    []string `json:"hints,omitempty"`
}

// DoctorReport contains all health check results
type DoctorReport struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

func (r *DoctorReport) add(c CheckResult) {
	if c.Status == statusFail {
		r.Healthy = false
	}
	r.Checks = append(r.Checks, c)
}

// Execute runs all health checks
func (c *DoctorCommand) Execute(_ []string) error {
	ApplyLogLevel(c.LogLevel)

	if c.ConfigFile == "" {
		if found := findConfigFile(); found != "" {
			c.ConfigFile = found
		}
	}

	report := &DoctorReport{Healthy: true, Checks: []CheckResult{}}

	conf := c.checkConfiguration(report)
	client := c.checkDocker(report)
	c.checkImages(report, conf, client)
	c.checkDatabase(report, conf)

	if c.JSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		c.printReport(report)
	}

	if !report.Healthy {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func (c *DoctorCommand) checkConfiguration(report *DoctorReport) *Config {
	if c.ConfigFile == "" {
		conf, err := DefaultConfig(c.Logger)
		if err != nil {
			report.add(CheckResult{
				Category: "Configuration", Name: "built-in topology",
				Status: statusFail, Message: err.Error(),
			})
			return nil
		}
		report.add(CheckResult{
			Category: "Configuration", Name: "config file",
			Status:  statusSkip,
			Message: "no config file found, using the built-in topology",
		})
		return conf
	}

	conf, err := BuildFromFile(c.ConfigFile, c.Logger)
	if err != nil {
		report.add(CheckResult{
			Category: "Configuration", Name: "parse",
			Status: statusFail, Message: err.Error(),
			Hints: []string{"check the INI syntax in " + c.ConfigFile},
		})
		return nil
	}

	if err := conf.Validate(); err != nil {
		report.add(CheckResult{
			Category: "Configuration", Name: "validate",
			Status: statusFail, Message: err.Error(),
		})
		return conf
	}

	report.add(CheckResult{
		Category: "Configuration", Name: "parse and validate",
		Status: statusPass, Message: c.ConfigFile,
	})
	return conf
}

func (c *DoctorCommand) checkDocker(report *DoctorReport) *docker.Client {
	client, err := docker.NewClientFromEnv()
	if err == nil {
		err = client.Ping()
	}
	if err != nil {
		report.add(CheckResult{
			Category: "Docker", Name: "daemon connectivity",
			Status: statusFail, Message: err.Error(),
			Hints: []string{
				"is the Docker daemon running?",
				"check DOCKER_HOST or the socket permissions",
			},
		})
		return nil
	}

	report.add(CheckResult{Category: "Docker", Name: "daemon connectivity", Status: statusPass})
	return client
}

func (c *DoctorCommand) checkImages(report *DoctorReport, conf *Config, client *docker.Client) {
	if conf == nil || client == nil {
		report.add(CheckResult{
			Category: "Docker Images", Name: "availability",
			Status: statusSkip, Message: "skipped due to earlier failures",
		})
		return
	}

	ops := core.NewDockerOps(client, c.Logger)
	built := make(map[string]bool)
	for _, b := range conf.Builds {
		built[b.Image] = true
	}

	images := make(map[string]bool)
	for _, s := range conf.Services {
		images[s.Image] = true
	}
	for _, t := range conf.Tasks {
		// Images produced by a build stage won't exist until the pipeline runs.
		if !built[t.Image] {
			images[t.Image] = true
		}
	}

	for image := range images {
		has, err := ops.HasImageLocally(image)
		switch {
		case err != nil:
			report.add(CheckResult{
				Category: "Docker Images", Name: image,
				Status: statusFail, Message: err.Error(),
			})
		case has:
			report.add(CheckResult{Category: "Docker Images", Name: image, Status: statusPass})
		default:
			report.add(CheckResult{
				Category: "Docker Images", Name: image,
				Status:  statusSkip,
				Message: "not present locally, will be pulled on first run",
			})
		}
	}
}

func (c *DoctorCommand) checkDatabase(report *DoctorReport, conf *Config) {
	dsn := database.DefaultDSN
	if conf != nil {
		dsn = conf.DSN()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, dsn, c.Logger)
	if err == nil {
		err = db.Ping(ctx)
		db.Close()
	}
	if err != nil {
		report.add(CheckResult{
			Category: "Database", Name: "connectivity",
			Status:  statusSkip,
			Message: fmt.Sprintf("%s unreachable: %v", database.RedactDSN(dsn), err),
			Hints:   []string{"the service container provides the database during a pipeline run"},
		})
		return
	}

	report.add(CheckResult{
		Category: "Database", Name: "connectivity",
		Status: statusPass, Message: database.RedactDSN(dsn),
	})
}

func (c *DoctorCommand) printReport(report *DoctorReport) {
	for _, check := range report.Checks {
		switch check.Status {
		case statusPass:
			c.Logger.Noticef("PASS %s: %s %s", check.Category, check.Name, check.Message)
		case statusSkip:
			c.Logger.Warningf("SKIP %s: %s %s", check.Category, check.Name, check.Message)
		case statusFail:
			c.Logger.Errorf("FAIL %s: %s %s", check.Category, check.Name, check.Message)
			for _, hint := range check.Hints {
				c.Logger.Errorf("     hint: %s", hint)
			}
		}
	}
	if report.Healthy {
		c.Logger.Noticef("All checks passed")
	}
}
