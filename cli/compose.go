package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	ini "gopkg.in/ini.v1"
	yaml "gopkg.in/yaml.v3"

	"github.com/finbot/finbench/core"
)

// ComposeImportCommand converts a docker-compose file into a finbench config
// file. Services with a healthcheck become service stages; one-shot services
// (those that depend on every other service) become task stages.
type ComposeImportCommand struct {
	Input    string `long:"input" short:"i" description:"docker-compose file" default:"./docker-compose.test.yml"`
	Output   string `long:"output" short:"o" description:"Output file path" default:"./finbench.ini"`
	Network  string `long:"network" description:"Docker network for the imported stages" default:"finance-bot-test"`
	LogLevel string `long:"log-level" env:"FINBENCH_LOG_LEVEL" description:"Set log level"`
	Logger   core.Logger
}

// composeFile is the subset of the compose format the importer understands.
type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image       string             `yaml:"image"`
	Build       *composeBuild      `yaml:"build"`
	Command     composeCommand     `yaml:"command"`
	Ports       []string           `yaml:"ports"`
	Environment composeEnvironment `yaml:"environment"`
	DependsOn   composeDependsOn   `yaml:"depends_on"`
	Healthcheck *composeHealth     `yaml:"healthcheck"`
	Volumes     []string           `yaml:"volumes"`
	WorkingDir  string             `yaml:"working_dir"`
}

type composeBuild struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile"`
}

type composeHealth struct {
	Test        composeCommand `yaml:"test"`
	Interval    time.Duration  `yaml:"interval"`
	Timeout     time.Duration  `yaml:"timeout"`
	Retries     int            `yaml:"retries"`
	StartPeriod time.Duration  `yaml:"start_period"`
}

// composeCommand accepts both the string and the list form.
type composeCommand string

func (c *composeCommand) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*c = composeCommand(node.Value)
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return err
		}
		// Drop the CMD / CMD-SHELL marker of healthcheck test lists.
		if len(parts) > 0 && (parts[0] == "CMD" || parts[0] == "CMD-SHELL") {
			parts = parts[1:]
		}
		*c = composeCommand(strings.Join(parts, " "))
		return nil
	default:
		return fmt.Errorf("unsupported YAML node for command")
	}
}

// composeEnvironment accepts both the map and the list form.
type composeEnvironment []string

func (e *composeEnvironment) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*e = list
		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			*e = append(*e, k+"="+m[k])
		}
		return nil
	default:
		return fmt.Errorf("unsupported YAML node for environment")
	}
}

// composeDependsOn accepts both the list and the condition-map form.
type composeDependsOn []string

func (d *composeDependsOn) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*d = list
		return nil
	case yaml.MappingNode:
		var m map[string]yaml.Node
		if err := node.Decode(&m); err != nil {
			return err
		}
		for k := range m {
			*d = append(*d, k)
		}
		sort.Strings(*d)
		return nil
	default:
		return fmt.Errorf("unsupported YAML node for depends_on")
	}
}

// Execute converts the compose file.
func (c *ComposeImportCommand) Execute(_ []string) error {
	ApplyLogLevel(c.LogLevel)

	raw, err := os.ReadFile(c.Input)
	if err != nil {
		return err
	}

	var compose composeFile
	if err := yaml.Unmarshal(raw, &compose); err != nil {
		return fmt.Errorf("parse %q: %w", c.Input, err)
	}
	if len(compose.Services) == 0 {
		return fmt.Errorf("%q defines no services", c.Input)
	}

	cfg := ini.Empty()
	cfg.Section("global").Key("log-level").SetValue("info")

	// Deterministic output regardless of map iteration order.
	names := make([]string, 0, len(compose.Services))
	for name := range compose.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		svc := compose.Services[name]
		if svc.Build != nil {
			c.writeBuild(cfg, name, svc)
		}
		if c.isTask(svc) {
			c.writeTask(cfg, name, svc)
		} else {
			c.writeService(cfg, name, svc)
		}
	}

	if err := cfg.SaveTo(c.Output); err != nil {
		return fmt.Errorf("write %q: %w", c.Output, err)
	}

	c.Logger.Noticef("Imported %d services from %s into %s", len(compose.Services), c.Input, c.Output)
	c.Logger.Noticef("Review the result, then: finbench validate --config=%s", c.Output)
	return nil
}

// isTask decides whether a compose service maps to a one-shot task stage.
// Anything that depends on another service and publishes no ports runs once
// and exits, which is the shape of the test-runner service.
func (c *ComposeImportCommand) isTask(svc composeService) bool {
	return len(svc.DependsOn) > 0 && len(svc.Ports) == 0 && svc.Healthcheck == nil
}

func (c *ComposeImportCommand) writeBuild(cfg *ini.File, name string, svc composeService) {
	section := cfg.Section(fmt.Sprintf("build %q", name+"-image"))
	section.Key("image").SetValue(svc.Image)
	section.Key("context").SetValue(svc.Build.Context)
	if svc.Build.Dockerfile != "" {
		section.Key("dockerfile").SetValue(svc.Build.Dockerfile)
	}
}

func (c *ComposeImportCommand) writeService(cfg *ini.File, name string, svc composeService) {
	section := cfg.Section(fmt.Sprintf("service %q", name))
	section.Key("image").SetValue(svc.Image)
	section.Key("container-name").SetValue(name)
	section.Key("network").SetValue(c.Network)
	if len(svc.Ports) > 0 {
		section.Key("ports").SetValue(svc.Ports[0])
		for _, p := range svc.Ports[1:] {
			section.Key("ports").AddShadow(p)
		}
	}
	writeShadowed(section, "environment", svc.Environment)
	writeShadowed(section, "volume", svc.Volumes)

	if h := svc.Healthcheck; h != nil {
		section.Key("healthcheck-test").SetValue(string(h.Test))
		if h.Interval > 0 {
			section.Key("healthcheck-interval").SetValue(h.Interval.String())
		}
		if h.Timeout > 0 {
			section.Key("healthcheck-timeout").SetValue(h.Timeout.String())
		}
		if h.Retries > 0 {
			section.Key("healthcheck-retries").SetValue(fmt.Sprint(h.Retries))
		}
		if h.StartPeriod > 0 {
			section.Key("healthcheck-start-period").SetValue(h.StartPeriod.String())
		}
	}
}

func (c *ComposeImportCommand) writeTask(cfg *ini.File, name string, svc composeService) {
	section := cfg.Section(fmt.Sprintf("task %q", name))
	section.Key("image").SetValue(svc.Image)
	section.Key("network").SetValue(c.Network)
	if svc.Command != "" {
		section.Key("command").SetValue(string(svc.Command))
	}
	if svc.WorkingDir != "" {
		section.Key("workdir").SetValue(svc.WorkingDir)
	}
	writeShadowed(section, "environment", svc.Environment)
	writeShadowed(section, "volume", svc.Volumes)
}

func writeShadowed(section *ini.Section, key string, values []string) {
	if len(values) == 0 {
		return
	}
	section.Key(key).SetValue(values[0])
	for _, v := range values[1:] {
		section.Key(key).AddShadow(v)
	}
}
