package core

import (
	"strconv"
	"time"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/gobs/args"
)

// RunTask runs a command in a one-shot container, typically the pytest
// invocation inside the test image. The container's exit code becomes the
// stage's outcome and, through the pipeline, the process exit code.
type RunTask struct {
	BareTask `mapstructure:",squash"`
	Client   *docker.Client `json:"-"`

	Image         string   `hash:"true"`
	ContainerName string   `gcfg:"container-name" mapstructure:"container-name" hash:"true"`
	User          string   `default:"" hash:"true"`
	Pull          string   `default:"false" hash:"true"`
	Delete        string   `default:"true" hash:"true"`
	Environment   []string `mapstructure:"environment" hash:"true"`
	Volume        []string `hash:"true"`
	Network       string   `hash:"true"`
	Workdir       string   `hash:"true"`

	MaxRuntime time.Duration `gcfg:"max-runtime" mapstructure:"max-runtime"`

	dockerOps *DockerOps        `json:"-"`
	monitor   *ContainerMonitor `json:"-"`
}

func NewRunTask(c *docker.Client) *RunTask {
	return &RunTask{
		Client:    c,
		dockerOps: NewDockerOps(c, nil),
		monitor:   NewContainerMonitor(c, &SimpleLogger{}),
	}
}

// InitializeRuntimeFields initializes fields that depend on the Docker
// client. Called during configuration loading, after Client is set.
func (t *RunTask) InitializeRuntimeFields() {
	if t.Client == nil {
		return
	}
	if t.dockerOps == nil {
		t.dockerOps = NewDockerOps(t.Client, nil)
	}
	if t.monitor == nil {
		t.monitor = NewContainerMonitor(t.Client, &SimpleLogger{})
	}
}

func (t *RunTask) Run(ctx *Context) error {
	t.dockerOps.SetLogger(ctx.Logger)
	t.monitor.logger = ctx.Logger

	if t.Image == "" {
		return ErrImageRequired
	}

	pull := parseBoolOption(t.Pull)
	if err := t.dockerOps.EnsureImage(t.Image, pull); err != nil {
		return err
	}

	container, err := t.createContainer()
	if err != nil {
		return err
	}

	if parseBoolOption(t.Delete) {
		defer func() {
			if delErr := t.dockerOps.RemoveContainer(container.ID, true); delErr != nil {
				ctx.Warn("failed to delete container: " + delErr.Error())
			}
		}()
	}

	startTime := time.Now()
	if err := t.dockerOps.StartContainer(container.ID); err != nil {
		return err
	}

	state, err := t.monitor.WaitForContainer(container.ID, t.MaxRuntime)
	if err != nil {
		return err
	}

	if logsErr := t.dockerOps.LogsSince(container.ID, startTime,
		ctx.Execution.OutputStream, ctx.Execution.ErrorStream); logsErr != nil {
		ctx.Warn("failed to fetch container logs: " + logsErr.Error())
	}

	switch state.ExitCode {
	case 0:
		return nil
	case -1:
		return ErrUnexpected
	default:
		return NonZeroExitError{ExitCode: state.ExitCode}
	}
}

func (t *RunTask) createContainer() (*docker.Container, error) {
	var cmd []string
	if t.Command != "" {
		cmd = args.GetArgs(t.Command)
	} else {
		return nil, ErrEmptyCommand
	}

	opts := docker.CreateContainerOptions{
		Name: t.ContainerName,
		Config: &docker.Config{
			Image:        t.Image,
			AttachStdout: true,
			AttachStderr: true,
			Cmd:          cmd,
			User:         t.User,
			Env:          t.Environment,
			WorkingDir:   t.Workdir,
		},
		NetworkingConfig: &docker.NetworkingConfig{},
		HostConfig: &docker.HostConfig{
			Binds: t.Volume,
		},
	}

	c, err := t.dockerOps.CreateContainer(opts)
	if err != nil {
		return nil, err
	}

	if t.Network != "" {
		if err := t.dockerOps.EnsureNetwork(t.Network); err != nil {
			return c, err
		}
		if err := t.dockerOps.ConnectNetwork(c.ID, t.Network); err != nil {
			return c, err
		}
	}

	return c, nil
}

// parseBoolOption interprets the string-typed boolean fields; the string
// type keeps "true" defaults expressible through struct tags.
func parseBoolOption(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return v
}
