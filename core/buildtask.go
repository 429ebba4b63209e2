package core

import (
	"time"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/gobs/args"
)

// BuildTask builds the test image from a Dockerfile context. When Smoke is
// set, the command runs in a throwaway container of the freshly built image;
// a failure fails the stage before any service is started, catching gross
// packaging errors (missing dependencies) early.
type BuildTask struct {
	BareTask `mapstructure:",squash"`
	Client   *docker.Client `json:"-"`

	Image      string `hash:"true"`
	Context    string `default:"." hash:"true"`
	Dockerfile string `default:"Dockerfile" hash:"true"`
	NoCache    string `default:"false" gcfg:"no-cache" mapstructure:"no-cache" hash:"true"`
	Smoke      string `hash:"true"`

	MaxRuntime time.Duration `gcfg:"max-runtime" mapstructure:"max-runtime"`

	dockerOps *DockerOps        `json:"-"`
	monitor   *ContainerMonitor `json:"-"`
}

func NewBuildTask(c *docker.Client) *BuildTask {
	return &BuildTask{
		Client:    c,
		dockerOps: NewDockerOps(c, nil),
		monitor:   NewContainerMonitor(c, &SimpleLogger{}),
	}
}

// InitializeRuntimeFields initializes fields that depend on the Docker
// client. Called during configuration loading, after Client is set.
func (t *BuildTask) InitializeRuntimeFields() {
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

func (t *BuildTask) Run(ctx *Context) error {
	t.dockerOps.SetLogger(ctx.Logger)

	noCache := parseBoolOption(t.NoCache)
	if err := t.dockerOps.BuildImage(t.Image, t.Context, t.Dockerfile, noCache, ctx.Execution.OutputStream); err != nil {
		return err
	}
	ctx.Log("Built image " + t.Image)

	if t.Smoke == "" {
		return nil
	}
	return t.runSmoke(ctx)
}

// runSmoke executes the smoke command in a disposable container of the
// image that was just built.
func (t *BuildTask) runSmoke(ctx *Context) error {
	container, err := t.dockerOps.CreateContainer(docker.CreateContainerOptions{
		Config: &docker.Config{
			Image:        t.Image,
			AttachStdout: true,
			AttachStderr: true,
			Cmd:          args.GetArgs(t.Smoke),
		},
		HostConfig: &docker.HostConfig{AutoRemove: false},
	})
	if err != nil {
		return err
	}
	defer func() {
		if delErr := t.dockerOps.RemoveContainer(container.ID, true); delErr != nil {
			ctx.Warn("failed to delete smoke container: " + delErr.Error())
		}
	}()

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
		ctx.Warn("failed to fetch smoke container logs: " + logsErr.Error())
	}

	switch state.ExitCode {
	case 0:
		ctx.Log("Smoke check passed for image " + t.Image)
		return nil
	case -1:
		return ErrUnexpected
	default:
		return NonZeroExitError{ExitCode: state.ExitCode}
	}
}
