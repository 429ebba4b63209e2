package core

import (
	docker "github.com/fsouza/go-dockerclient"
	"github.com/gobs/args"
)

// ExecTask runs a command inside an already running container, e.g. a
// psql statement against the database service.
type ExecTask struct {
	BareTask `mapstructure:",squash"`
	Client   *docker.Client `json:"-"`

	Container   string   `hash:"true"`
	User        string   `default:"" hash:"true"`
	Environment []string `mapstructure:"environment" hash:"true"`

	dockerOps *DockerOps `json:"-"`
	execID    string
}

func NewExecTask(c *docker.Client) *ExecTask {
	return &ExecTask{
		Client:    c,
		dockerOps: NewDockerOps(c, nil),
	}
}

// InitializeRuntimeFields initializes fields that depend on the Docker
// client. Called during configuration loading, after Client is set.
func (t *ExecTask) InitializeRuntimeFields() {
	if t.Client == nil {
		return
	}
	if t.dockerOps == nil {
		t.dockerOps = NewDockerOps(t.Client, nil)
	}
}

func (t *ExecTask) Run(ctx *Context) error {
	t.dockerOps.SetLogger(ctx.Logger)

	if t.Container == "" {
		return ErrServiceRequired
	}
	if t.Command == "" {
		return ErrEmptyCommand
	}

	exec, err := t.buildExec()
	if err != nil {
		return err
	}

	if err := t.startExec(exec.ID, ctx.Execution); err != nil {
		return err
	}

	inspect, err := t.dockerOps.InspectExec(exec.ID)
	if err != nil {
		return err
	}

	switch inspect.ExitCode {
	case 0:
		return nil
	case -1:
		return ErrUnexpected
	default:
		return NonZeroExitError{ExitCode: inspect.ExitCode}
	}
}

func (t *ExecTask) buildExec() (*docker.Exec, error) {
	return t.dockerOps.CreateExec(docker.CreateExecOptions{
		AttachStdin:  false,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          args.GetArgs(t.Command),
		Container:    t.Container,
		User:         t.User,
		Env:          t.Environment,
	})
}

func (t *ExecTask) startExec(execID string, e *Execution) error {
	t.execID = execID
	return t.dockerOps.StartExec(execID, docker.StartExecOptions{
		OutputStream: e.OutputStream,
		ErrorStream:  e.ErrorStream,
		RawTerminal:  false,
	})
}
