package core

import (
	"os"
	"os/exec"

	"github.com/gobs/args"
)

// LocalTask runs a command on the host, outside any container. Used for
// steps that need the host toolchain, such as opening the coverage report.
type LocalTask struct {
	BareTask `mapstructure:",squash"`

	Dir         string   `hash:"true"`
	Environment []string `mapstructure:"environment" hash:"true"`
}

func NewLocalTask() *LocalTask {
	return &LocalTask{}
}

func (t *LocalTask) Run(ctx *Context) error {
	cmd, err := t.buildCommand(ctx)
	if err != nil {
		return err
	}

	return cmd.Run()
}

func (t *LocalTask) buildCommand(ctx *Context) (*exec.Cmd, error) {
	argsSlice := args.GetArgs(t.Command)
	if len(argsSlice) == 0 {
		return nil, ErrEmptyCommand
	}

	binPath, err := exec.LookPath(argsSlice[0])
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(binPath, argsSlice[1:]...)
	cmd.Stdout = ctx.Execution.OutputStream
	cmd.Stderr = ctx.Execution.ErrorStream
	cmd.Dir = t.Dir
	cmd.Env = append(os.Environ(), t.Environment...)
	return cmd, nil
}
