package core

import (
	"testing"
)

func TestLocalBuildCommand(t *testing.T) {
	e, _ := NewExecution()
	ctx := &Context{Execution: e}
	task := &LocalTask{}
	task.Command = "echo hello"

	cmd, err := task.buildCommand(ctx)
	if err != nil {
		t.Fatalf("buildCommand error: %v", err)
	}
	if cmd.Path == "" || len(cmd.Args) == 0 {
		t.Fatalf("unexpected cmd: %#v", cmd)
	}
	if cmd.Stdout != e.OutputStream || cmd.Stderr != e.ErrorStream {
		t.Fatalf("expected stdio bound to execution buffers")
	}
}

func TestLocalBuildCommandEmpty(t *testing.T) {
	e, _ := NewExecution()
	ctx := &Context{Execution: e}
	task := &LocalTask{}

	if _, err := task.buildCommand(ctx); err != ErrEmptyCommand {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestLocalBuildCommandMissingBinary(t *testing.T) {
	e, _ := NewExecution()
	ctx := &Context{Execution: e}
	task := &LocalTask{}
	task.Command = "nonexistent-binary --flag"

	if _, err := task.buildCommand(ctx); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}
