package core

import (
	"context"
	"errors"
	"testing"
)

func TestPipelineRunOrder(t *testing.T) {
	var order []string
	record := func(name string) *testTask {
		task := &testTask{}
		task.Name = name
		task.err = nil
		return task
	}

	build := record("build")
	first := record("first")
	second := record("second")

	p := NewPipeline("finance-bot-tests", &SimpleLogger{})
	p.AddBuild(orderedTask{build, &order})
	p.AddTask(orderedTask{first, &order})
	p.AddTask(orderedTask{second, &order})

	res := p.Run(context.Background())
	if res.Failed {
		t.Fatalf("run failed: %v", res.Err)
	}
	if len(order) != 3 || order[0] != "build" || order[1] != "first" || order[2] != "second" {
		t.Fatalf("unexpected stage order: %v", order)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
}

func TestPipelineTaskFailureSkipsRemaining(t *testing.T) {
	failing := &testTask{err: NonZeroExitError{ExitCode: 3}}
	failing.Name = "tests"
	after := &testTask{}
	after.Name = "report"

	p := NewPipeline("finance-bot-tests", &SimpleLogger{})
	p.AddTask(failing)
	p.AddTask(after)

	res := p.Run(context.Background())
	if !res.Failed {
		t.Fatalf("expected failed run")
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code should mirror the failing stage, got %d", res.ExitCode)
	}
	if after.runs != 0 {
		t.Fatalf("later tasks must not run after a failure")
	}
}

func TestPipelineBuildFailureBlocksTasks(t *testing.T) {
	build := &testTask{err: errors.New("build broke")}
	build.Name = "image"
	task := &testTask{}
	task.Name = "tests"

	p := NewPipeline("finance-bot-tests", &SimpleLogger{})
	p.AddBuild(build)
	p.AddTask(task)

	res := p.Run(context.Background())
	if !res.Failed {
		t.Fatalf("expected failed run")
	}
	if task.runs != 0 {
		t.Fatalf("tasks must not run after a failed build")
	}
	if res.ExitCode != 1 {
		t.Fatalf("plain errors map to exit code 1, got %d", res.ExitCode)
	}
}

func TestPipelineReleasesExecutionBuffers(t *testing.T) {
	task := &writingTask{output: "42 passed"}
	task.Name = "tests"

	p := NewPipeline("finance-bot-tests", &SimpleLogger{})
	p.AddTask(task)

	res := p.Run(context.Background())
	if res.Failed {
		t.Fatalf("run failed: %v", res.Err)
	}

	last := task.GetLastRun()
	if last == nil {
		t.Fatalf("expected a history entry")
	}
	if last.OutputStream != nil || last.ErrorStream != nil {
		t.Fatalf("history entries must not hold on to pooled buffers")
	}
	if last.GetStdout() != "42 passed" {
		t.Fatalf("captured stdout lost, got %q", last.GetStdout())
	}
}

func TestPipelineRejectsConcurrentRuns(t *testing.T) {
	p := NewPipeline("finance-bot-tests", &SimpleLogger{})
	p.mu.Lock()
	p.isRunning = true
	p.mu.Unlock()

	res := p.Run(context.Background())
	if !res.Failed {
		t.Fatalf("expected second run to be rejected")
	}
}

// writingTask emits fixed output, standing in for the test runner.
type writingTask struct {
	testTask
	output string
}

func (t *writingTask) Run(ctx *Context) error {
	if _, err := ctx.Execution.OutputStream.Write([]byte(t.output)); err != nil {
		return err
	}
	return t.testTask.Run(ctx)
}

// orderedTask records the order tasks are executed in.
type orderedTask struct {
	*testTask
	order *[]string
}

func (t orderedTask) Run(ctx *Context) error {
	*t.order = append(*t.order, t.Name)
	return t.testTask.Run(ctx)
}
