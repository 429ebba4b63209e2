package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Pipeline is the full run: image builds, dependency services behind health
// gates, then the sequential task list, with teardown guaranteed at the end.
type Pipeline struct {
	Name   string
	Logger Logger

	Builds   []Task
	Services []*ServiceTask
	Tasks    []Task

	middlewareContainer

	mu        sync.Mutex
	isRunning bool
}

// NewPipeline creates an empty pipeline with the given logger.
func NewPipeline(name string, logger Logger) *Pipeline {
	if logger == nil {
		logger = &SimpleLogger{}
	}
	return &Pipeline{Name: name, Logger: logger}
}

// AddBuild appends an image build stage.
func (p *Pipeline) AddBuild(t Task) {
	p.Builds = append(p.Builds, t)
}

// AddService appends a dependency service stage.
func (p *Pipeline) AddService(s *ServiceTask) {
	p.Services = append(p.Services, s)
}

// AddTask appends a task stage, run after all services are healthy.
func (p *Pipeline) AddTask(t Task) {
	p.Tasks = append(p.Tasks, t)
}

// IsRunning reports whether a run is currently in progress.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

// Result summarizes a finished pipeline run. ExitCode mirrors the first
// failing stage's code, so the test runner's pytest exit code survives all
// the way to the calling process.
type Result struct {
	Pipeline string
	Failed   bool
	ExitCode int
	Err      error
	Duration time.Duration
}

// Run executes the pipeline: teardown of leftovers, builds, services with
// health gates, tasks in order, then teardown. A failed build or unhealthy
// service blocks every later stage; a failed task skips the remaining tasks
// but never the teardown.
func (p *Pipeline) Run(ctx context.Context) *Result {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return &Result{Pipeline: p.Name, Failed: true, ExitCode: 1, Err: errors.New("pipeline already running")}
	}
	p.isRunning = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.isRunning = false
		p.mu.Unlock()
	}()

	start := time.Now()
	res := &Result{Pipeline: p.Name}

	// Leftover services from an interrupted run would collide on container
	// names and host ports.
	p.teardown(ctx)

	err := p.runStages(ctx)
	p.teardown(ctx)

	if err != nil {
		res.Failed = true
		res.Err = err
		res.ExitCode = ExitCodeOf(err)
	}
	res.Duration = time.Since(start)
	return res
}

func (p *Pipeline) runStages(ctx context.Context) error {
	for _, b := range p.Builds {
		if err := p.runTask(ctx, b); err != nil {
			return err
		}
	}

	for _, s := range p.Services {
		if err := p.runTask(ctx, s); err != nil {
			return err
		}
	}

	for _, t := range p.Tasks {
		if err := p.runTask(ctx, t); err != nil {
			return err
		}
	}

	return nil
}

// runTask executes one stage through its middleware chain and reports the
// execution's outcome.
func (p *Pipeline) runTask(ctx context.Context, t Task) error {
	e, err := NewExecution()
	if err != nil {
		return err
	}

	c := NewContextWithContext(ctx, p, t, e)
	c.Start()
	c.Log("Started")

	if err := c.Next(); err != nil {
		p.Logger.Errorf("middleware chain aborted for stage %q: %v", t.GetName(), err)
	}

	if st, ok := t.(interface{ SetLastRun(*Execution) }); ok {
		st.SetLastRun(e)
	}

	// Returns the pooled buffers; the output survives in CapturedStdout and
	// CapturedStderr on the history entry.
	e.Cleanup()

	switch {
	case e.Failed:
		c.Log("Failed: " + e.Error.Error())
		return e.Error
	case e.Skipped:
		c.Log("Skipped")
		return nil
	default:
		c.Log("Finished in " + e.Duration.String())
		return nil
	}
}

// teardown stops every service container in reverse start order. Errors are
// logged, never returned: the run's outcome belongs to the stages.
func (p *Pipeline) teardown(ctx context.Context) {
	for i := len(p.Services) - 1; i >= 0; i-- {
		s := p.Services[i]

		e, err := NewExecution()
		if err != nil {
			p.Logger.Errorf("teardown of %q: %v", s.GetName(), err)
			continue
		}

		c := NewContextWithContext(ctx, p, s, e)
		if err := s.Stop(c); err != nil {
			p.Logger.Warningf("teardown of %q: %v", s.GetName(), err)
		}
		e.Cleanup()
	}
}
