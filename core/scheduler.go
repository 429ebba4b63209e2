package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/netresearch/go-cron"
)

// Scheduler runs pipelines on cron schedules, for daemon mode where the
// test environment is exercised periodically (e.g. nightly runs).
type Scheduler struct {
	Logger Logger

	cron      *cron.Cron
	mu        sync.Mutex
	pipelines []*Pipeline
	onResult  func(*Result)
}

func NewScheduler(l Logger) *Scheduler {
	cl := &cronLogger{l}
	return &Scheduler{
		Logger: l,
		cron: cron.New(
			cron.WithParser(cron.FullParser()),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
	}
}

// SetOnResult registers a callback invoked after every scheduled run,
// used for metrics and notifications.
func (s *Scheduler) SetOnResult(fn func(*Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// AddPipeline registers a pipeline under the given cron schedule. When
// runOnStart is set, the pipeline also fires once as soon as the scheduler
// starts.
func (s *Scheduler) AddPipeline(schedule string, p *Pipeline, runOnStart bool) error {
	if schedule == "" {
		return ErrEmptySchedule
	}

	opts := []cron.JobOption{cron.WithName(p.Name)}
	if runOnStart {
		opts = append(opts, cron.WithRunImmediately())
	}

	if _, err := s.cron.AddJob(schedule, &pipelineJob{s, p}, opts...); err != nil {
		return fmt.Errorf("add cron job %q: %w", p.Name, err)
	}

	s.mu.Lock()
	s.pipelines = append(s.pipelines, p)
	s.mu.Unlock()

	s.Logger.Noticef("Pipeline %q registered with schedule %q", p.Name, schedule)
	return nil
}

// Start begins firing schedules. Fails when nothing is registered so an
// empty daemon does not sit idle forever.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	registered := len(s.pipelines)
	s.mu.Unlock()
	if registered == 0 {
		return ErrEmptyScheduler
	}

	s.Logger.Debugf("Starting scheduler with %d pipeline(s)", registered)
	s.cron.Start()
	return nil
}

// StopAndWait stops firing new runs and blocks until in-flight runs finish.
func (s *Scheduler) StopAndWait() {
	s.cron.StopAndWait()
	s.Logger.Debugf("Scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	return s.cron.IsRunning()
}

// Trigger fires a registered pipeline by name outside its schedule.
func (s *Scheduler) Trigger(name string) error {
	if err := s.cron.TriggerEntryByName(name); err != nil {
		return fmt.Errorf("trigger pipeline %q: %w", name, err)
	}
	return nil
}

// pipelineJob adapts a Pipeline to the cron job contract.
type pipelineJob struct {
	s *Scheduler
	p *Pipeline
}

var _ cron.JobWithContext = (*pipelineJob)(nil)

func (j *pipelineJob) Run() {
	j.RunWithContext(context.Background())
}

func (j *pipelineJob) RunWithContext(ctx context.Context) {
	if j.p.IsRunning() {
		j.s.Logger.Warningf("Pipeline %q still running, skipping this fire", j.p.Name)
		return
	}

	res := j.p.Run(ctx)
	if res.Failed {
		j.s.Logger.Errorf("Pipeline %q failed after %s: %v", j.p.Name, res.Duration, res.Err)
	} else {
		j.s.Logger.Noticef("Pipeline %q finished in %s", j.p.Name, res.Duration)
	}

	j.s.mu.Lock()
	fn := j.s.onResult
	j.s.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

// cronLogger adapts the package logger to the cron.Logger contract.
type cronLogger struct {
	l Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugf("cron: %s %v", msg, keysAndValues)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
