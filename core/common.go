package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/armon/circbuf"
)

// ErrSkippedExecution pass this error to `Execution.Stop` if you wish to mark
// it as skipped.
var ErrSkippedExecution = errors.New("skipped execution")

const (
	// maximum size of a stdout/stderr stream kept in memory and optionally
	// stored or sent via mail
	maxStreamSize = 10 * 1024 * 1024
	logPrefix     = "[Stage %q (%s)] %s"
)

// Task is a single stage of the pipeline: an image build, a service
// container, the test runner, an exec into a service, or a host command.
type Task interface {
	GetName() string
	GetCommand() string
	Middlewares() []Middleware
	Use(...Middleware)
	Run(*Context) error
	GetHistory() []*Execution
}

// Context carries one task execution through its middleware chain.
type Context struct {
	Pipeline  *Pipeline
	Logger    Logger
	Task      Task
	Execution *Execution
	Ctx       context.Context //nolint:containedctx // propagates the pipeline's context through the middleware chain

	current     int
	executed    bool
	middlewares []Middleware
}

func NewContext(p *Pipeline, t Task, e *Execution) *Context {
	return NewContextWithContext(context.Background(), p, t, e)
}

// NewContextWithContext creates a Context bound to a specific
// context.Context, typically the pipeline run's context.
func NewContextWithContext(ctx context.Context, p *Pipeline, t Task, e *Execution) *Context {
	c := &Context{
		Pipeline:    p,
		Task:        t,
		Execution:   e,
		Ctx:         ctx,
		middlewares: t.Middlewares(),
	}
	if p != nil {
		c.Logger = p.Logger
	}
	return c
}

func (c *Context) Start() {
	c.Execution.Start()
}

func (c *Context) Next() error {
	if err := c.doNext(); err != nil || c.executed {
		c.Stop(err)
	}

	return nil
}

func (c *Context) doNext() error {
	for {
		m, end := c.getNext()
		if end {
			break
		}

		if !c.Execution.IsRunning && !m.ContinueOnStop() {
			continue
		}

		if err := m.Run(c); err != nil {
			return fmt.Errorf("middleware run: %w", err)
		}
		return nil
	}

	if !c.Execution.IsRunning {
		return nil
	}

	c.executed = true
	if err := c.Task.Run(c); err != nil {
		return fmt.Errorf("task run: %w", err)
	}
	return nil
}

func (c *Context) getNext() (Middleware, bool) {
	if c.current >= len(c.middlewares) {
		return nil, true
	}

	c.current++
	return c.middlewares[c.current-1], false
}

func (c *Context) Stop(err error) {
	if !c.Execution.IsRunning {
		return
	}

	c.Execution.Stop(err)
}

func (c *Context) Log(msg string) {
	args := []any{c.Task.GetName(), c.Execution.ID, msg}

	switch {
	case c.Execution.Failed:
		c.Logger.Errorf(logPrefix, args...)
	case c.Execution.Skipped:
		c.Logger.Warningf(logPrefix, args...)
	default:
		c.Logger.Noticef(logPrefix, args...)
	}
}

func (c *Context) Warn(msg string) {
	args := []any{c.Task.GetName(), c.Execution.ID, msg}
	c.Logger.Warningf(logPrefix, args...)
}

// Execution contains all the information relative to a single task run.
type Execution struct {
	ID        string
	Date      time.Time
	Duration  time.Duration
	IsRunning bool
	Failed    bool
	Skipped   bool
	Error     error

	OutputStream, ErrorStream *circbuf.Buffer `json:"-"`

	// Captured output for persistence after buffer cleanup
	CapturedStdout, CapturedStderr string `json:"-"`
}

// NewExecution returns a new Execution with a random ID and pooled buffers.
func NewExecution() (*Execution, error) {
	bufOut := DefaultBufferPool.Get()
	bufErr := DefaultBufferPool.Get()

	id, err := randomID()
	if err != nil {
		DefaultBufferPool.Put(bufOut)
		DefaultBufferPool.Put(bufErr)
		return nil, err
	}
	return &Execution{
		ID:           id,
		OutputStream: bufOut,
		ErrorStream:  bufErr,
	}, nil
}

// Start marks the execution as running and records the start date.
func (e *Execution) Start() {
	e.IsRunning = true
	e.Date = time.Now()
}

// Stop halts the execution. If a ErrSkippedExecution is given the execution
// is marked as skipped; any other error marks it failed.
func (e *Execution) Stop(err error) {
	e.IsRunning = false
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	e.Duration = time.Since(e.Date)
	if e.Duration <= 0 {
		e.Duration = time.Nanosecond
	}

	if err != nil && !errors.Is(err, ErrSkippedExecution) {
		e.Error = err
		e.Failed = true
	} else if errors.Is(err, ErrSkippedExecution) {
		e.Skipped = true
	}
}

// GetStdout returns stdout content, preferring the live buffer if available.
func (e *Execution) GetStdout() string {
	if e.OutputStream != nil {
		return e.OutputStream.String()
	}
	return e.CapturedStdout
}

// GetStderr returns stderr content, preferring the live buffer if available.
func (e *Execution) GetStderr() string {
	if e.ErrorStream != nil {
		return e.ErrorStream.String()
	}
	return e.CapturedStderr
}

// Cleanup returns execution buffers to the pool for reuse.
func (e *Execution) Cleanup() {
	if e.OutputStream != nil {
		e.CapturedStdout = e.OutputStream.String()
		DefaultBufferPool.Put(e.OutputStream)
		e.OutputStream = nil
	}
	if e.ErrorStream != nil {
		e.CapturedStderr = e.ErrorStream.String()
		DefaultBufferPool.Put(e.ErrorStream)
		e.ErrorStream = nil
	}
}

// Middleware can wrap any task execution, allowing code to run before
// or/and after each `Task.Run`.
type Middleware interface {
	// Run is called instead of the original `Task.Run`, you MUST call
	// `ctx.Next` inside of the middleware `Run` function otherwise you will
	// break the task workflow.
	Run(*Context) error
	// ContinueOnStop reports whether Run should be called even when the
	// execution has been stopped
	ContinueOnStop() bool
}

type middlewareContainer struct {
	m     map[string]Middleware
	order []string
}

func (c *middlewareContainer) Use(ms ...Middleware) {
	if c.m == nil {
		c.m = make(map[string]Middleware)
	}

	for _, m := range ms {
		if m == nil {
			continue
		}

		t := reflect.TypeOf(m).String()
		if _, ok := c.m[t]; ok {
			continue
		}

		c.order = append(c.order, t)
		c.m[t] = m
	}
}

func (c *middlewareContainer) Middlewares() []Middleware {
	ms := make([]Middleware, 0, len(c.order))
	for _, t := range c.order {
		ms = append(ms, c.m[t])
	}
	return ms
}

type Logger interface {
	Criticalf(format string, args ...any)
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
	Noticef(format string, args ...any)
	Warningf(format string, args ...any)
}

func randomID() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}

	return fmt.Sprintf("%x", b), nil
}
