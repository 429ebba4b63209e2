package core

import (
	"sync"
)

// BareTask holds the fields and bookkeeping every stage shares. Concrete
// tasks embed it and implement Run.
type BareTask struct {
	Name    string
	Command string

	// HistoryLimit caps how many executions are retained per stage.
	HistoryLimit int `default:"10"`

	middlewareContainer
	lock    sync.Mutex
	history []*Execution
	lastRun *Execution
}

func (t *BareTask) GetName() string {
	return t.Name
}

func (t *BareTask) GetCommand() string {
	return t.Command
}

// SetLastRun stores the last executed run for the task.
func (t *BareTask) SetLastRun(e *Execution) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.lastRun = e
	t.history = append(t.history, e)
	if t.HistoryLimit > 0 && len(t.history) > t.HistoryLimit {
		t.history = t.history[len(t.history)-t.HistoryLimit:]
	}
}

// GetLastRun returns the last execution of the task, if any.
func (t *BareTask) GetLastRun() *Execution {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.lastRun
}

// GetHistory returns a copy of the task's execution history.
func (t *BareTask) GetHistory() []*Execution {
	t.lock.Lock()
	defer t.lock.Unlock()
	hist := make([]*Execution, len(t.history))
	copy(hist, t.history)
	return hist
}
