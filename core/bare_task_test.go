package core

import "testing"

func TestBareTaskHistoryLimit(t *testing.T) {
	task := &BareTask{Name: "tests", HistoryLimit: 2}

	for i := 0; i < 5; i++ {
		e, _ := NewExecution()
		task.SetLastRun(e)
	}

	hist := task.GetHistory()
	if len(hist) != 2 {
		t.Fatalf("expected history capped at 2, got %d", len(hist))
	}
	if task.GetLastRun() != hist[len(hist)-1] {
		t.Fatalf("last run should be the newest history entry")
	}
}

func TestBareTaskHistoryCopy(t *testing.T) {
	task := &BareTask{Name: "tests", HistoryLimit: 10}
	e, _ := NewExecution()
	task.SetLastRun(e)

	hist := task.GetHistory()
	hist[0] = nil
	if task.GetHistory()[0] == nil {
		t.Fatalf("GetHistory must return a copy")
	}
}
