package core

import (
	"testing"
)

func TestSchedulerRejectsEmptySchedule(t *testing.T) {
	s := NewScheduler(&SimpleLogger{})
	p := NewPipeline("nightly", &SimpleLogger{})

	if err := s.AddPipeline("", p, false); err != ErrEmptySchedule {
		t.Fatalf("expected ErrEmptySchedule, got %v", err)
	}
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(&SimpleLogger{})
	p := NewPipeline("nightly", &SimpleLogger{})

	if err := s.AddPipeline("every tuesday", p, false); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
}

func TestSchedulerStartWithoutPipelines(t *testing.T) {
	s := NewScheduler(&SimpleLogger{})
	if err := s.Start(); err != ErrEmptyScheduler {
		t.Fatalf("expected ErrEmptyScheduler, got %v", err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(&SimpleLogger{})
	p := NewPipeline("nightly", &SimpleLogger{})
	p.AddTask(&testTask{})

	if err := s.AddPipeline("0 2 * * *", p, false); err != nil {
		t.Fatalf("AddPipeline: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatalf("expected running scheduler")
	}

	s.StopAndWait()
	if s.IsRunning() {
		t.Fatalf("expected stopped scheduler")
	}
}

func TestSchedulerTriggerRunsPipeline(t *testing.T) {
	s := NewScheduler(&SimpleLogger{})
	p := NewPipeline("nightly", &SimpleLogger{})
	task := &testTask{}
	p.AddTask(task)

	var results []*Result
	done := make(chan struct{})
	s.SetOnResult(func(r *Result) {
		results = append(results, r)
		close(done)
	})

	if err := s.AddPipeline("0 2 * * *", p, false); err != nil {
		t.Fatalf("AddPipeline: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.StopAndWait()

	if err := s.Trigger("nightly"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	<-done

	if task.runs != 1 {
		t.Fatalf("expected one run, got %d", task.runs)
	}
	if len(results) != 1 || results[0].Failed {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSchedulerTriggerUnknownPipeline(t *testing.T) {
	s := NewScheduler(&SimpleLogger{})
	if err := s.Trigger("missing"); err == nil {
		t.Fatalf("expected error for unknown pipeline")
	}
}
