package core

import "testing"

func TestParseBoolOption(t *testing.T) {
	cases := map[string]bool{
		"true":  true,
		"TRUE":  true,
		"1":     true,
		"false": false,
		"0":     false,
		"":      false,
		"junk":  false,
	}
	for in, want := range cases {
		if got := parseBoolOption(in); got != want {
			t.Fatalf("parseBoolOption(%q) = %t, want %t", in, got, want)
		}
	}
}

func TestRunTaskCreateContainerRequiresCommand(t *testing.T) {
	task := NewRunTask(nil)
	task.Image = "finance-bot-test:latest"

	if _, err := task.createContainer(); err != ErrEmptyCommand {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestRunTaskRunRequiresImage(t *testing.T) {
	task := NewRunTask(nil)
	task.Name = "tests"
	task.Command = "pytest tests/ -v"

	e, _ := NewExecution()
	ctx := NewContext(&Pipeline{Logger: &SimpleLogger{}}, task, e)
	if err := task.Run(ctx); err != ErrImageRequired {
		t.Fatalf("expected ErrImageRequired, got %v", err)
	}
}
