package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeOf(t *testing.T) {
	if got := ExitCodeOf(nil); got != 0 {
		t.Fatalf("nil error should map to 0, got %d", got)
	}
	if got := ExitCodeOf(errors.New("generic")); got != 1 {
		t.Fatalf("generic error should map to 1, got %d", got)
	}
	if got := ExitCodeOf(NonZeroExitError{ExitCode: 5}); got != 5 {
		t.Fatalf("expected the carried code 5, got %d", got)
	}

	wrapped := fmt.Errorf("test stage: %w", NonZeroExitError{ExitCode: 2})
	if got := ExitCodeOf(wrapped); got != 2 {
		t.Fatalf("wrapped code should survive, got %d", got)
	}
}

func TestWrapContainerError(t *testing.T) {
	if WrapContainerError("stop", "abc", nil) != nil {
		t.Fatalf("wrapping nil should stay nil")
	}

	base := errors.New("no such container")
	err := WrapContainerError("stop", "abc", base)
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should keep the cause")
	}
}
