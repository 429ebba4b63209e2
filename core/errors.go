package core

import (
	"errors"
	"fmt"
)

// Common errors used across the package
var (
	// Container errors
	ErrContainerNotFound    = errors.New("container not found")
	ErrContainerStartFailed = errors.New("failed to start container")
	ErrContainerExited      = errors.New("container exited before becoming healthy")

	// Image errors
	ErrImageNotFound   = errors.New("image not found")
	ErrImagePullFailed = errors.New("failed to pull image")

	// Stage errors
	ErrMaxTimeRunning  = errors.New("max runtime exceeded")
	ErrUnexpected      = errors.New("unexpected error")
	ErrEmptyCommand    = errors.New("command cannot be empty")
	ErrImageRequired   = errors.New("task requires 'image'")
	ErrServiceRequired = errors.New("exec task requires a running service container")

	// Health gate errors
	ErrUnhealthy           = errors.New("container reported unhealthy")
	ErrHealthCheckTimedOut = errors.New("health check retries exhausted")

	// Scheduler errors
	ErrEmptyScheduler = errors.New("unable to start an empty scheduler")
	ErrEmptySchedule  = errors.New("unable to register a pipeline with an empty schedule")
)

// WrapContainerError wraps a container-related error with context
func WrapContainerError(op string, containerID string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s container %q: %w", op, containerID, err)
}

// WrapImageError wraps an image-related error with context
func WrapImageError(op string, image string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s image %q: %w", op, image, err)
}

// NonZeroExitError represents a container or command exit with non-zero code.
// The pipeline's process exit code mirrors the test task's code through this
// type.
type NonZeroExitError struct {
	ExitCode int
}

func (e NonZeroExitError) Error() string {
	return fmt.Sprintf("non-zero exit code: %d", e.ExitCode)
}

// ExitCodeOf extracts the process exit code carried by err. It returns 0 for
// nil and 1 for errors that do not carry a code.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var nz NonZeroExitError
	if errors.As(err, &nz) {
		return nz.ExitCode
	}
	return 1
}
