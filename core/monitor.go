package core

import (
	"context"
	"fmt"
	"time"

	docker "github.com/fsouza/go-dockerclient"
)

// Docker health status values as reported by container inspect.
const (
	healthStarting  = "starting"
	healthHealthy   = "healthy"
	healthUnhealthy = "unhealthy"
)

// HealthGate describes the readiness probe for a service container. It
// mirrors the compose health check: a probe command run on a fixed interval
// with a fixed retry budget, preceded by a grace period.
type HealthGate struct {
	Test        string        `hash:"true"`
	Interval    time.Duration `default:"5s" mapstructure:"interval"`
	Timeout     time.Duration `default:"5s" mapstructure:"timeout"`
	Retries     int           `default:"5" mapstructure:"retries"`
	StartPeriod time.Duration `default:"10s" gcfg:"start-period" mapstructure:"start-period"`
}

// Deadline returns the total budget the gate is allowed before it fails:
// the grace period plus one interval+timeout per retry.
func (h HealthGate) Deadline() time.Duration {
	interval := h.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := h.Retries
	if retries <= 0 {
		retries = 5
	}
	return h.StartPeriod + time.Duration(retries)*(interval+timeout)
}

// DockerConfig converts the gate into the daemon-side health check attached
// to the service container.
func (h HealthGate) DockerConfig() *docker.HealthConfig {
	if h.Test == "" {
		return nil
	}
	cfg := &docker.HealthConfig{
		Test:        []string{"CMD-SHELL", h.Test},
		Interval:    h.Interval,
		Timeout:     h.Timeout,
		Retries:     h.Retries,
		StartPeriod: h.StartPeriod,
	}
	return cfg
}

// ContainerMonitor watches containers for exit and health transitions. It
// prefers the Docker events API and falls back to polling when the event
// stream is unavailable.
type ContainerMonitor struct {
	client       *docker.Client
	logger       Logger
	useEventsAPI bool
}

// NewContainerMonitor creates a new container monitor.
func NewContainerMonitor(client *docker.Client, logger Logger) *ContainerMonitor {
	return &ContainerMonitor{
		client:       client,
		logger:       logger,
		useEventsAPI: true,
	}
}

// SetUseEventsAPI allows toggling between events API and polling.
func (cm *ContainerMonitor) SetUseEventsAPI(use bool) {
	cm.useEventsAPI = use
}

// WaitForContainer blocks until the container stops and returns its final
// state. A maxRuntime of zero waits indefinitely.
func (cm *ContainerMonitor) WaitForContainer(containerID string, maxRuntime time.Duration) (*docker.State, error) {
	if cm.useEventsAPI {
		state, err := cm.waitWithEvents(containerID, maxRuntime)
		if err == nil {
			return state, nil
		}
		cm.logger.Debugf("Events API failed for container %s: %v, falling back to polling", containerID, err)
	}

	return cm.waitWithPolling(containerID, maxRuntime)
}

func (cm *ContainerMonitor) waitWithEvents(containerID string, maxRuntime time.Duration) (*docker.State, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if maxRuntime > 0 {
		ctx, cancel = context.WithTimeout(ctx, maxRuntime)
		defer cancel()
	}

	eventChan := make(chan *docker.APIEvents, 10)

	opts := docker.EventsOptions{
		Filters: map[string][]string{
			"container": {containerID},
			"event":     {"die", "kill", "stop", "oom"},
		},
	}

	if err := cm.client.AddEventListenerWithOptions(opts, eventChan); err != nil {
		return nil, fmt.Errorf("add event listener: %w", err)
	}
	defer func() {
		if err := cm.client.RemoveEventListener(eventChan); err != nil {
			cm.logger.Warningf("Failed to remove event listener: %v", err)
		}
	}()

	// The container may already have stopped before the listener was in place.
	container, err := cm.client.InspectContainerWithOptions(docker.InspectContainerOptions{
		ID:      containerID,
		Context: ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("inspect container: %w", err)
	}
	if !container.State.Running {
		return &container.State, nil
	}

	for {
		select {
		case <-ctx.Done():
			if maxRuntime > 0 {
				return nil, ErrMaxTimeRunning
			}
			return nil, ctx.Err()

		case event, ok := <-eventChan:
			if !ok {
				return nil, fmt.Errorf("event channel closed unexpectedly")
			}

			if event.ID == containerID || event.Actor.ID == containerID {
				container, err := cm.client.InspectContainerWithOptions(docker.InspectContainerOptions{
					ID:      containerID,
					Context: ctx,
				})
				if err != nil {
					return nil, fmt.Errorf("inspect container after event: %w", err)
				}
				return &container.State, nil
			}
		}
	}
}

func (cm *ContainerMonitor) waitWithPolling(containerID string, maxRuntime time.Duration) (*docker.State, error) {
	const pollInterval = 500 * time.Millisecond
	var elapsed time.Duration

	for {
		time.Sleep(pollInterval)
		elapsed += pollInterval

		if maxRuntime > 0 && elapsed > maxRuntime {
			return nil, ErrMaxTimeRunning
		}

		container, err := cm.client.InspectContainerWithOptions(docker.InspectContainerOptions{
			ID: containerID,
		})
		if err != nil {
			return nil, fmt.Errorf("inspect container %q: %w", containerID, err)
		}

		if !container.State.Running {
			return &container.State, nil
		}
	}
}

// WaitForHealthy blocks until the container's health check reports healthy.
// A container that exits or turns unhealthy within the gate's budget fails
// immediately; exhausting the budget fails with ErrHealthCheckTimedOut so
// dependent stages never start against a dead database.
func (cm *ContainerMonitor) WaitForHealthy(containerID string, gate HealthGate) error {
	pollInterval := gate.Interval
	if pollInterval <= 0 || pollInterval > time.Second {
		pollInterval = time.Second
	}

	deadline := time.Now().Add(gate.Deadline())
	for time.Now().Before(deadline) {
		container, err := cm.client.InspectContainerWithOptions(docker.InspectContainerOptions{
			ID: containerID,
		})
		if err != nil {
			return fmt.Errorf("inspect container %q: %w", containerID, err)
		}

		if !container.State.Running {
			return fmt.Errorf("%w: exit code %d", ErrContainerExited, container.State.ExitCode)
		}

		switch container.State.Health.Status {
		case healthHealthy:
			return nil
		case healthUnhealthy:
			return ErrUnhealthy
		case healthStarting, "":
			// still within the probe budget
		}

		time.Sleep(pollInterval)
	}

	return ErrHealthCheckTimedOut
}
