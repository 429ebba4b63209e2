package core

import (
	"fmt"
	"sync"

	"github.com/docker/go-connections/nat"
	docker "github.com/fsouza/go-dockerclient"
	"github.com/gobs/args"
)

// ServiceTask starts a long-lived container the test run depends on,
// typically the PostgreSQL server. Run returns once the container's health
// gate reports healthy; Stop tears the container down at the end of the
// pipeline regardless of the run's outcome.
type ServiceTask struct {
	BareTask `mapstructure:",squash"`
	Client   *docker.Client `json:"-"`

	Image         string   `hash:"true"`
	ContainerName string   `gcfg:"container-name" mapstructure:"container-name" hash:"true"`
	Pull          string   `default:"true" hash:"true"`
	Ports         []string `mapstructure:"ports" hash:"true"`
	Environment   []string `mapstructure:"environment" hash:"true"`
	Volume        []string `hash:"true"`
	Network       string   `hash:"true"`

	Healthcheck HealthGate `mapstructure:"healthcheck"`

	dockerOps *DockerOps        `json:"-"`
	monitor   *ContainerMonitor `json:"-"`

	containerID string
	mu          sync.RWMutex // Protect containerID access
}

func NewServiceTask(c *docker.Client) *ServiceTask {
	return &ServiceTask{
		Client:    c,
		dockerOps: NewDockerOps(c, nil),
		monitor:   NewContainerMonitor(c, &SimpleLogger{}),
	}
}

// InitializeRuntimeFields initializes fields that depend on the Docker
// client. Called during configuration loading, after Client is set.
func (t *ServiceTask) InitializeRuntimeFields() {
	if t.Client == nil {
		return
	}
	if t.dockerOps == nil {
		t.dockerOps = NewDockerOps(t.Client, nil)
	}
	if t.monitor == nil {
		t.monitor = NewContainerMonitor(t.Client, &SimpleLogger{})
	}
}

func (t *ServiceTask) setContainerID(id string) {
	t.mu.Lock()
	t.containerID = id
	t.mu.Unlock()
}

// ContainerID returns the running container's ID, empty before Run.
func (t *ServiceTask) ContainerID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.containerID
}

// Run creates and starts the service container, then blocks on the health
// gate. Dependent stages must not start until this returns nil.
func (t *ServiceTask) Run(ctx *Context) error {
	t.dockerOps.SetLogger(ctx.Logger)
	t.monitor.logger = ctx.Logger

	if t.Image == "" {
		return ErrImageRequired
	}

	pull := parseBoolOption(t.Pull)
	if err := t.dockerOps.EnsureImage(t.Image, pull); err != nil {
		return err
	}

	container, err := t.createContainer()
	if err != nil {
		return err
	}
	t.setContainerID(container.ID)

	if err := t.dockerOps.StartContainer(container.ID); err != nil {
		return err
	}

	if t.Healthcheck.Test == "" {
		ctx.Log("Service started without a health gate")
		return nil
	}

	ctx.Log(fmt.Sprintf("Waiting for service to become healthy (budget %s)", t.Healthcheck.Deadline()))
	if err := t.monitor.WaitForHealthy(container.ID, t.Healthcheck); err != nil {
		if logsErr := t.dockerOps.LogsSince(container.ID, ctx.Execution.Date,
			ctx.Execution.OutputStream, ctx.Execution.ErrorStream); logsErr != nil {
			ctx.Warn("failed to fetch service logs: " + logsErr.Error())
		}
		return fmt.Errorf("service %q: %w", t.Name, err)
	}

	ctx.Log("Service is healthy")
	return nil
}

// Stop stops and removes the service container together with its anonymous
// volumes, mirroring `docker compose down -v`. When no container was started
// by this run, it looks up a leftover container by name so an interrupted
// earlier run does not collide on names or host ports.
func (t *ServiceTask) Stop(ctx *Context) error {
	id := t.ContainerID()
	if id == "" {
		name := t.ContainerName
		if name == "" {
			name = t.Name
		}
		leftover, err := t.dockerOps.InspectContainer(name)
		if err != nil {
			return nil
		}
		id = leftover.ID
	}

	if err := t.dockerOps.StopContainer(id, 10); err != nil {
		ctx.Warn("failed to stop service container: " + err.Error())
	}
	if err := t.dockerOps.RemoveContainer(id, true); err != nil {
		return err
	}
	t.setContainerID("")
	return nil
}

func (t *ServiceTask) createContainer() (*docker.Container, error) {
	exposed, bindings, err := portConfig(t.Ports)
	if err != nil {
		return nil, err
	}

	name := t.ContainerName
	if name == "" {
		name = t.Name
	}

	var cmd []string
	if t.Command != "" {
		cmd = args.GetArgs(t.Command)
	}

	opts := docker.CreateContainerOptions{
		Name: name,
		Config: &docker.Config{
			Image:        t.Image,
			AttachStdout: true,
			AttachStderr: true,
			Cmd:          cmd,
			Env:          t.Environment,
			ExposedPorts: exposed,
			Healthcheck:  t.Healthcheck.DockerConfig(),
		},
		NetworkingConfig: &docker.NetworkingConfig{},
		HostConfig: &docker.HostConfig{
			Binds:        t.Volume,
			PortBindings: bindings,
		},
	}

	c, err := t.dockerOps.CreateContainer(opts)
	if err != nil {
		return nil, err
	}

	if t.Network != "" {
		if err := t.dockerOps.EnsureNetwork(t.Network); err != nil {
			return c, err
		}
		if err := t.dockerOps.ConnectNetwork(c.ID, t.Network); err != nil {
			return c, err
		}
	}

	return c, nil
}

// portConfig parses compose-style port specs ("5433:5432") into the exposed
// port set and host bindings the daemon expects.
func portConfig(specs []string) (map[docker.Port]struct{}, map[docker.Port][]docker.PortBinding, error) {
	if len(specs) == 0 {
		return nil, nil, nil
	}

	exposed, bindings, err := nat.ParsePortSpecs(specs)
	if err != nil {
		return nil, nil, fmt.Errorf("parse port specs %v: %w", specs, err)
	}

	exp := make(map[docker.Port]struct{}, len(exposed))
	for p := range exposed {
		exp[docker.Port(p)] = struct{}{}
	}

	bind := make(map[docker.Port][]docker.PortBinding, len(bindings))
	for p, bs := range bindings {
		converted := make([]docker.PortBinding, 0, len(bs))
		for _, b := range bs {
			converted = append(converted, docker.PortBinding{
				HostIP:   b.HostIP,
				HostPort: b.HostPort,
			})
		}
		bind[docker.Port(p)] = converted
	}

	return exp, bind, nil
}
