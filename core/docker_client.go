package core

import (
	"fmt"
	"io"
	"time"

	docker "github.com/fsouza/go-dockerclient"
)

var dockercfg *docker.AuthConfigurations

func init() {
	dockercfg, _ = docker.NewAuthConfigurationsFromDockerCfg()
}

// DockerOps is a thin wrapper around the Docker client adding logging and
// consistent error wrapping for the operations the pipeline tasks need.
type DockerOps struct {
	client *docker.Client
	logger Logger
}

// NewDockerOps creates a Docker operations wrapper.
func NewDockerOps(client *docker.Client, logger Logger) *DockerOps {
	if logger == nil {
		logger = &SimpleLogger{}
	}
	return &DockerOps{client: client, logger: logger}
}

// SetLogger rebinds the logger, typically to the execution context's logger.
func (d *DockerOps) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// PullImage pulls an image using the local docker credentials when present.
func (d *DockerOps) PullImage(image string) error {
	repository, tag := docker.ParseRepositoryTag(image)
	if tag == "" {
		tag = "latest"
	}

	auth := docker.AuthConfiguration{}
	if dockercfg != nil {
		if cfg, ok := dockercfg.Configs[repository]; ok {
			auth = cfg
		}
	}

	opts := docker.PullImageOptions{Repository: repository, Tag: tag}
	if err := d.client.PullImage(opts, auth); err != nil {
		return WrapImageError("pull", image, err)
	}

	d.logger.Noticef("Pulled image %s", image)
	return nil
}

// HasImageLocally checks if an image exists in the local daemon.
func (d *DockerOps) HasImageLocally(image string) (bool, error) {
	images, err := d.client.ListImages(docker.ListImagesOptions{Filter: image})
	if err != nil {
		return false, WrapImageError("list", image, err)
	}
	return len(images) > 0, nil
}

// EnsureImage makes an image available locally, pulling when forced or when
// the image is missing.
func (d *DockerOps) EnsureImage(image string, forcePull bool) error {
	var pullError error

	if forcePull {
		if pullError = d.PullImage(image); pullError == nil {
			return nil
		}
	}

	hasImage, checkErr := d.HasImageLocally(image)
	if checkErr == nil && hasImage {
		d.logger.Debugf("Found image %s locally", image)
		return nil
	}

	if !forcePull {
		if pullError = d.PullImage(image); pullError == nil {
			return nil
		}
	}

	if pullError != nil {
		return pullError
	}
	return checkErr
}

// BuildImage builds an image from a Dockerfile context, streaming the build
// output to the given writer.
func (d *DockerOps) BuildImage(name, contextDir, dockerfile string, noCache bool, output io.Writer) error {
	opts := docker.BuildImageOptions{
		Name:         name,
		ContextDir:   contextDir,
		Dockerfile:   dockerfile,
		NoCache:      noCache,
		OutputStream: output,
	}
	if dockercfg != nil {
		opts.AuthConfigs = *dockercfg
	}

	if err := d.client.BuildImage(opts); err != nil {
		return WrapImageError("build", name, err)
	}
	return nil
}

// CreateContainer creates a container and wraps errors with the intended name.
func (d *DockerOps) CreateContainer(opts docker.CreateContainerOptions) (*docker.Container, error) {
	c, err := d.client.CreateContainer(opts)
	if err != nil {
		return nil, WrapContainerError("create", opts.Name, err)
	}
	return c, nil
}

// StartContainer starts a created container.
func (d *DockerOps) StartContainer(containerID string) error {
	if err := d.client.StartContainer(containerID, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrContainerStartFailed, containerID, err)
	}
	return nil
}

// StopContainer stops a running container within the given timeout (seconds).
func (d *DockerOps) StopContainer(containerID string, timeout uint) error {
	if err := d.client.StopContainer(containerID, timeout); err != nil {
		return WrapContainerError("stop", containerID, err)
	}
	return nil
}

// RemoveContainer removes a container, optionally with its anonymous volumes.
func (d *DockerOps) RemoveContainer(containerID string, removeVolumes bool) error {
	opts := docker.RemoveContainerOptions{
		ID:            containerID,
		Force:         true,
		RemoveVolumes: removeVolumes,
	}
	if err := d.client.RemoveContainer(opts); err != nil {
		return WrapContainerError("remove", containerID, err)
	}
	return nil
}

// InspectContainer inspects a container by ID or name.
func (d *DockerOps) InspectContainer(containerID string) (*docker.Container, error) {
	c, err := d.client.InspectContainerWithOptions(docker.InspectContainerOptions{ID: containerID})
	if err != nil {
		return nil, WrapContainerError("inspect", containerID, err)
	}
	return c, nil
}

// EnsureNetwork creates a bridge network when no network with the given
// name exists yet.
func (d *DockerOps) EnsureNetwork(networkName string) error {
	networks, err := d.client.FilteredListNetworks(docker.NetworkFilterOpts{
		"name": map[string]bool{networkName: true},
	})
	if err != nil {
		return fmt.Errorf("list networks %q: %w", networkName, err)
	}
	if len(networks) > 0 {
		return nil
	}

	_, err = d.client.CreateNetwork(docker.CreateNetworkOptions{
		Name:   networkName,
		Driver: "bridge",
	})
	if err != nil {
		return fmt.Errorf("create network %q: %w", networkName, err)
	}
	d.logger.Noticef("Created network %s", networkName)
	return nil
}

// ConnectNetwork connects a container to every network matching the name.
func (d *DockerOps) ConnectNetwork(containerID, networkName string) error {
	networks, err := d.client.FilteredListNetworks(docker.NetworkFilterOpts{
		"name": map[string]bool{networkName: true},
	})
	if err != nil {
		return fmt.Errorf("list networks %q: %w", networkName, err)
	}

	for _, network := range networks {
		opts := docker.NetworkConnectionOptions{Container: containerID}
		if err := d.client.ConnectNetwork(network.ID, opts); err != nil {
			return WrapContainerError("connect network", containerID, err)
		}
	}
	return nil
}

// LogsSince copies container logs emitted after `since` into the writers.
func (d *DockerOps) LogsSince(containerID string, since time.Time, outputStream, errorStream io.Writer) error {
	opts := docker.LogsOptions{
		Container:    containerID,
		Stdout:       true,
		Stderr:       true,
		Since:        since.Unix(),
		RawTerminal:  false,
		OutputStream: outputStream,
		ErrorStream:  errorStream,
	}
	if err := d.client.Logs(opts); err != nil {
		return WrapContainerError("get_logs", containerID, err)
	}
	return nil
}

// CreateExec creates an exec instance inside a running container.
func (d *DockerOps) CreateExec(opts docker.CreateExecOptions) (*docker.Exec, error) {
	exec, err := d.client.CreateExec(opts)
	if err != nil {
		return nil, WrapContainerError("create exec", opts.Container, err)
	}
	return exec, nil
}

// StartExec starts a previously created exec instance.
func (d *DockerOps) StartExec(execID string, opts docker.StartExecOptions) error {
	if err := d.client.StartExec(execID, opts); err != nil {
		return fmt.Errorf("start exec %q: %w", execID, err)
	}
	return nil
}

// InspectExec returns the state of a finished exec instance.
func (d *DockerOps) InspectExec(execID string) (*docker.ExecInspect, error) {
	inspect, err := d.client.InspectExec(execID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec %q: %w", execID, err)
	}
	return inspect, nil
}
