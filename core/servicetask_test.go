package core

import (
	"testing"

	docker "github.com/fsouza/go-dockerclient"
)

func TestPortConfig(t *testing.T) {
	exposed, bindings, err := portConfig([]string{"5433:5432"})
	if err != nil {
		t.Fatalf("portConfig error: %v", err)
	}

	port := docker.Port("5432/tcp")
	if _, ok := exposed[port]; !ok {
		t.Fatalf("expected container port %s exposed, got %v", port, exposed)
	}

	bs := bindings[port]
	if len(bs) != 1 || bs[0].HostPort != "5433" {
		t.Fatalf("expected host port 5433 bound to %s, got %v", port, bs)
	}
}

func TestPortConfigEmpty(t *testing.T) {
	exposed, bindings, err := portConfig(nil)
	if err != nil || exposed != nil || bindings != nil {
		t.Fatalf("empty specs should yield nothing: %v %v %v", exposed, bindings, err)
	}
}

func TestPortConfigInvalid(t *testing.T) {
	if _, _, err := portConfig([]string{"not-a-port"}); err == nil {
		t.Fatalf("expected error for invalid port spec")
	}
}

func TestServiceTaskRunRequiresImage(t *testing.T) {
	task := NewServiceTask(nil)
	task.Name = "db"

	e, _ := NewExecution()
	ctx := NewContext(&Pipeline{Logger: &SimpleLogger{}}, task, e)
	if err := task.Run(ctx); err != ErrImageRequired {
		t.Fatalf("expected ErrImageRequired, got %v", err)
	}
}

func TestServiceTaskContainerID(t *testing.T) {
	task := NewServiceTask(nil)
	if task.ContainerID() != "" {
		t.Fatalf("expected empty ID before run")
	}
	task.setContainerID("abc")
	if task.ContainerID() != "abc" {
		t.Fatalf("container ID not stored")
	}
}
