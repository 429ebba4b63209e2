package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComposeFile = `
services:
  db:
    image: postgres:15
    ports:
      - "5433:5432"
    environment:
      POSTGRES_USER: postgres
      POSTGRES_PASSWORD: postgres
      POSTGRES_DB: test_finance_bot
    healthcheck:
      test: ["CMD-SHELL", "pg_isready -U postgres -d test_finance_bot"]
      interval: 5s
      timeout: 5s
      retries: 5
      start_period: 10s

  test-runner:
    image: finance-bot-test:latest
    build:
      context: .
      dockerfile: Dockerfile
    command: pytest tests/ -v --tb=short --maxfail=5
    environment:
      - TEST_DATABASE_URL=postgresql://postgres:postgres@db:5432/test_finance_bot
      - PYTHONPATH=/app
    depends_on:
      db:
        condition: service_healthy
`

func TestComposeImport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "docker-compose.test.yml")
	output := filepath.Join(dir, "finbench.ini")
	require.NoError(t, os.WriteFile(input, []byte(testComposeFile), 0o600))

	cmd := &ComposeImportCommand{
		Input:   input,
		Output:  output,
		Network: "finance-bot-test",
		Logger:  &testLogger{},
	}
	require.NoError(t, cmd.Execute(nil))

	c, err := BuildFromFile(output, &testLogger{})
	require.NoError(t, err)

	svc := c.Services["db"]
	require.NotNil(t, svc)
	assert.Equal(t, "postgres:15", svc.Image)
	assert.Equal(t, []string{"5433:5432"}, svc.Ports)
	assert.Equal(t, "pg_isready -U postgres -d test_finance_bot", svc.Healthcheck.Test)
	assert.Equal(t, 5*time.Second, svc.Healthcheck.Interval)
	assert.Equal(t, 5, svc.Healthcheck.Retries)
	assert.Equal(t, 10*time.Second, svc.Healthcheck.StartPeriod)
	// Map-form environment comes out sorted by key.
	assert.Equal(t, []string{
		"POSTGRES_DB=test_finance_bot",
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_USER=postgres",
	}, svc.Environment)

	task := c.Tasks["test-runner"]
	require.NotNil(t, task)
	assert.Equal(t, "finance-bot-test:latest", task.Image)
	assert.Equal(t, "pytest tests/ -v --tb=short --maxfail=5", task.Command)
	assert.Contains(t, task.Environment, "PYTHONPATH=/app")
	assert.Equal(t, "finance-bot-test", task.Network)

	build := c.Builds["test-runner-image"]
	require.NotNil(t, build)
	assert.Equal(t, ".", build.Context)
	assert.Equal(t, "Dockerfile", build.Dockerfile)
}

func TestComposeImportMissingFile(t *testing.T) {
	cmd := &ComposeImportCommand{
		Input:  filepath.Join(t.TempDir(), "nope.yml"),
		Output: filepath.Join(t.TempDir(), "out.ini"),
		Logger: &testLogger{},
	}
	assert.Error(t, cmd.Execute(nil))
}

func TestComposeImportEmptyFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "compose.yml")
	require.NoError(t, os.WriteFile(input, []byte("services: {}\n"), 0o600))

	cmd := &ComposeImportCommand{
		Input:  input,
		Output: filepath.Join(dir, "out.ini"),
		Logger: &testLogger{},
	}
	assert.Error(t, cmd.Execute(nil))
}

func TestIsTaskClassification(t *testing.T) {
	cmd := &ComposeImportCommand{}

	assert.True(t, cmd.isTask(composeService{
		Image:     "finance-bot-test:latest",
		DependsOn: composeDependsOn{"db"},
	}))
	assert.False(t, cmd.isTask(composeService{
		Image: "postgres:15",
		Ports: []string{"5433:5432"},
	}))
	assert.False(t, cmd.isTask(composeService{
		Image:       "redis:7",
		DependsOn:   composeDependsOn{"db"},
		Healthcheck: &composeHealth{Test: "redis-cli ping"},
	}))
}
