package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	docker "github.com/fsouza/go-dockerclient"

	"github.com/finbot/finbench/core"
	"github.com/finbot/finbench/metrics"
)

// DaemonCommand runs the pipeline on a schedule and serves metrics about
// past runs.
type DaemonCommand struct {
	ConfigFile  string `long:"config" env:"FINBENCH_CONFIG" description:"configuration file" default:"./finbench.ini"`
	LogLevel    string `long:"log-level" env:"FINBENCH_LOG_LEVEL" description:"Set log level (overrides config)"`
	MetricsAddr string `long:"metrics-address" env:"FINBENCH_METRICS_ADDRESS" description:"metrics listen address"`
	RunOnStart  bool   `long:"run-on-start" env:"FINBENCH_RUN_ON_START" description:"run the pipeline immediately on startup"`
	Logger      core.Logger

	scheduler     *core.Scheduler
	metricsServer *http.Server
	recorder      *metrics.Recorder
	client        *docker.Client
	done          chan struct{}
}

// Execute runs the daemon until interrupted.
func (c *DaemonCommand) Execute(_ []string) error {
	if err := c.boot(); err != nil {
		return err
	}
	if err := c.start(); err != nil {
		return err
	}
	return c.shutdown()
}

func (c *DaemonCommand) boot() error {
	ApplyLogLevel(c.LogLevel)
	c.done = make(chan struct{})

	config, err := loadConfig(c.ConfigFile, c.Logger)
	if err != nil {
		return err
	}
	if c.LogLevel == "" {
		ApplyLogLevel(config.Global.LogLevel)
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = config.Global.MetricsAddr
	}

	client, err := docker.NewClientFromEnv()
	if err != nil {
		return err
	}
	c.client = client

	p, err := config.InitializePipeline(client)
	if err != nil {
		return err
	}

	c.recorder = metrics.NewRecorder()
	c.scheduler = core.NewScheduler(c.Logger)
	c.scheduler.SetOnResult(c.recorder.RecordResult)

	if err := c.scheduler.AddPipeline(config.Global.Schedule, p, c.RunOnStart); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.recorder.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := c.client.Ping(); err != nil {
			http.Error(w, "docker unreachable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	c.metricsServer = &http.Server{
		Addr:              c.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return nil
}

func (c *DaemonCommand) start() error {
	if err := c.scheduler.Start(); err != nil {
		return err
	}

	c.Logger.Noticef("Serving metrics on %s", c.MetricsAddr)
	go func() {
		if err := c.metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			c.Logger.Errorf("metrics server: %v", err)
			close(c.done)
		}
	}()

	return nil
}

func (c *DaemonCommand) shutdown() error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		c.Logger.Noticef("Shutting down")
	case <-c.done:
	}

	c.scheduler.StopAndWait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.metricsServer.Shutdown(ctx)
}
