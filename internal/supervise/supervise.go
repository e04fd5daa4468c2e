// Package supervise boots and watches the two child processes that make up
// the agent: the Ollama inference server and the news worker.
package supervise

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Naman6019/News-Agent/internal/config"
	"github.com/Naman6019/News-Agent/internal/ollama"
	"github.com/Naman6019/News-Agent/internal/proc"
)

// Process exit codes for the supervisor.
const (
	// ExitOK is returned after a clean shutdown.
	ExitOK = 0
	// ExitNotReady means the inference server never answered health probes
	// within the retry budget.
	ExitNotReady = 1
	// ExitInferenceDied means the inference process stopped during
	// steady-state monitoring.
	ExitInferenceDied = 2
)

// shutdownGrace is how long children get between SIGTERM and SIGKILL.
const shutdownGrace = 10 * time.Second

// Launcher starts a named child process.
type Launcher func(ctx context.Context, name, command string) (proc.Handle, error)

// Supervisor owns the inference and worker children for the lifetime of the
// process.
type Supervisor struct {
	cfg      *config.Config
	client   *ollama.Client
	launch   Launcher
	snapshot func(ctx context.Context) (string, error)
	logger   *slog.Logger

	inference proc.Handle
	worker    proc.Handle

	workerDeathLogged bool
}

// New creates a supervisor that launches real child processes.
func New(cfg *config.Config, client *ollama.Client, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		client: client,
		launch: func(ctx context.Context, name, command string) (proc.Handle, error) {
			child, err := proc.Launch(ctx, name, command, logger)
			if err != nil {
				return nil, err
			}
			return child, nil
		},
		snapshot: proc.Snapshot,
		logger:   logger,
	}
}

// Boot launches the inference server, waits for it to answer health probes,
// provisions the model, optionally warms it up, and starts the worker. Model
// provisioning and warm-up failures are logged and tolerated; everything else
// is fatal. A failed boot leaves no children behind.
func (s *Supervisor) Boot(ctx context.Context) error {
	inference, err := s.launch(ctx, "ollama", s.cfg.OllamaServeCommand)
	if err != nil {
		return fmt.Errorf("launching inference server: %w", err)
	}
	s.inference = inference

	if err := s.client.WaitUntilReady(ctx, s.cfg.HealthMaxRetries, s.cfg.HealthRetryInterval); err != nil {
		s.terminate(inference)
		return fmt.Errorf("inference server not ready: %w", err)
	}

	if err := s.client.EnsureModel(ctx); err != nil {
		s.logger.Warn("model provisioning failed, continuing", "model", s.client.Model(), "error", err)
	}

	if s.cfg.OllamaWarmup {
		if err := s.client.Warmup(ctx); err != nil {
			s.logger.Warn("model warmup failed, continuing", "error", err)
		}
	}

	worker, err := s.launch(ctx, "worker", s.cfg.WorkerCommand)
	if err != nil {
		s.terminate(inference)
		return fmt.Errorf("launching worker: %w", err)
	}
	s.worker = worker

	s.logger.Info("supervisor boot complete",
		"inference_pid", inference.PID(),
		"worker_pid", worker.PID(),
	)
	return nil
}

// Monitor polls child liveness until ctx is canceled and returns the process
// exit code. A dead inference child is fatal. A dead worker is logged with a
// process listing once and the supervisor stays up so operators can inspect
// the host.
func (s *Supervisor) Monitor(ctx context.Context) int {
	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("supervisor shutting down")
			s.shutdown()
			return ExitOK
		case <-ticker.C:
			if !s.inference.Alive() {
				s.logger.Error("inference process died",
					"name", s.inference.Name(),
					"pid", s.inference.PID(),
				)
				s.shutdown()
				return ExitInferenceDied
			}

			if s.worker != nil && !s.worker.Alive() && !s.workerDeathLogged {
				s.workerDeathLogged = true
				s.logger.Error("worker process died, keeping supervisor alive",
					"name", s.worker.Name(),
					"pid", s.worker.PID(),
				)
				if listing, err := s.snapshot(ctx); err != nil {
					s.logger.Warn("process listing failed", "error", err)
				} else {
					s.logger.Info("process listing at worker death", "ps", listing)
				}
			}
		}
	}
}

// shutdown stops the worker before the inference server it depends on.
func (s *Supervisor) shutdown() {
	if s.worker != nil {
		s.terminate(s.worker)
	}
	if s.inference != nil {
		s.terminate(s.inference)
	}
}

func (s *Supervisor) terminate(handle proc.Handle) {
	if !handle.Alive() {
		return
	}
	if err := handle.Terminate(shutdownGrace); err != nil {
		s.logger.Warn("terminating child failed", "name", handle.Name(), "error", err)
	}
}
