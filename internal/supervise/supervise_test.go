package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Naman6019/News-Agent/internal/config"
	"github.com/Naman6019/News-Agent/internal/ollama"
	"github.com/Naman6019/News-Agent/internal/proc"
)

type fakeHandle struct {
	name string
	pid  int

	mu             sync.Mutex
	alive          bool
	terminateCalls int
}

var _ proc.Handle = (*fakeHandle)(nil)

func (h *fakeHandle) Name() string {
	return h.name
}

func (h *fakeHandle) PID() int {
	return h.pid
}

func (h *fakeHandle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive
}

func (h *fakeHandle) Wait() error {
	return nil
}

func (h *fakeHandle) Terminate(grace time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminateCalls++
	h.alive = false
	return nil
}

func (h *fakeHandle) kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive = false
}

func (h *fakeHandle) terminated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminateCalls
}

type fakeLauncher struct {
	mu       sync.Mutex
	commands []string
	handles  map[string]*fakeHandle
	failures map[string]error
	nextPID  int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		handles:  make(map[string]*fakeHandle),
		failures: make(map[string]error),
		nextPID:  100,
	}
}

func (l *fakeLauncher) launch(ctx context.Context, name, command string) (proc.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, command)
	if err := l.failures[name]; err != nil {
		return nil, err
	}
	l.nextPID++
	handle := &fakeHandle{name: name, pid: l.nextPID, alive: true}
	l.handles[name] = handle
	return handle, nil
}

func (l *fakeLauncher) launched() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.commands...)
}

func testSupervisorConfig(ollamaURL string) *config.Config {
	return &config.Config{
		OllamaBaseURL:       ollamaURL,
		OllamaModel:         "gemma3:4b",
		OllamaTimeout:       2 * time.Second,
		OllamaMaxTokens:     500,
		OllamaTemperature:   0.3,
		OllamaWarmup:        true,
		OllamaServeCommand:  "ollama serve",
		WorkerCommand:       "news-agent-server",
		HealthMaxRetries:    3,
		HealthRetryInterval: time.Millisecond,
		MonitorInterval:     10 * time.Millisecond,
	}
}

func newTestSupervisor(cfg *config.Config, launcher *fakeLauncher) *Supervisor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	supervisor := New(cfg, ollama.NewClient(cfg, logger), logger)
	if launcher != nil {
		supervisor.launch = launcher.launch
	}
	return supervisor
}

func TestBootStartsChildrenInOrder(t *testing.T) {
	var generateCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			fmt.Fprint(w, `{"models":[{"name":"gemma3:4b"}]}`)
		case "/api/generate":
			atomic.AddInt32(&generateCalls, 1)
			fmt.Fprint(w, `{"response":"Hello!"}`)
		case "/api/pull":
			t.Errorf("Unexpected pull for a model that is already present")
		}
	}))
	defer server.Close()

	launcher := newFakeLauncher()
	supervisor := newTestSupervisor(testSupervisorConfig(server.URL), launcher)

	if err := supervisor.Boot(context.Background()); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}

	commands := launcher.launched()
	if len(commands) != 2 || commands[0] != "ollama serve" || commands[1] != "news-agent-server" {
		t.Errorf("Expected [ollama serve, news-agent-server], got %v", commands)
	}
	if atomic.LoadInt32(&generateCalls) != 1 {
		t.Errorf("Expected 1 warmup call, got %d", generateCalls)
	}
	if !supervisor.inference.Alive() || !supervisor.worker.Alive() {
		t.Error("Expected both children alive after boot")
	}
}

func TestBootSkipsWarmupWhenDisabled(t *testing.T) {
	var generateCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			fmt.Fprint(w, `{"models":[{"name":"gemma3:4b"}]}`)
		case "/api/generate":
			atomic.AddInt32(&generateCalls, 1)
			fmt.Fprint(w, `{"response":"Hello!"}`)
		}
	}))
	defer server.Close()

	cfg := testSupervisorConfig(server.URL)
	cfg.OllamaWarmup = false
	supervisor := newTestSupervisor(cfg, newFakeLauncher())

	if err := supervisor.Boot(context.Background()); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	if atomic.LoadInt32(&generateCalls) != 0 {
		t.Errorf("Expected no warmup call, got %d", generateCalls)
	}
}

func TestBootFailsWhenHealthNeverReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "starting up", http.StatusInternalServerError)
	}))
	defer server.Close()

	launcher := newFakeLauncher()
	supervisor := newTestSupervisor(testSupervisorConfig(server.URL), launcher)

	err := supervisor.Boot(context.Background())
	if err == nil {
		t.Fatal("Expected boot to fail when health probes never pass")
	}
	if !strings.Contains(err.Error(), "not ready") {
		t.Errorf("Expected readiness error, got: %v", err)
	}

	commands := launcher.launched()
	if len(commands) != 1 {
		t.Errorf("Expected only the inference launch, got %v", commands)
	}
	if launcher.handles["ollama"].terminated() != 1 {
		t.Error("Expected the inference child to be terminated after failed boot")
	}
}

func TestBootToleratesModelProvisioningFailure(t *testing.T) {
	var pullCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			fmt.Fprint(w, `{"models":[]}`)
		case "/api/pull":
			atomic.AddInt32(&pullCalls, 1)
			http.Error(w, "registry unreachable", http.StatusInternalServerError)
		case "/api/generate":
			fmt.Fprint(w, `{"response":"Hello!"}`)
		}
	}))
	defer server.Close()

	launcher := newFakeLauncher()
	supervisor := newTestSupervisor(testSupervisorConfig(server.URL), launcher)

	if err := supervisor.Boot(context.Background()); err != nil {
		t.Fatalf("Expected boot to tolerate pull failure, got: %v", err)
	}
	if atomic.LoadInt32(&pullCalls) == 0 {
		t.Error("Expected a pull attempt for the missing model")
	}
	if len(launcher.launched()) != 2 {
		t.Errorf("Expected both children launched, got %v", launcher.launched())
	}
}

func TestBootFailsWhenWorkerLaunchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			fmt.Fprint(w, `{"models":[{"name":"gemma3:4b"}]}`)
			return
		}
		fmt.Fprint(w, `{"response":"Hello!"}`)
	}))
	defer server.Close()

	launcher := newFakeLauncher()
	launcher.failures["worker"] = errors.New("executable not found")
	supervisor := newTestSupervisor(testSupervisorConfig(server.URL), launcher)

	err := supervisor.Boot(context.Background())
	if err == nil {
		t.Fatal("Expected boot to fail when the worker cannot launch")
	}
	if !strings.Contains(err.Error(), "launching worker") {
		t.Errorf("Expected worker launch error, got: %v", err)
	}
	if launcher.handles["ollama"].terminated() != 1 {
		t.Error("Expected the inference child to be terminated after failed boot")
	}
}

func TestMonitorExitsWhenInferenceDies(t *testing.T) {
	supervisor := newTestSupervisor(testSupervisorConfig("http://localhost:0"), nil)
	inference := &fakeHandle{name: "ollama", pid: 101, alive: true}
	worker := &fakeHandle{name: "worker", pid: 102, alive: true}
	supervisor.inference = inference
	supervisor.worker = worker

	go func() {
		time.Sleep(25 * time.Millisecond)
		inference.kill()
	}()

	code := supervisor.Monitor(context.Background())
	if code != ExitInferenceDied {
		t.Errorf("Expected exit code %d, got %d", ExitInferenceDied, code)
	}
	if worker.terminated() != 1 {
		t.Error("Expected the worker to be terminated on fatal exit")
	}
}

func TestMonitorReportsWorkerDeathOnce(t *testing.T) {
	supervisor := newTestSupervisor(testSupervisorConfig("http://localhost:0"), nil)
	supervisor.inference = &fakeHandle{name: "ollama", pid: 101, alive: true}
	supervisor.worker = &fakeHandle{name: "worker", pid: 102, alive: false}

	var snapshotCalls int32
	supervisor.snapshot = func(ctx context.Context) (string, error) {
		atomic.AddInt32(&snapshotCalls, 1)
		return "PID TTY TIME CMD", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	code := supervisor.Monitor(ctx)
	if code != ExitOK {
		t.Errorf("Expected exit code %d after cancellation, got %d", ExitOK, code)
	}
	if calls := atomic.LoadInt32(&snapshotCalls); calls != 1 {
		t.Errorf("Expected exactly 1 process listing, got %d", calls)
	}
}

func TestMonitorCleanShutdown(t *testing.T) {
	supervisor := newTestSupervisor(testSupervisorConfig("http://localhost:0"), nil)
	inference := &fakeHandle{name: "ollama", pid: 101, alive: true}
	worker := &fakeHandle{name: "worker", pid: 102, alive: true}
	supervisor.inference = inference
	supervisor.worker = worker

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	code := supervisor.Monitor(ctx)
	if code != ExitOK {
		t.Errorf("Expected exit code %d, got %d", ExitOK, code)
	}
	if inference.terminated() != 1 || worker.terminated() != 1 {
		t.Error("Expected both children terminated on shutdown")
	}
}
