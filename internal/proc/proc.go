// Package proc wraps child-process launch and lifecycle tracking for the
// supervisor.
package proc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

var commandContext = exec.CommandContext

// Handle is the lifecycle view the supervisor holds on a child process.
type Handle interface {
	Name() string
	PID() int
	Alive() bool
	Wait() error
	Terminate(grace time.Duration) error
}

// Child is a Handle backed by a real OS process.
type Child struct {
	name string
	cmd  *exec.Cmd

	done    chan struct{}
	waitErr error
	mu      sync.Mutex
}

// Launch splits command into argv, starts it, and reaps it in the background
// so Alive stays accurate without callers having to poll Wait.
func Launch(ctx context.Context, name, command string, logger *slog.Logger) (*Child, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command for %s", name)
	}

	cmd := commandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}
	logger.Info("child process started", "name", name, "pid", cmd.Process.Pid, "command", command)

	child := &Child{
		name: name,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go child.reap()
	return child, nil
}

func (c *Child) reap() {
	err := c.cmd.Wait()
	c.mu.Lock()
	c.waitErr = err
	c.mu.Unlock()
	close(c.done)
}

// Name returns the label the child was launched under.
func (c *Child) Name() string {
	return c.name
}

// PID returns the operating system process ID.
func (c *Child) PID() int {
	return c.cmd.Process.Pid
}

// Alive reports whether the process has not exited yet.
func (c *Child) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the process exits and returns its exit error, nil for a
// zero exit status.
func (c *Child) Wait() error {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitErr
}

// Terminate asks the process to stop with SIGTERM, escalating to SIGKILL
// after the grace period. Terminating an already-dead process is a no-op.
func (c *Child) Terminate(grace time.Duration) error {
	if !c.Alive() {
		return nil
	}

	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if !c.Alive() {
			return nil
		}
		return fmt.Errorf("signaling %s: %w", c.name, err)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(grace):
	}

	if err := c.cmd.Process.Kill(); err != nil && c.Alive() {
		return fmt.Errorf("killing %s: %w", c.name, err)
	}
	<-c.done
	return nil
}

// Snapshot returns a process listing for post-mortem logging when a child
// dies unexpectedly.
func Snapshot(ctx context.Context) (string, error) {
	out, err := commandContext(ctx, "ps", "aux").Output()
	if err != nil {
		return "", fmt.Errorf("listing processes: %w", err)
	}
	return string(out), nil
}

var _ Handle = (*Child)(nil)
