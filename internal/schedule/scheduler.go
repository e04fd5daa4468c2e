package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCycleInFlight rejects a trigger while another digest cycle is running.
var ErrCycleInFlight = errors.New("a digest cycle is already running")

// Clock abstracts wall time so the run loop can be driven in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// RunFunc executes one digest cycle for a slot.
type RunFunc func(ctx context.Context, slot Slot)

// LastRun describes the most recently finished cycle.
type LastRun struct {
	Slot       Slot      `json:"slot"`
	Trigger    string    `json:"trigger"`
	FinishedAt time.Time `json:"finished_at"`
}

// Status is the scheduler state snapshot served by the status endpoint.
type Status struct {
	IsRunning     bool                 `json:"is_running"`
	CycleInFlight bool                 `json:"cycle_in_flight"`
	Timezone      string               `json:"timezone"`
	NextRun       Run                  `json:"next_run"`
	NextRuns      map[string]time.Time `json:"next_runs"`
	LastRun       *LastRun             `json:"last_run,omitempty"`
}

// Scheduler sleeps until the next planned run and executes cycles one at a
// time. A cycle overrunning into the next slot delays that slot rather than
// overlapping it.
type Scheduler struct {
	times  *Times
	clock  Clock
	run    RunFunc
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	inFlight bool
	lastRun  *LastRun
}

// NewScheduler wires the run calculator to the cycle callback.
func NewScheduler(times *Times, clock Clock, run RunFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		times:  times,
		clock:  clock,
		run:    run,
		logger: logger,
	}
}

// Start blocks, running digest cycles at their planned times until the
// context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduler started", "timezone", s.times.Timezone())

	for {
		next := s.times.Next(s.clock.Now())
		wait := next.At.Sub(s.clock.Now())
		if wait < 0 {
			wait = 0
		}
		s.logger.Info("next digest planned", "slot", next.Slot, "at", next.At.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-s.clock.After(wait):
			if !s.acquire() {
				s.logger.Warn("skipping planned run, cycle still in flight", "slot", next.Slot)
				continue
			}
			s.run(ctx, next.Slot)
			s.release(next.Slot, "schedule")
		}
	}
}

// Trigger starts a manual cycle in the background. It fails fast when
// another cycle is already running.
func (s *Scheduler) Trigger(slot Slot) error {
	if !s.acquire() {
		return ErrCycleInFlight
	}

	s.logger.Info("manual digest triggered", "slot", slot)
	go func() {
		defer s.release(slot, "manual")
		s.run(context.Background(), slot)
	}()
	return nil
}

// Status reports the loop state and the upcoming runs.
func (s *Scheduler) Status() Status {
	now := s.clock.Now()
	morning, evening := s.times.NextRuns(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		IsRunning:     s.running,
		CycleInFlight: s.inFlight,
		Timezone:      s.times.Timezone(),
		NextRun:       s.times.Next(now),
		NextRuns: map[string]time.Time{
			string(SlotMorning): morning.At,
			string(SlotEvening): evening.At,
		},
		LastRun: s.lastRun,
	}
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Scheduler) release(slot Slot, trigger string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	s.lastRun = &LastRun{
		Slot:       slot,
		Trigger:    trigger,
		FinishedAt: s.clock.Now(),
	}
}
