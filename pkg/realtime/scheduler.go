// Package realtime runs the simulated background activity of a session:
// inventory drift and order status updates, each posted to the
// notification feed on a fixed interval.
package realtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/clock"
)

// Task is a named job run every Interval.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// SchedulerOptions carry the collaborators of a Scheduler.
type SchedulerOptions struct {
	Clock  clock.Clock
	Logger core.Logger
}

// Scheduler runs registered tasks on their intervals, one goroutine per
// task, until stopped. A task error or panic is logged and the task keeps
// its schedule.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	clock  clock.Clock
	logger core.Logger
}

// NewScheduler returns an idle scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Scheduler{
		clock:  opts.Clock,
		logger: core.ComponentOf(opts.Logger, "realtime"),
	}
}

// Register adds a task. Tasks cannot be added while running.
func (s *Scheduler) Register(t Task) error {
	if strings.TrimSpace(t.Name) == "" || t.Interval <= 0 || t.Run == nil {
		return fmt.Errorf("task needs a name, a positive interval and a run func: %w", core.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("register %s: %w", t.Name, core.ErrAlreadyStarted)
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Tasks returns the registered task names.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.Name)
	}
	return names
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the tasks and returns immediately. Tasks stop when ctx is
// done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return core.ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, t := range s.tasks {
		ticker := s.clock.NewTicker(t.Interval)
		s.wg.Add(1)
		go s.loop(runCtx, t, ticker)
	}

	s.logger.Info("Scheduler started", map[string]interface{}{
		"tasks": len(s.tasks),
	})
	return nil
}

// Stop cancels every task and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped", nil)
}

func (s *Scheduler) loop(ctx context.Context, t Task, ticker clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := s.runOnce(ctx, t); err != nil && ctx.Err() == nil {
				s.logger.WarnWithContext(ctx, "Scheduled task failed", map[string]interface{}{
					"task":  t.Name,
					"error": err.Error(),
				})
			}
		}
	}
}

// runOnce runs the task with panic recovery.
func (s *Scheduler) runOnce(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
			s.logger.ErrorWithContext(ctx, "Scheduled task panicked", map[string]interface{}{
				"task":  t.Name,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
		}
	}()
	return t.Run(ctx)
}
