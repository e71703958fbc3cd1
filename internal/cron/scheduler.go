package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// taskParser accepts five-field expressions and descriptors such as "@every 1m".
var taskParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs housekeeping tasks on their schedules. A task whose
// previous run is still in progress skips the tick.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	tasks  []Task
	locks  map[string]*sync.Mutex
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Tasks must be added before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// Add registers a task. Names must be unique.
func (s *Scheduler) Add(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := t.Name()
	if _, exists := s.locks[name]; exists {
		return fmt.Errorf("cron: duplicate task name %q", name)
	}
	if _, err := taskParser.Parse(t.Schedule()); err != nil {
		return fmt.Errorf("cron: invalid schedule for task %q: %w", name, err)
	}
	s.locks[name] = &sync.Mutex{}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start begins running the registered tasks. Tasks receive a context
// derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithParser(taskParser))

	for _, t := range s.tasks {
		if _, err := c.AddFunc(t.Schedule(), s.wrap(ctx, t)); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for task %q: %w", t.Name(), err)
		}
	}

	s.cron = c
	s.cancel = cancel
	c.Start()
	s.logger.Info("cron: scheduler started", "tasks", len(s.tasks))
	return nil
}

// RunNow runs the named task once, outside its schedule. It returns false
// when no such task exists or the task is already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) bool {
	s.mu.Lock()
	lock := s.locks[name]
	var task Task
	for _, t := range s.tasks {
		if t.Name() == name {
			task = t
		}
	}
	s.mu.Unlock()

	if task == nil || !lock.TryLock() {
		return false
	}
	defer lock.Unlock()
	s.run(ctx, task)
	return true
}

func (s *Scheduler) wrap(ctx context.Context, t Task) func() {
	lock := s.locks[t.Name()]
	return func() {
		if !lock.TryLock() {
			s.logger.Warn("cron: task still running, skipping tick", "task", t.Name())
			return
		}
		defer lock.Unlock()
		s.run(ctx, t)
	}
}

func (s *Scheduler) run(ctx context.Context, t Task) {
	s.logger.Debug("cron: task started", "task", t.Name())
	if err := t.Run(ctx); err != nil {
		s.logger.Error("cron: task failed", "task", t.Name(), "error", err)
		return
	}
	s.logger.Debug("cron: task completed", "task", t.Name())
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
