// Package scheduler runs the nightly AR/AP batch jobs in-process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// tickInterval is how often the scheduler checks whether the daily run is due
const tickInterval = time.Minute

// Task is one named step of the daily run.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config holds scheduler configuration
type Config struct {
	// DailySchedule is a "minute hour * * *" expression; only minute and hour are read
	DailySchedule string
	// JobTimeout bounds a single task attempt
	JobTimeout time.Duration
	// RetryAttempts is how many times a failed task is retried
	RetryAttempts int
	// RetryDelay is the pause between attempts
	RetryDelay time.Duration
}

// DefaultConfig runs at 02:00 with three retries five minutes apart
func DefaultConfig() Config {
	return Config{
		DailySchedule: "0 2 * * *",
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Minute,
	}
}

// ParseCronSchedule extracts hour and minute from "minute hour * * *".
// An empty expression yields 02:00.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour, minute = 2, 0
	parts := strings.Fields(cronExpr)
	if len(parts) == 0 {
		return hour, minute, nil
	}
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: %q needs minute and hour", ErrInvalidConfig, cronExpr)
	}

	if minute, err = parseField(parts[0], 0, 59); err != nil {
		return 0, 0, err
	}
	if hour, err = parseField(parts[1], 0, 23); err != nil {
		return 0, 0, err
	}
	return hour, minute, nil
}

func parseField(s string, lo, hi int) (int, error) {
	if s == "*" {
		return lo, nil
	}
	val := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidConfig, s)
		}
		val = val*10 + int(c-'0')
	}
	if val < lo || val > hi {
		return 0, fmt.Errorf("%w: %d outside %d-%d", ErrInvalidConfig, val, lo, hi)
	}
	return val, nil
}

// DailyScheduler runs its tasks once a day at the configured time, in
// registration order. A failing task is retried and then skipped; the
// remaining tasks still run.
type DailyScheduler struct {
	config Config
	hour   int
	minute int
	clock  shared.Clock
	logger *zap.Logger
	tasks  []Task

	mu        sync.Mutex
	lastRun   time.Time
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewDailyScheduler creates a stopped scheduler
func NewDailyScheduler(cfg Config, clock shared.Clock, logger *zap.Logger) (*DailyScheduler, error) {
	hour, minute, err := ParseCronSchedule(cfg.DailySchedule)
	if err != nil {
		return nil, err
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig().JobTimeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyScheduler{
		config: cfg,
		hour:   hour,
		minute: minute,
		clock:  clock,
		logger: logger.Named("scheduler"),
	}, nil
}

// Register appends a task. Call before Start.
func (s *DailyScheduler) Register(name string, run func(ctx context.Context) error) {
	s.tasks = append(s.tasks, Task{Name: name, Run: run})
}

// Start launches the ticker loop
func (s *DailyScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("daily scheduler started",
		zap.Int("hour", s.hour),
		zap.Int("minute", s.minute),
		zap.Int("tasks", len(s.tasks)),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run, bounded by ctx
func (s *DailyScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("daily scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("daily scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *DailyScheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *DailyScheduler) tick(ctx context.Context) {
	now := s.clock.Now()
	if !s.due(now) {
		return
	}
	s.mu.Lock()
	s.lastRun = shared.StartOfDay(now)
	s.mu.Unlock()

	ctx, runLog := logger.WithJobID(ctx, s.logger, "daily-"+now.Format("20060102"))
	if err := s.RunNow(ctx); err != nil {
		runLog.Error("daily run finished with failures", zap.Error(err))
	}
}

// due reports whether today's run time has passed and today has not run yet.
func (s *DailyScheduler) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := shared.StartOfDay(now)
	if !s.lastRun.IsZero() && !s.lastRun.Before(today) {
		return false
	}
	at := today.Add(time.Duration(s.hour)*time.Hour + time.Duration(s.minute)*time.Minute)
	return !now.Before(at)
}

// RunNow runs every task once, with retries, and returns the joined failures.
func (s *DailyScheduler) RunNow(ctx context.Context) error {
	var errs []error
	for _, task := range s.tasks {
		if err := s.runTask(ctx, task); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	return errors.Join(errs...)
}

func (s *DailyScheduler) runTask(ctx context.Context, task Task) error {
	log := logger.WithLogger(ctx, s.logger).With(zap.String("task", task.Name))
	var err error
	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			log.Info("retrying task", zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}

		start := time.Now()
		taskCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
		err = task.Run(taskCtx)
		cancel()
		if err == nil {
			log.Info("task completed", zap.Duration("took", time.Since(start)))
			return nil
		}
		log.Error("task failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return err
}
