// Package scheduler runs full relationship inference on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/intelligence/inference"
)

const (
	JobName        = "infer-all-relationships"
	DefaultTimeout = 30 * time.Minute
)

var ErrDisabled = errors.New("inference schedule disabled")

// Runner is satisfied by *inference.Engine.
type Runner interface {
	InferAll(ctx context.Context, opts inference.Options) (*inference.Summary, error)
}

type InferenceScheduler struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	runner    Runner
	opts      inference.Options
	timeout   time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	last    *inference.Summary
	lastErr error
	runs    int
}

type Option func(*InferenceScheduler)

func WithOptions(o inference.Options) Option {
	return func(s *InferenceScheduler) { s.opts = o }
}

func WithTimeout(d time.Duration) Option {
	return func(s *InferenceScheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New registers the inference job. Overlapping runs are skipped, not queued.
// An empty expression returns ErrDisabled.
func New(runner Runner, cron string, log logger.Logger, opts ...Option) (*InferenceScheduler, error) {
	cron = strings.TrimSpace(cron)
	if cron == "" {
		return nil, ErrDisabled
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &InferenceScheduler{
		scheduler: sched,
		runner:    runner,
		timeout:   DefaultTimeout,
		logger:    logger.ForComponent(log, "inference-scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}

	job, err := sched.NewJob(
		gocron.CronJob(cron, false),
		gocron.NewTask(func() {
			_, _ = s.RunOnce(context.Background())
		}),
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to create job for %q: %w", cron, err)
	}
	s.job = job

	s.logger.Info("inference schedule registered", map[string]interface{}{
		"cron": cron,
	})
	return s, nil
}

func (s *InferenceScheduler) Start() {
	s.scheduler.Start()
}

func (s *InferenceScheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// NextRun is the next scheduled start time.
func (s *InferenceScheduler) NextRun() (time.Time, error) {
	return s.job.NextRun()
}

// Trigger asks the running scheduler to start the job now.
func (s *InferenceScheduler) Trigger() error {
	return s.job.RunNow()
}

// RunOnce runs inference synchronously and records the outcome.
func (s *InferenceScheduler) RunOnce(ctx context.Context) (*inference.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.runner.InferAll(ctx, s.opts)

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	if summary != nil {
		s.last = summary
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled inference failed", map[string]interface{}{
			"error": err.Error(),
		})
		return summary, err
	}
	s.logger.Info("scheduled inference completed", map[string]interface{}{
		"runId":      summary.RunID,
		"successful": summary.SuccessfulInferences,
		"failed":     summary.FailedInferences,
	})
	return summary, nil
}

// Status reports the number of runs and the latest summary and error.
func (s *InferenceScheduler) Status() (runs int, last *inference.Summary, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.last, s.lastErr
}
