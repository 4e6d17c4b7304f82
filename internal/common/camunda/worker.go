package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/metrics"
	"pm-intelligence/internal/common/observability"
)

// JobHandler completes or fails the job itself; the returned error only
// feeds metrics and logs.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
	Concurrency   int
}

type Worker struct {
	worker   worker.JobWorker
	taskType string
	logger   logger.Logger
}

func NewWorker(
	client zbc.Client,
	taskType string,
	opts WorkerOptions,
	handler JobHandler,
	obs *observability.Observability,
	log logger.Logger,
) *Worker {
	log = log.With(map[string]interface{}{"taskType": taskType})

	step := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler, obs, log)).
		Name("pm-intelligence-" + taskType)
	if opts.MaxJobsActive > 0 {
		step = step.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Timeout > 0 {
		step = step.Timeout(opts.Timeout)
	}
	if opts.Concurrency > 0 {
		step = step.Concurrency(opts.Concurrency)
	}

	w := &Worker{
		worker:   step.Open(),
		taskType: taskType,
		logger:   log,
	}
	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": opts.MaxJobsActive,
	})
	return w
}

func (w *Worker) TaskType() string { return w.taskType }

// Stop closes the job stream and waits for in-flight handlers.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}

func instrument(taskType string, handler JobHandler, obs *observability.Observability, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		start := time.Now()
		err := handler.Handle(client, job)
		elapsed := time.Since(start)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		status := "completed"
		if err != nil {
			status = "failed"
			code := apperrors.Normalize(err).Code
			metrics.WorkerJobsFailed.WithLabelValues(taskType, string(code)).Inc()
			log.Warn("job handler returned error", map[string]interface{}{
				"jobKey":    job.Key,
				"errorCode": string(code),
				"error":     err.Error(),
			})
		} else {
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		}

		ctx := context.Background()
		obs.RecordJobProcessed(ctx, status)
		obs.RecordJobDuration(ctx, elapsed, status)
	}
}
