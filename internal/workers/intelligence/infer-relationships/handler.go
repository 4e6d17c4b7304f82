package inferrelationships

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/intelligence/inference"
	"pm-intelligence/pkg/registry"
)

const (
	TaskType = "infer-relationships"
)

// Inferrer is satisfied by *inference.Engine.
type Inferrer interface {
	InferAll(ctx context.Context, opts inference.Options) (*inference.Summary, error)
	InferByPattern(ctx context.Context, name string, opts inference.Options) (*inference.PatternResult, error)
}

type Handler struct {
	config   *Config
	engine   Inferrer
	activity registry.Activity
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, engine Inferrer, activity registry.Activity, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		engine:   engine,
		activity: activity,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}
	return h.completeJob(client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	res, err := h.activity.ValidateInput(variables)
	if err != nil {
		return nil, apperrors.NewConfigurationError(err.Error())
	}
	if !res.Valid {
		return nil, apperrors.NewInputValidationError(res.String())
	}
	var input Input
	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &input); err != nil {
			return nil, apperrors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
		}
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Pattern != "" {
		return h.executePattern(ctx, input)
	}

	summary, err := h.engine.InferAll(ctx, input.options())
	if err != nil {
		if summary != nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("inference", err)
		}
		return nil, err
	}

	h.logger.Info("inference run finished", map[string]interface{}{
		"runId":      summary.RunID,
		"successful": summary.SuccessfulInferences,
		"failed":     summary.FailedInferences,
	})
	return &Output{
		RunID:                      summary.RunID,
		DryRun:                     summary.DryRun,
		TotalInferences:            summary.TotalInferences,
		SuccessfulInferences:       summary.SuccessfulInferences,
		FailedInferences:           summary.FailedInferences,
		RelationshipTypesBreakdown: summary.RelationshipTypesBreakdown,
		ProcessingTimeMs:           summary.ProcessingTimeMs,
		PatternResults:             summary.PatternResults,
	}, nil
}

func (h *Handler) executePattern(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.engine.InferByPattern(ctx, input.Pattern, input.options())
	if err != nil {
		return nil, err
	}

	breakdown := map[string]int{}
	if n := res.Successful(); n > 0 {
		breakdown[res.RelationshipType] = n
	}
	h.logger.Info("inference pattern finished", map[string]interface{}{
		"pattern":    res.Pattern,
		"successful": res.Successful(),
		"failed":     res.Failed,
	})
	return &Output{
		DryRun:                     input.DryRun,
		TotalInferences:            res.Candidates,
		SuccessfulInferences:       res.Successful(),
		FailedInferences:           res.Failed,
		RelationshipTypesBreakdown: breakdown,
		ProcessingTimeMs:           res.ProcessingTimeMs,
		PatternResults:             []inference.PatternResult{*res},
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// ParseInput validates raw job variables against the activity schema.
func (h *Handler) ParseInput(variables string) (*Input, error) {
	return h.parseInput(variables)
}
