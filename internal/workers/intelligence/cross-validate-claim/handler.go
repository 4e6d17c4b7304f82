package crossvalidateclaim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/pkg/registry"
)

const (
	TaskType = "cross-validate-claim"
)

// Validator is satisfied by *sources.Intelligence.
type Validator interface {
	CrossValidate(claim sources.Claim, srcs []sources.ClaimSource) (sources.ValidationResult, error)
	UpdateSourcePerformance(ctx context.Context, sourceType string, success bool, accuracy *float64) error
}

type Handler struct {
	config    *Config
	validator Validator
	activity  registry.Activity
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, validator Validator, activity registry.Activity, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		validator: validator,
		activity:  activity,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
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
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
	}
	for i := range input.Sources {
		input.Sources[i].SourceType = strings.ToUpper(strings.TrimSpace(input.Sources[i].SourceType))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.validator.CrossValidate(input.Claim, input.Sources)
	if err != nil {
		return nil, err
	}
	output := &Output{ValidationResult: result}

	if input.Verdict != nil {
		if err := h.applyVerdict(ctx, input, output); err != nil {
			return nil, err
		}
	}

	h.logger.Info("claim validated", map[string]interface{}{
		"claim":      input.Claim.String(),
		"confidence": result.Confidence,
		"consensus":  string(result.Consensus),
		"verdict":    input.Verdict != nil,
	})
	return output, nil
}

// applyVerdict scores each source on whether it sided with the verdict.
// With an accuracy, matching sources score it and the rest its complement.
func (h *Handler) applyVerdict(ctx context.Context, input *Input, output *Output) error {
	v := input.Verdict
	for _, s := range input.Sources {
		matched := s.Agrees == v.Correct
		var accuracy *float64
		if v.Accuracy != nil {
			a := *v.Accuracy
			if !matched {
				a = 1 - a
			}
			accuracy = &a
		}

		err := h.validator.UpdateSourcePerformance(ctx, s.SourceType, matched, accuracy)
		switch {
		case err == nil:
			output.PerformanceUpdated = appendUnique(output.PerformanceUpdated, s.SourceType)
		case apperrors.Normalize(err).Code == apperrors.ErrCodeUnknownSourceType:
			h.logger.Warn("skipping performance update for unknown source type", map[string]interface{}{
				"sourceType": s.SourceType,
			})
			output.PerformanceSkipped = appendUnique(output.PerformanceSkipped, s.SourceType)
		default:
			return err
		}
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
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
