package processquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/conversation"
	"pm-intelligence/pkg/registry"
)

const (
	TaskType = "process-query"
)

// Querier is satisfied by *conversation.Orchestrator.
type Querier interface {
	ProcessQuery(ctx context.Context, req conversation.Request) *conversation.Response
}

type Handler struct {
	config   *Config
	querier  Querier
	activity registry.Activity
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, querier Querier, activity registry.Activity, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		querier:  querier,
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
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, apperrors.NewInputValidationError("text must not be blank")
	}

	resp := h.querier.ProcessQuery(ctx, conversation.Request{
		Text:           text,
		ConversationID: input.ConversationID,
		User:           input.User,
	})

	output := &Output{
		ConversationID: resp.ConversationID,
		Answer:         resp.Answer,
		Intent:         resp.Intent,
		Confidence:     resp.Confidence,
		Entities:       resp.Entities,
		Relationships:  resp.Relationships,
		FollowUps:      resp.FollowUps,
		Suggestions:    resp.Suggestions,
		Insight:        resp.Insight,
		TotalRecords:   resp.Metadata.TotalRecords,
		Degraded:       resp.Metadata.Degraded,
	}
	if h.config.IncludeData {
		output.Data = resp.Data
	}

	h.logger.Info("query answered", map[string]interface{}{
		"conversationId": output.ConversationID,
		"intent":         string(output.Intent),
		"confidence":     output.Confidence,
		"degraded":       output.Degraded,
	})
	return output, nil
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

// Execute runs the query without a job client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
