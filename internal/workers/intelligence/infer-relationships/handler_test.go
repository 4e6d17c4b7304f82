package inferrelationships

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/graphtest"
	"pm-intelligence/internal/intelligence/inference"
	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/pkg/registry"
)

// ==========================
// Mock Inferrer
// ==========================

type MockInferrer struct {
	mock.Mock
}

func (m *MockInferrer) InferAll(ctx context.Context, opts inference.Options) (*inference.Summary, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inference.Summary), args.Error(1)
}

func (m *MockInferrer) InferByPattern(ctx context.Context, name string, opts inference.Options) (*inference.PatternResult, error) {
	args := m.Called(ctx, name, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inference.PatternResult), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, engine Inferrer) *Handler {
	reg, err := registry.Default()
	require.NoError(t, err)
	activity, ok := reg.Lookup(TaskType)
	require.True(t, ok)
	return NewHandler(&Config{Timeout: 5 * time.Second}, engine, activity, logger.NewTestLogger(t))
}

// ==========================
// Full runs
// ==========================

func TestHandler_ExecuteFullRun(t *testing.T) {
	engine := &MockInferrer{}
	opts := inference.Options{Patterns: []string{"co_investment", "sector_alignment"}, BatchSize: 50, DryRun: true}
	engine.On("InferAll", mock.Anything, opts).Return(&inference.Summary{
		RunID:                      "run-7",
		DryRun:                     true,
		TotalInferences:            20,
		SuccessfulInferences:       12,
		FailedInferences:           1,
		RelationshipTypesBreakdown: map[string]int{"CO_INVESTED": 8, "SECTOR_ALIGNED": 4},
		PatternResults:             []inference.PatternResult{{Pattern: "co_investment"}, {Pattern: "sector_alignment"}},
	}, nil).Once()

	out, err := createTestHandler(t, engine).Execute(context.Background(), &Input{
		Patterns:  []string{"co_investment", "sector_alignment"},
		BatchSize: 50,
		DryRun:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, "run-7", out.RunID)
	assert.True(t, out.DryRun)
	assert.Equal(t, 12, out.SuccessfulInferences)
	assert.Equal(t, 4, out.RelationshipTypesBreakdown["SECTOR_ALIGNED"])
	assert.Len(t, out.PatternResults, 2)
	engine.AssertExpectations(t)
}

func TestHandler_ExecuteFullRunTimeout(t *testing.T) {
	engine := &MockInferrer{}
	engine.On("InferAll", mock.Anything, mock.Anything).
		Return(&inference.Summary{RunID: "run-8"}, context.DeadlineExceeded)

	_, err := createTestHandler(t, engine).Execute(context.Background(), &Input{})
	require.Error(t, err)
	std := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeTimeout, std.Code)
	assert.True(t, std.Retryable)
}

// ==========================
// Single pattern
// ==========================

func TestHandler_ExecutePattern(t *testing.T) {
	engine := &MockInferrer{}
	engine.On("InferByPattern", mock.Anything, "co_investment", inference.Options{}).Return(&inference.PatternResult{
		Pattern:          "co_investment",
		RelationshipType: "CO_INVESTED",
		Candidates:       6,
		Created:          3,
		Updated:          1,
		BelowThreshold:   2,
		ProcessingTimeMs: 15,
	}, nil)

	out, err := createTestHandler(t, engine).Execute(context.Background(), &Input{Pattern: "co_investment"})
	require.NoError(t, err)

	assert.Empty(t, out.RunID)
	assert.Equal(t, 6, out.TotalInferences)
	assert.Equal(t, 4, out.SuccessfulInferences)
	assert.Equal(t, map[string]int{"CO_INVESTED": 4}, out.RelationshipTypesBreakdown)
	require.Len(t, out.PatternResults, 1)
	assert.Equal(t, 2, out.PatternResults[0].BelowThreshold)
	engine.AssertNotCalled(t, "InferAll", mock.Anything, mock.Anything)
}

func TestHandler_ExecutePatternFailure(t *testing.T) {
	engine := &MockInferrer{}
	cause := apperrors.NewInferencePatternError("co_investment", errors.New("neo4j unavailable"))
	engine.On("InferByPattern", mock.Anything, "co_investment", mock.Anything).
		Return(&inference.PatternResult{Pattern: "co_investment", Error: "neo4j unavailable"}, cause)

	_, err := createTestHandler(t, engine).Execute(context.Background(), &Input{Pattern: "co_investment"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInferencePattern, apperrors.Normalize(err).Code)
}

// ==========================
// Engine errors
// ==========================

func TestHandler_EngineErrors(t *testing.T) {
	intel := sources.New(nil, logger.NewTestLogger(t))

	tests := []struct {
		name     string
		engine   *inference.Engine
		input    *Input
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "unknown pattern",
			engine:   inference.NewEngine(graphtest.New(), intel, logger.NewTestLogger(t)),
			input:    &Input{Pattern: "astrology"},
			wantCode: apperrors.ErrCodeUnknownPattern,
		},
		{
			name:     "unknown pattern in full run",
			engine:   inference.NewEngine(graphtest.New(), intel, logger.NewTestLogger(t)),
			input:    &Input{Patterns: []string{"co_investment", "astrology"}},
			wantCode: apperrors.ErrCodeUnknownPattern,
		},
		{
			name:     "no graph store",
			engine:   inference.NewEngine(nil, intel, logger.NewTestLogger(t)),
			input:    &Input{},
			wantCode: apperrors.ErrCodeStoreNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := createTestHandler(t, tt.engine).Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.Normalize(err).Code, fmt.Sprint(err))
		})
	}
}

// ==========================
// Input parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockInferrer{})

	input, err := h.parseInput(`{"pattern":"entity_similarity","candidateLimit":25}`)
	require.NoError(t, err)
	assert.Equal(t, "entity_similarity", input.Pattern)
	assert.Equal(t, 25, input.options().CandidateLimit)

	input, err = h.parseInput("")
	require.NoError(t, err)
	assert.Equal(t, inference.Options{}, input.options())

	_, err = h.parseInput(`{"batchSize":-1}`)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInputValidation, apperrors.Normalize(err).Code)
}
