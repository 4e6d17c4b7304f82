package crossvalidateclaim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newIntelligence(t *testing.T) *sources.Intelligence {
	return sources.New(nil, logger.NewTestLogger(t), sources.WithClock(func() time.Time { return fixedNow }))
}

func createTestHandler(t *testing.T, v Validator) *Handler {
	reg, err := registry.Default()
	require.NoError(t, err)
	activity, ok := reg.Lookup(TaskType)
	require.True(t, ok)
	return NewHandler(&Config{Timeout: time.Second}, v, activity, logger.NewTestLogger(t))
}

func acquisitionClaim() sources.Claim {
	return sources.Claim{Subject: "Acme Holdings", Predicate: "ACQUIRED", Object: "Beta Labs"}
}

func ptr(f float64) *float64 { return &f }

// ==========================
// Cross validation
// ==========================

func TestHandler_ExecuteWithoutVerdict(t *testing.T) {
	intel := newIntelligence(t)
	out, err := createTestHandler(t, intel).Execute(context.Background(), &Input{
		Claim: acquisitionClaim(),
		Sources: []sources.ClaimSource{
			{SourceType: sources.SECFilings, Agrees: true},
			{SourceType: sources.NewsReports, Agrees: true},
			{SourceType: sources.SocialMedia, Agrees: false},
		},
	})
	require.NoError(t, err)

	// (0.95 + 0.6) / 3
	assert.InDelta(t, 0.5167, out.Confidence, 1e-4)
	assert.Equal(t, sources.ConsensusModerate, out.Consensus)
	assert.Equal(t, []string{sources.SocialMedia}, out.Conflicting)
	assert.Empty(t, out.PerformanceUpdated)
	assert.InDelta(t, 0.6, intel.Authority(sources.NewsReports), 1e-9)
}

func TestHandler_ExecuteAppliesVerdict(t *testing.T) {
	tests := []struct {
		name       string
		verdict    *Verdict
		wantNews   float64
		wantSocial float64
	}{
		// 0.7*base + 0.3*score
		{"claim confirmed", &Verdict{Correct: true}, 0.72, 0.245},
		{"claim refuted", &Verdict{Correct: false}, 0.42, 0.545},
		{"confirmed with accuracy", &Verdict{Correct: true, Accuracy: ptr(0.8)}, 0.66, 0.305},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intel := newIntelligence(t)
			out, err := createTestHandler(t, intel).Execute(context.Background(), &Input{
				Claim: acquisitionClaim(),
				Sources: []sources.ClaimSource{
					{SourceType: sources.NewsReports, Agrees: true},
					{SourceType: sources.SocialMedia, Agrees: false},
					{SourceType: sources.NewsReports, Agrees: true},
				},
				Verdict: tt.verdict,
			})
			require.NoError(t, err)

			assert.Equal(t, []string{sources.NewsReports, sources.SocialMedia}, out.PerformanceUpdated)
			assert.InDelta(t, tt.wantNews, intel.Authority(sources.NewsReports), 1e-9)
			assert.InDelta(t, tt.wantSocial, intel.Authority(sources.SocialMedia), 1e-9)
		})
	}
}

func TestHandler_ExecuteSkipsUnknownSources(t *testing.T) {
	intel := newIntelligence(t)
	out, err := createTestHandler(t, intel).Execute(context.Background(), &Input{
		Claim: acquisitionClaim(),
		Sources: []sources.ClaimSource{
			{SourceType: sources.SECFilings, Agrees: true},
			{SourceType: "PERSONAL_BLOG", Agrees: true},
		},
		Verdict: &Verdict{Correct: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{sources.SECFilings}, out.PerformanceUpdated)
	assert.Equal(t, []string{"PERSONAL_BLOG"}, out.PerformanceSkipped)
}

func TestHandler_ExecuteNoSources(t *testing.T) {
	_, err := createTestHandler(t, newIntelligence(t)).Execute(context.Background(), &Input{Claim: acquisitionClaim()})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNoSources, apperrors.Normalize(err).Code)
}

// ==========================
// Mock Validator
// ==========================

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) CrossValidate(claim sources.Claim, srcs []sources.ClaimSource) (sources.ValidationResult, error) {
	args := m.Called(claim, srcs)
	return args.Get(0).(sources.ValidationResult), args.Error(1)
}

func (m *MockValidator) UpdateSourcePerformance(ctx context.Context, sourceType string, success bool, accuracy *float64) error {
	return m.Called(ctx, sourceType, success, accuracy).Error(0)
}

func TestHandler_ExecutePerformanceFailure(t *testing.T) {
	v := &MockValidator{}
	v.On("CrossValidate", mock.Anything, mock.Anything).Return(sources.ValidationResult{Confidence: 0.95}, nil)
	v.On("UpdateSourcePerformance", mock.Anything, sources.SECFilings, false, (*float64)(nil)).
		Return(errors.New("window store closed"))

	_, err := createTestHandler(t, v).Execute(context.Background(), &Input{
		Claim:   acquisitionClaim(),
		Sources: []sources.ClaimSource{{SourceType: sources.SECFilings, Agrees: true}},
		Verdict: &Verdict{Correct: false},
	})
	require.Error(t, err)
	assert.EqualError(t, err, "window store closed")
	v.AssertExpectations(t)
}

// ==========================
// Input parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, newIntelligence(t))

	input, err := h.parseInput(`{
		"claim": {"subject": "Acme", "predicate": "ACQUIRED", "object": "Beta"},
		"sources": [{"sourceType": " sec_filings ", "agrees": true}],
		"verdict": {"correct": true, "accuracy": 0.9}
	}`)
	require.NoError(t, err)
	assert.Equal(t, sources.SECFilings, input.Sources[0].SourceType)
	require.NotNil(t, input.Verdict)
	assert.Equal(t, 0.9, *input.Verdict.Accuracy)

	tests := []struct {
		name      string
		variables string
	}{
		{"missing claim", `{"sources":[{"sourceType":"SEC_FILINGS","agrees":true}]}`},
		{"claim without object", `{"claim":{"subject":"Acme","predicate":"ACQUIRED"},"sources":[{"sourceType":"SEC_FILINGS","agrees":true}]}`},
		{"source without position", `{"claim":{"subject":"Acme","predicate":"ACQUIRED","object":"Beta"},"sources":[{"sourceType":"SEC_FILINGS"}]}`},
		{"accuracy above one", `{"claim":{"subject":"Acme","predicate":"ACQUIRED","object":"Beta"},"sources":[{"sourceType":"SEC_FILINGS","agrees":true}],"verdict":{"correct":true,"accuracy":2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput(tt.variables)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInputValidation, apperrors.Normalize(err).Code)
		})
	}
}
