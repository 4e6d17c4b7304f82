package processquery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/conversation"
	"pm-intelligence/internal/models"
	"pm-intelligence/internal/query/synthesizer"
	"pm-intelligence/pkg/registry"
)

// ==========================
// Mock Querier
// ==========================

type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) ProcessQuery(ctx context.Context, req conversation.Request) *conversation.Response {
	args := m.Called(ctx, req)
	return args.Get(0).(*conversation.Response)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, q Querier, cfg *Config) *Handler {
	reg, err := registry.Default()
	require.NoError(t, err)
	activity, ok := reg.Lookup(TaskType)
	require.True(t, ok)
	if cfg == nil {
		cfg = &Config{Timeout: 5 * time.Second}
	}
	return NewHandler(cfg, q, activity, logger.NewTestLogger(t))
}

func sampleResponse() *conversation.Response {
	return &conversation.Response{
		ConversationID: "conv-1",
		Answer:         "Sequoia Capital has co-invested with Accel in 3 companies.",
		Intent:         models.IntentNetwork,
		Confidence:     0.9,
		Entities:       []synthesizer.EntitySummary{{ID: "f-1", Name: "Sequoia Capital", Type: "Fund"}},
		Relationships:  []synthesizer.RelationshipSummary{},
		FollowUps:      []string{"Which sectors do they co-invest in?"},
		Data:           &synthesizer.ProcessedResults{Intent: models.IntentNetwork},
		Metadata:       conversation.Metadata{TotalRecords: 3},
	}
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute(t *testing.T) {
	q := &MockQuerier{}
	q.On("ProcessQuery", mock.Anything, conversation.Request{
		Text:           "Who has Sequoia co-invested with?",
		ConversationID: "conv-1",
		User:           "analyst@example.com",
	}).Return(sampleResponse()).Once()

	h := createTestHandler(t, q, nil)
	out, err := h.Execute(context.Background(), &Input{
		Text:           "  Who has Sequoia co-invested with?  ",
		ConversationID: "conv-1",
		User:           "analyst@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "conv-1", out.ConversationID)
	assert.Equal(t, models.IntentNetwork, out.Intent)
	assert.Equal(t, 0.9, out.Confidence)
	assert.Equal(t, 3, out.TotalRecords)
	assert.False(t, out.Degraded)
	assert.Nil(t, out.Data)
	assert.Len(t, out.Entities, 1)
	q.AssertExpectations(t)
}

func TestHandler_ExecuteIncludesData(t *testing.T) {
	q := &MockQuerier{}
	q.On("ProcessQuery", mock.Anything, mock.Anything).Return(sampleResponse())

	h := createTestHandler(t, q, &Config{Timeout: time.Second, IncludeData: true})
	out, err := h.Execute(context.Background(), &Input{Text: "co-investors of Sequoia"})
	require.NoError(t, err)
	require.NotNil(t, out.Data)
	assert.Equal(t, models.IntentNetwork, out.Data.Intent)
}

func TestHandler_ExecuteDegraded(t *testing.T) {
	resp := sampleResponse()
	resp.Metadata.Degraded = true
	resp.Confidence = 0
	q := &MockQuerier{}
	q.On("ProcessQuery", mock.Anything, mock.Anything).Return(resp)

	out, err := createTestHandler(t, q, nil).Execute(context.Background(), &Input{Text: "anything"})
	require.NoError(t, err)
	assert.True(t, out.Degraded)
}

func TestHandler_ExecuteBlankText(t *testing.T) {
	q := &MockQuerier{}
	_, err := createTestHandler(t, q, nil).Execute(context.Background(), &Input{Text: "   "})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInputValidation, apperrors.Normalize(err).Code)
	q.AssertNotCalled(t, "ProcessQuery", mock.Anything, mock.Anything)
}

// ==========================
// Input parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockQuerier{}, nil)

	tests := []struct {
		name      string
		variables string
		wantErr   bool
		wantText  string
	}{
		{"valid", `{"text":"Top funds in fintech","conversationId":"c-9"}`, false, "Top funds in fintech"},
		{"missing text", `{"conversationId":"c-9"}`, true, ""},
		{"wrong type", `{"text":7}`, true, ""},
		{"not json", `text=hello`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeInputValidation, apperrors.Normalize(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, input.Text)
		})
	}
}
