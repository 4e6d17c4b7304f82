package convctx

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestManager(t *testing.T, window int) *Manager {
	return NewManager(window, logger.NewTestLogger(t), WithClock(fixedClock()))
}

func TestManager_Update_NewConversation(t *testing.T) {
	m := newTestManager(t, 0)

	c := m.Update("Tell me about KKR", nil)

	assert.Equal(t, DefaultWindow, m.Window())
	assert.Equal(t, NewConversationRelevance, c.Relevance)
	assert.Equal(t, 1, c.TurnCount)
	require.Len(t, c.History, 1)
	assert.Equal(t, "Tell me about KKR", c.History[0].Message)
	assert.Empty(t, c.EntityStack)
	assert.Empty(t, c.TopicFlow)
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		name    string
		message string
		prev    *Context
		want    float64
	}{
		{
			name:    "no prior context",
			message: "anything",
			want:    NewConversationRelevance,
		},
		{
			name:    "pronoun is not resolved",
			message: "What is its portfolio?",
			prev:    &Context{EntityStack: []string{"KKR"}},
			want:    0,
		},
		{
			name:    "literal entity mention",
			message: "What about kkr's portfolio?",
			prev:    &Context{EntityStack: []string{"KKR"}},
			want:    0.3,
		},
		{
			name:    "entity and topic",
			message: "KKR fintech deals",
			prev:    &Context{EntityStack: []string{"KKR"}, TopicFlow: []string{"fintech"}},
			want:    0.5,
		},
		{
			name:    "only the last three entities count",
			message: "what about Apollo",
			prev:    &Context{EntityStack: []string{"Apollo", "KKR", "TPG", "Carlyle"}},
			want:    0,
		},
		{
			name:    "only the last two topics count",
			message: "energy",
			prev:    &Context{TopicFlow: []string{"energy", "irr", "fintech"}},
			want:    0,
		},
		{
			name:    "clamped to one",
			message: "KKR TPG Carlyle fintech irr",
			prev: &Context{
				EntityStack: []string{"KKR", "TPG", "Carlyle"},
				TopicFlow:   []string{"fintech", "irr"},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Relevance(tt.message, tt.prev), 1e-9)
		})
	}
}

func TestManager_Update_TrimsWindow(t *testing.T) {
	m := newTestManager(t, 3)

	var c *Context
	for i := 1; i <= 5; i++ {
		c = m.Update(fmt.Sprintf("message %d", i), c)
	}

	require.Len(t, c.History, 3)
	assert.Equal(t, "message 3", c.History[0].Message)
	assert.Equal(t, "message 5", c.History[2].Message)
	assert.Equal(t, 5, c.TurnCount)
}

func TestManager_Update_CopiesState(t *testing.T) {
	m := newTestManager(t, 10)
	first := m.Update("Tell me about KKR", nil)
	m.Observe(first, models.IntentEntityInfo, &models.ExtractedEntities{
		Companies: []models.Span{{Text: "KKR"}},
	})

	second := m.Update("and its deals?", first)
	second.EntityStack[0] = "mutated"
	second.History[0].Message = "mutated"

	assert.Equal(t, "KKR", first.EntityStack[0])
	assert.Equal(t, "Tell me about KKR", first.History[0].Message)
}

func TestManager_Observe(t *testing.T) {
	m := newTestManager(t, 10)
	c := m.Update("first", nil)

	m.Observe(c, models.IntentEntityInfo, &models.ExtractedEntities{
		Companies: []models.Span{{Text: "KKR"}, {Text: "TPG"}},
		Persons:   []models.Span{{Text: "Henry Kravis"}},
		Sectors:   []models.Span{{Text: "fintech"}},
		Metrics:   []models.Span{{Text: "IRR"}},
	})
	m.Observe(c, models.IntentGeneral, &models.ExtractedEntities{
		Companies: []models.Span{{Text: "kkr"}},
	})
	for _, in := range []models.Intent{models.IntentComparison, models.IntentTrends, models.IntentNetwork} {
		m.Observe(c, in, nil)
	}

	assert.Equal(t, []string{"TPG", "Henry Kravis", "kkr"}, c.EntityStack)
	assert.Equal(t, "kkr", c.CurrentFocus())
	assert.Equal(t, []string{"fintech", "IRR"}, c.TopicFlow)
	assert.Equal(t, []models.Intent{models.IntentComparison, models.IntentTrends, models.IntentNetwork}, c.RecentIntents)
	assert.Equal(t, models.IntentNetwork, c.History[0].Intent)
}

func TestContext_CurrentFocus_Empty(t *testing.T) {
	var c *Context
	assert.Equal(t, "", c.CurrentFocus())
	assert.Equal(t, "", (&Context{}).CurrentFocus())
}
