// Package convctx keeps the rolling per-conversation window used to score how
// relevant a new message is to what came before.
package convctx

import (
	"strings"
	"time"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
)

const (
	DefaultWindow = 10

	// NewConversationRelevance is reported when there is no prior context.
	NewConversationRelevance = 0.3

	entityWeight   = 0.3
	topicWeight    = 0.2
	entityLookback = 3
	topicLookback  = 2
	recentIntents  = 3
)

// Turn is one message in the history window.
type Turn struct {
	Message   string        `json:"message"`
	Intent    models.Intent `json:"intent,omitempty"`
	Entities  []string      `json:"entities,omitempty"`
	Topics    []string      `json:"topics,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Context is a snapshot. Update returns a new value whose slices do not share
// backing arrays with the previous one.
type Context struct {
	Message       string          `json:"message"`
	History       []Turn          `json:"history"`
	EntityStack   []string        `json:"entityStack"`
	TopicFlow     []string        `json:"topicFlow"`
	RecentIntents []models.Intent `json:"recentIntents"`
	Relevance     float64         `json:"relevance"`
	TurnCount     int             `json:"turnCount"`
	StartedAt     time.Time       `json:"startedAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type Manager struct {
	window int
	now    func() time.Time
	logger logger.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(window int, log logger.Logger, opts ...Option) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	m := &Manager{
		window: window,
		now:    time.Now,
		logger: logger.ForComponent(log, "context-manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Window() int {
	return m.window
}

// Update appends message to the history of prev and scores its relevance
// against prev's entity stack and topic flow. A nil prev starts a new
// conversation.
func (m *Manager) Update(message string, prev *Context) *Context {
	now := m.now()
	turn := Turn{Message: message, Timestamp: now}

	if prev == nil {
		return &Context{
			Message:       message,
			History:       []Turn{turn},
			EntityStack:   []string{},
			TopicFlow:     []string{},
			RecentIntents: []models.Intent{},
			Relevance:     NewConversationRelevance,
			TurnCount:     1,
			StartedAt:     now,
			UpdatedAt:     now,
		}
	}

	history := make([]Turn, 0, len(prev.History)+1)
	history = append(history, prev.History...)
	history = append(history, turn)
	if len(history) > m.window {
		history = append([]Turn(nil), history[len(history)-m.window:]...)
	}

	next := &Context{
		Message:       message,
		History:       history,
		EntityStack:   append([]string{}, prev.EntityStack...),
		TopicFlow:     append([]string{}, prev.TopicFlow...),
		RecentIntents: append([]models.Intent{}, prev.RecentIntents...),
		Relevance:     Relevance(message, prev),
		TurnCount:     prev.TurnCount + 1,
		StartedAt:     prev.StartedAt,
		UpdatedAt:     now,
	}

	m.logger.Debug("context updated", map[string]interface{}{
		"turn":      next.TurnCount,
		"history":   len(next.History),
		"relevance": next.Relevance,
	})
	return next
}

// Observe records the understanding of the latest turn: its intent, the
// named entities pushed onto the stack, and sector and metric topics.
func (m *Manager) Observe(c *Context, intent models.Intent, entities *models.ExtractedEntities) {
	if c == nil {
		return
	}
	var named, topics []string
	if entities != nil {
		named = entities.Named()
		topics = append(entities.Texts(models.CategorySector), entities.Texts(models.CategoryMetric)...)
	}

	if n := len(c.History); n > 0 {
		last := &c.History[n-1]
		last.Intent = intent
		last.Entities = append([]string{}, named...)
		last.Topics = append([]string{}, topics...)
	}

	for _, e := range named {
		c.EntityStack = pushUnique(c.EntityStack, e, m.window)
	}
	for _, t := range topics {
		c.TopicFlow = pushUnique(c.TopicFlow, t, m.window)
	}
	if intent != "" && intent != models.IntentGeneral {
		c.RecentIntents = append(c.RecentIntents, intent)
		if len(c.RecentIntents) > recentIntents {
			c.RecentIntents = c.RecentIntents[len(c.RecentIntents)-recentIntents:]
		}
	}
}

// Relevance scores message against prev: 0.3 per recent stacked entity and
// 0.2 per recent topic found as a case-insensitive substring, clamped to
// [0, 1]. Pronouns are not resolved.
func Relevance(message string, prev *Context) float64 {
	if prev == nil {
		return NewConversationRelevance
	}
	lower := strings.ToLower(message)
	score := 0.0
	for _, e := range tail(prev.EntityStack, entityLookback) {
		if e != "" && strings.Contains(lower, strings.ToLower(e)) {
			score += entityWeight
		}
	}
	for _, t := range tail(prev.TopicFlow, topicLookback) {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			score += topicWeight
		}
	}
	if score > 1 {
		return 1
	}
	return score
}

// CurrentFocus is the most recently stacked entity.
func (c *Context) CurrentFocus() string {
	if c == nil || len(c.EntityStack) == 0 {
		return ""
	}
	return c.EntityStack[len(c.EntityStack)-1]
}

func tail(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// pushUnique moves v to the top of the stack, trimming the bottom to limit.
func pushUnique(stack []string, v string, limit int) []string {
	out := make([]string, 0, len(stack)+1)
	for _, s := range stack {
		if !strings.EqualFold(s, v) {
			out = append(out, s)
		}
	}
	out = append(out, v)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
