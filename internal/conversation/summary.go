package conversation

import (
	"time"

	"pm-intelligence/internal/models"
)

type Engagement string

const (
	EngagementLow    Engagement = "low"
	EngagementMedium Engagement = "medium"
	EngagementHigh   Engagement = "high"
)

// Summary is a point-in-time view of a conversation.
type Summary struct {
	ConversationID string          `json:"conversationId"`
	User           string          `json:"user,omitempty"`
	Turns          int             `json:"turns"`
	Entities       []string        `json:"entities"`
	Topics         []string        `json:"topics"`
	Sectors        []string        `json:"sectors"`
	Geographies    []string        `json:"geographies"`
	RecentIntents  []models.Intent `json:"recentIntents"`
	CurrentFocus   string          `json:"currentFocus,omitempty"`
	Satisfaction   float64         `json:"satisfaction"`
	Engagement     Engagement      `json:"engagement"`
	StartedAt      time.Time       `json:"startedAt"`
	LastActive     time.Time       `json:"lastActive"`
}

// Conversation returns a snapshot of the conversation, or false when it is
// unknown or expired.
func (o *Orchestrator) Conversation(id string) (*Summary, bool) {
	unlock := o.sessions.Lock(id)
	defer unlock()

	sess, ok := o.sessions.Get(id)
	if !ok || sess.Context == nil {
		return nil, false
	}
	c := sess.Context
	return &Summary{
		ConversationID: sess.ID,
		User:           sess.User,
		Turns:          c.TurnCount,
		Entities:       append([]string{}, c.EntityStack...),
		Topics:         append([]string{}, c.TopicFlow...),
		Sectors:        append([]string{}, sess.Sectors...),
		Geographies:    append([]string{}, sess.Geographies...),
		RecentIntents:  append([]models.Intent{}, c.RecentIntents...),
		CurrentFocus:   c.CurrentFocus(),
		Satisfaction:   roundTo(mean(sess.Confidences), 2),
		Engagement:     engagement(c.TurnCount, sess.LastActive.Sub(sess.CreatedAt)),
		StartedAt:      sess.CreatedAt,
		LastActive:     sess.LastActive,
	}, true
}

// EndConversation drops the session immediately.
func (o *Orchestrator) EndConversation(id string) {
	unlock := o.sessions.Lock(id)
	defer unlock()
	o.sessions.Delete(id)
}

// engagement buckets turns per minute of session; sessions shorter than a
// minute count as one minute.
func engagement(turns int, elapsed time.Duration) Engagement {
	minutes := elapsed.Minutes()
	if minutes < 1 {
		minutes = 1
	}
	rate := float64(turns) / minutes
	switch {
	case rate >= 2:
		return EngagementHigh
	case rate >= 0.5:
		return EngagementMedium
	default:
		return EngagementLow
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
