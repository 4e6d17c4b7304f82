package processquery

import (
	"pm-intelligence/internal/models"
	"pm-intelligence/internal/query/synthesizer"
)

type Input struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversationId"`
	User           string `json:"user"`
}

type Output struct {
	ConversationID string                            `json:"conversationId"`
	Answer         string                            `json:"answer"`
	Intent         models.Intent                     `json:"intent"`
	Confidence     float64                           `json:"confidence"`
	Entities       []synthesizer.EntitySummary       `json:"entities"`
	Relationships  []synthesizer.RelationshipSummary `json:"relationships"`
	FollowUps      []string                          `json:"followUps"`
	Suggestions    []string                          `json:"suggestions,omitempty"`
	Insight        string                            `json:"insight,omitempty"`
	TotalRecords   int                               `json:"totalRecords"`
	Degraded       bool                              `json:"degraded"`
	Data           *synthesizer.ProcessedResults     `json:"data,omitempty"`
}
