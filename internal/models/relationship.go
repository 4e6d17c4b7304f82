package models

import (
	"regexp"
	"time"
)

// RelationshipType is the label of a directed edge.
type RelationshipType string

const (
	RelInvestsIn         RelationshipType = "INVESTS_IN"
	RelCoInvested        RelationshipType = "CO_INVESTED"
	RelSimilarTo         RelationshipType = "SIMILAR_TO"
	RelAffiliatedWith    RelationshipType = "AFFILIATED_WITH"
	RelGeographicCluster RelationshipType = "GEOGRAPHIC_CLUSTER"
	RelSectorAligned     RelationshipType = "SECTOR_ALIGNED"
	RelFollowOnInvestor  RelationshipType = "FOLLOW_ON_INVESTOR"
	RelSharesPersonnel   RelationshipType = "SHARES_PERSONNEL"
	RelDealCollaborator  RelationshipType = "DEAL_COLLABORATOR"
	RelWorksAt           RelationshipType = "WORKS_AT"
	RelParticipatedIn    RelationshipType = "PARTICIPATED_IN"
)

var relTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// Valid reports whether the type is safe to interpolate as a Cypher
// relationship label.
func (t RelationshipType) Valid() bool {
	return relTypePattern.MatchString(string(t))
}

// SourceEvidence is one contributing source of a relationship.
type SourceEvidence struct {
	SourceType string                 `json:"sourceType"`
	Authority  float64                `json:"authority"`
	Evidence   map[string]interface{} `json:"evidence,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// RelationshipMetadata is derived from the source list.
type RelationshipMetadata struct {
	SourceCount          int     `json:"sourceCount"`
	AverageAuthority     float64 `json:"averageAuthority"`
	HasOfficialSource    bool    `json:"hasOfficialSource"`
	RequiresVerification bool    `json:"requiresVerification"`
}

// Relationship is a directed, typed, confidence-weighted edge. At most one
// exists per (From, To, Type).
type Relationship struct {
	ID         string               `json:"id"`
	From       string               `json:"from"`
	To         string               `json:"to"`
	Type       RelationshipType     `json:"type"`
	Confidence float64              `json:"confidence"`
	Sources    []SourceEvidence     `json:"sources"`
	Metadata   RelationshipMetadata `json:"metadata"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// Key identifies the (from, to, type) triple.
func (r Relationship) Key() string {
	return RelationshipKey(r.From, r.To, r.Type)
}

func RelationshipKey(from, to string, t RelationshipType) string {
	return from + "|" + string(t) + "|" + to
}
