package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/graphtest"
	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/internal/models"
)

const (
	coInvestQuery   = "<-[:INVESTS_IN]-(b:Entity)"
	dealQuery       = "PARTICIPATED_IN"
	findCoInvested  = "[r:CO_INVESTED]->(b:Entity {id: $to})"
	mergeCoInvested = "MERGE (a)-[r:CO_INVESTED]"
)

func pair(count int) models.Row {
	shared := make([]interface{}, count)
	for i := range shared {
		shared[i] = "portco"
	}
	return models.Row{
		"fromId": "f1", "fromName": "KKR",
		"toId": "f2", "toName": "TPG",
		"count": int64(count), "shared": shared,
	}
}

func newEngine(t *testing.T, store *graphtest.Store, opts ...Option) *Engine {
	intel := sources.New(sources.DefaultRegistry(), logger.NewTestLogger(t))
	return NewEngine(store, intel, logger.NewTestLogger(t), opts...)
}

type recorder struct {
	runs []*Summary
}

func (r *recorder) RecordRun(_ context.Context, s *Summary) error {
	r.runs = append(r.runs, s)
	return nil
}

// ==========================
// Scoring
// ==========================

func TestPatterns_Scores(t *testing.T) {
	byName := map[string]Pattern{}
	for _, p := range DefaultPatterns() {
		byName[p.Name] = p
	}

	tests := []struct {
		pattern string
		count   int
		want    float64
	}{
		{PatternCoInvestment, 1, 0.6},
		{PatternCoInvestment, 4, 0.9},
		{PatternCoInvestment, 10, 0.95},
		{PatternGeographicClustering, 1, 0.6},
		{PatternSectorAlignment, 3, 0.65},
		{PatternFollowOnInvestment, 2, 0.7},
		{PatternFollowOnInvestment, 10, 0.9},
		{PatternSharedPersonnel, 1, 0.75},
		{PatternSharedPersonnel, 9, 0.95},
		{PatternCorporateStructure, 1, 0.8},
		{PatternDealCollaboration, 1, 0.58},
		{PatternDealCollaboration, 5, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p := byName[tt.pattern]
			require.NotNil(t, p.Score)
			assert.InDelta(t, tt.want, p.Score(Candidate{FromName: "A", ToName: "B", Count: tt.count}), 1e-9)
		})
	}
}

func TestPatterns_Similarity(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		row      models.Row
		want     float64
	}{
		{"country and sector", "Acme", "Beacon", models.Row{"fromCountry": "US", "toCountry": "us", "fromSector": "AI", "toSector": "AI"}, 2.0 / 3},
		{"country only", "Acme", "Beacon", models.Row{"fromCountry": "US", "toCountry": "US", "fromSector": "AI", "toSector": "Bio"}, 1.0 / 3},
		{"name containment", "Acme", "Acme Holdings", models.Row{"fromCountry": "US", "toCountry": "UK"}, 1.0 / 3},
		{"all three", "Acme", "acme labs", models.Row{"fromCountry": "US", "toCountry": "US", "fromSector": "AI", "toSector": "ai"}, 1},
		{"missing attributes never match", "Acme", "Beacon", models.Row{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarity(Candidate{FromName: tt.from, ToName: tt.to, Row: tt.row})
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// ==========================
// Persistence
// ==========================

func TestEngine_CoInvestmentPersisted(t *testing.T) {
	store := graphtest.New().OnRows(coInvestQuery, pair(4))
	e := newEngine(t, store)

	res, err := e.InferByPattern(context.Background(), PatternCoInvestment, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Successful())

	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].Query, mergeCoInvested)
	assert.InDelta(t, 0.9, writes[0].Params["confidence"], 1e-9)
	assert.Equal(t, "f1", writes[0].Params["from"])
	assert.Equal(t, "f2", writes[0].Params["to"])
	assert.Equal(t, true, writes[0].Params["requiresVerification"])
	assert.Contains(t, writes[0].Params["sources"], `"sourceType":"AI_INFERENCE"`)
	assert.Contains(t, writes[0].Params["sources"], "share 4 portfolio companies")
}

func TestEngine_BelowThresholdNotPersisted(t *testing.T) {
	store := graphtest.New().OnRows(coInvestQuery, pair(1))
	e := newEngine(t, store)

	res, err := e.InferByPattern(context.Background(), PatternCoInvestment, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.BelowThreshold)
	assert.Equal(t, 0, res.Successful())
	assert.Empty(t, store.Writes())
	assert.Equal(t, 0, store.CallCount(findCoInvested))
}

func TestEngine_MonotonicMerge(t *testing.T) {
	tests := []struct {
		name     string
		existing float64
		want     UpsertOutcome
		writes   int
	}{
		{"higher existing confidence is kept", 0.95, OutcomeUnchanged, 0},
		{"equal confidence is not rewritten", 0.9, OutcomeUnchanged, 0},
		{"lower existing confidence is raised", 0.6, OutcomeUpdated, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := graphtest.New().
				OnRows(findCoInvested, models.Row{"id": "rel-1", "confidence": tt.existing}).
				OnRows(coInvestQuery, pair(4))
			e := newEngine(t, store)

			res, err := e.InferByPattern(context.Background(), PatternCoInvestment, Options{})
			require.NoError(t, err)

			switch tt.want {
			case OutcomeUnchanged:
				assert.Equal(t, 1, res.Unchanged)
			case OutcomeUpdated:
				assert.Equal(t, 1, res.Updated)
			}
			assert.Len(t, store.Writes(), tt.writes)
		})
	}
}

func TestRelationshipRepository_ConcurrentWriterWins(t *testing.T) {
	store := graphtest.New().
		OnRows(mergeCoInvested, models.Row{"id": "rel-1", "applied": false})
	repo := NewRelationshipRepository(store, logger.NewTestLogger(t))

	rel := &models.Relationship{ID: "rel-new", From: "f1", To: "f2", Type: models.RelCoInvested, Confidence: 0.7}
	outcome, err := repo.Upsert(context.Background(), rel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)

	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].Query, "r.confidence IS NULL OR r.confidence < $confidence")
	assert.Equal(t, 0.7, writes[0].Params["confidence"])
}

func TestRelationshipRepository_AppliedWrite(t *testing.T) {
	store := graphtest.New().
		OnRows(findCoInvested, models.Row{"id": "rel-1", "confidence": 0.5}).
		OnRows(mergeCoInvested, models.Row{"id": "rel-1", "applied": true})
	repo := NewRelationshipRepository(store, logger.NewTestLogger(t))

	rel := &models.Relationship{ID: "rel-new", From: "f1", To: "f2", Type: models.RelCoInvested, Confidence: 0.7}
	outcome, err := repo.Upsert(context.Background(), rel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, "rel-1", rel.ID)
}

func TestRelationshipRepository_RejectsInvalidType(t *testing.T) {
	store := graphtest.New()
	repo := NewRelationshipRepository(store, logger.NewTestLogger(t))

	_, err := repo.Upsert(context.Background(), &models.Relationship{From: "a", To: "b", Type: "X]->() DETACH DELETE (n)//"})
	assert.True(t, errors.Is(err, ErrInvalidRelationshipType))
	assert.Empty(t, store.Calls())
}

// ==========================
// Full runs
// ==========================

func TestEngine_InferAllIsolatesPatternFailures(t *testing.T) {
	store := graphtest.New().
		OnRows(coInvestQuery, pair(4)).
		OnError(dealQuery, errors.New("Neo.ClientError.Statement.SyntaxError"))
	rec := &recorder{}
	e := newEngine(t, store, WithRecorder(rec))

	summary, err := e.InferAll(context.Background(), Options{
		Patterns: []string{PatternDealCollaboration, PatternCoInvestment, PatternTemporal},
	})
	require.NoError(t, err)

	require.Len(t, summary.PatternResults, 3)
	assert.Equal(t, 1, summary.PatternResults[0].Failed)
	assert.Contains(t, summary.PatternResults[0].Error, "SyntaxError")
	assert.Equal(t, 1, summary.PatternResults[1].Created)
	assert.True(t, summary.PatternResults[2].Stub)

	assert.Equal(t, 1, summary.TotalInferences)
	assert.Equal(t, 1, summary.SuccessfulInferences)
	assert.Equal(t, 1, summary.FailedInferences)
	assert.Equal(t, map[string]int{"CO_INVESTED": 1}, summary.RelationshipTypesBreakdown)
	assert.NotEmpty(t, summary.RunID)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, summary.RunID, rec.runs[0].RunID)
}

func TestEngine_InferAllRunsEveryPattern(t *testing.T) {
	store := graphtest.New()
	e := newEngine(t, store)

	summary, err := e.InferAll(context.Background(), Options{})
	require.NoError(t, err)

	assert.Len(t, summary.PatternResults, len(DefaultPatterns()))
	// stubs issue no queries
	assert.Len(t, store.Calls(), len(DefaultPatterns())-2)
	for _, c := range store.Calls() {
		assert.Equal(t, DefaultCandidateLimit, c.Params["limit"])
	}
}

func TestEngine_DryRun(t *testing.T) {
	store := graphtest.New().OnRows(coInvestQuery, pair(4))
	e := newEngine(t, store)

	summary, err := e.InferAll(context.Background(), Options{Patterns: []string{PatternCoInvestment}, DryRun: true})
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.PatternResults[0].Proposed)
	assert.Equal(t, 1, summary.SuccessfulInferences)
	assert.Empty(t, store.Writes())
}

func TestEngine_Thresholds(t *testing.T) {
	store := graphtest.New().OnRows(coInvestQuery, pair(1))
	e := newEngine(t, store, WithThresholds(map[string]float64{PatternCoInvestment: 0.55}))

	res, err := e.InferByPattern(context.Background(), PatternCoInvestment, Options{CandidateLimit: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 7, store.Calls()[0].Params["limit"])
}

func TestEngine_Stub(t *testing.T) {
	store := graphtest.New()
	e := newEngine(t, store)

	for _, name := range []string{PatternTemporal, PatternNetworkAnalysis} {
		res, err := e.InferByPattern(context.Background(), name, Options{})
		require.NoError(t, err)
		assert.True(t, res.Stub)
		assert.Equal(t, 0, res.Candidates)
		assert.Equal(t, 0, res.Successful())
	}
	assert.Empty(t, store.Calls())
}

// ==========================
// Configuration errors
// ==========================

func TestEngine_Errors(t *testing.T) {
	e := newEngine(t, graphtest.New())

	_, err := e.InferByPattern(context.Background(), "astrology", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPattern))
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeUnknownPattern, stdErr.Code)

	_, err = e.InferAll(context.Background(), Options{Patterns: []string{"astrology"}})
	assert.True(t, errors.Is(err, ErrUnknownPattern))

	intel := sources.New(nil, logger.NewTestLogger(t))
	noStore := NewEngine(nil, intel, logger.NewTestLogger(t))
	_, err = noStore.InferAll(context.Background(), Options{})
	assert.True(t, errors.Is(err, ErrStoreNotConfigured))
}

func TestEngine_InferByPatternReportsFailure(t *testing.T) {
	store := graphtest.New().OnError(dealQuery, errors.New("connection reset"))
	e := newEngine(t, store)

	res, err := e.InferByPattern(context.Background(), PatternDealCollaboration, Options{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Failed)

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInferencePattern, stdErr.Code)
}
