package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/graphtest"
	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/internal/models"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeIndexer struct {
	mu   sync.Mutex
	docs []models.Entity
	fail map[string]bool
}

func (f *fakeIndexer) IndexEntity(ctx context.Context, e models.Entity) error {
	if f.fail[e.ID] {
		return errors.New("index unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, e)
	return nil
}

func newIngester(t *testing.T, store *graphtest.Store, opts ...Option) *Ingester {
	log := logger.NewTestLogger(t)
	intel := sources.New(nil, log, sources.WithClock(func() time.Time { return fixedNow }))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, intel, log, opts...)
}

const entityCSV = "id,type,name,sector,country\n" +
	"e-1,Investor,Blackstone,Real Estate,US\n" +
	"e-2,Company,Stripe,Fintech,US\n" +
	"e-3,Unicorn,Nope,,\n"

// ==========================
// Entities
// ==========================

func TestIngester_IngestEntities(t *testing.T) {
	store := graphtest.New().OnRows("MERGE (e:Entity {id: $id})", models.Row{"id": "x", "created": true})
	idx := &fakeIndexer{}
	ing := newIngester(t, store, WithIndex(idx))

	report, err := ing.IngestEntities(context.Background(), "entities.csv", strings.NewReader(entityCSV))
	require.NoError(t, err)

	assert.Equal(t, "entity", report.Kind)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 2, report.Indexed)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, 4, report.Rejected[0].Line)

	writes := store.Writes()
	require.Len(t, writes, 2)
	byID := map[string]graphtest.Call{}
	for _, w := range writes {
		byID[w.Params["id"].(string)] = w
	}
	bx := byID["e-1"]
	assert.Contains(t, bx.Query, "e:Investor")
	assert.Equal(t, "Blackstone", bx.Params["name"])
	assert.Equal(t, "Investor", bx.Params["type"])
	assert.Equal(t, "2025-06-01T12:00:00Z", bx.Params["now"])
	attrs := bx.Params["attributes"].(map[string]interface{})
	assert.Equal(t, "Real Estate", attrs["sector"])
	assert.Contains(t, byID["e-2"].Query, "e:Company")
}

func TestIngester_EntityFailuresAreCounted(t *testing.T) {
	store := graphtest.New().
		On("MERGE (e:Entity {id: $id})", graphtest.Response{Err: errors.New("neo4j unavailable")})
	idx := &fakeIndexer{}
	ing := newIngester(t, store, WithIndex(idx))

	report, err := ing.IngestEntities(context.Background(), "entities.csv", strings.NewReader(entityCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Succeeded())
	assert.Empty(t, idx.docs, "failed upserts are not indexed")
}

func TestIngester_IndexFailureKeepsUpsert(t *testing.T) {
	store := graphtest.New()
	idx := &fakeIndexer{fail: map[string]bool{"e-1": true}}
	ing := newIngester(t, store, WithIndex(idx))

	report, err := ing.IngestEntities(context.Background(), "entities.csv", strings.NewReader(entityCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated, "no created flag means an existing node")
	assert.Equal(t, 1, report.Indexed)
}

func TestIngester_Errors(t *testing.T) {
	ing := New(nil, nil, logger.NewTestLogger(t))
	_, err := ing.IngestEntities(context.Background(), "entities.csv", strings.NewReader(entityCSV))
	var se *apperrors.StandardError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, apperrors.ErrCodeStoreNotConfigured, se.Code)

	ing = newIngester(t, graphtest.New())
	_, err = ing.IngestRelationships(context.Background(), "rels.csv", strings.NewReader("from,to\n"))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, apperrors.ErrCodeIngestFailed, se.Code)
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

// ==========================
// Relationships
// ==========================

func TestIngester_IngestRelationships(t *testing.T) {
	csv := "from_id,to_id,type,source_type,authority,amount,year\n" +
		"e-1,e-2,INVESTS_IN,,,50000000,2019\n" +
		"e-1,e-2,INVESTS_IN,SEC_FILINGS,,,\n" +
		"e-3,e-2,INVESTS_IN,NEWS_REPORTS,0.6,,\n" +
		"e-3,e-3,INVESTS_IN,,,,\n"

	store := graphtest.New()
	ing := newIngester(t, store)

	report, err := ing.IngestRelationships(context.Background(), "rels.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Created)
	assert.Len(t, report.Rejected, 1)

	var merged, props []graphtest.Call
	for _, w := range store.Writes() {
		switch {
		case strings.Contains(w.Query, "MERGE (a)-[r:INVESTS_IN]->(b)"):
			merged = append(merged, w)
		case strings.Contains(w.Query, "SET r += $properties"):
			props = append(props, w)
		}
	}
	require.Len(t, merged, 2)
	require.Len(t, props, 1, "only the edge with extra columns gets properties")

	byFrom := map[string]graphtest.Call{}
	for _, m := range merged {
		byFrom[m.Params["from"].(string)] = m
	}
	// CSV_IMPORT 0.8 and SEC_FILINGS 0.95 average to 0.875
	bx := byFrom["e-1"]
	assert.InDelta(t, 0.875, bx.Params["confidence"].(float64), 1e-9)
	assert.Equal(t, 2, bx.Params["sourceCount"])
	assert.Equal(t, true, bx.Params["hasOfficialSource"])
	assert.Equal(t, false, bx.Params["requiresVerification"])

	news := byFrom["e-3"]
	assert.InDelta(t, 0.6, news.Params["confidence"].(float64), 1e-9)
	assert.Equal(t, false, news.Params["hasOfficialSource"])

	edge := props[0].Params["properties"].(map[string]interface{})
	assert.Equal(t, 50000000.0, edge["amount"])
	assert.Equal(t, 2019.0, edge["year"])
}

func TestIngester_RelationshipsNeverDowngrade(t *testing.T) {
	csv := "from_id,to_id,type\n" +
		"e-1,e-2,INVESTS_IN\n"

	store := graphtest.New().
		OnRows("coalesce(r.confidence, 0.0) AS confidence", models.Row{"id": "r-1", "confidence": 0.92})
	ing := newIngester(t, store)

	report, err := ing.IngestRelationships(context.Background(), "rels.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
	assert.Zero(t, store.CallCount("MERGE (a)-[r:"))
}

func TestIngester_RelationshipUpsertFailure(t *testing.T) {
	csv := "from_id,to_id,type\n" +
		"e-1,e-2,INVESTS_IN\n"

	store := graphtest.New().OnError("MERGE (a)-[r:", errors.New("constraint violation"))
	ing := newIngester(t, store)

	report, err := ing.IngestRelationships(context.Background(), "rels.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
}
