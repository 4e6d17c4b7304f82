package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// fakeES answers like an Elasticsearch node; handlers are keyed by
// "METHOD /path".
type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]func(w http.ResponseWriter)
}

func newFakeES(t *testing.T) (*fakeES, *elasticsearch.Client) {
	f := &fakeES{handlers: map[string]func(w http.ResponseWriter){}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return f, client
}

func (f *fakeES) on(route string, status int, body string) {
	f.handlers[route] = func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (f *fakeES) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	route := r.Method + " " + r.URL.Path
	f.mu.Lock()
	if r.URL.Path != "/" {
		f.requests = append(f.requests, rec)
	}
	h, ok := f.handlers[route]
	f.mu.Unlock()

	if ok {
		h(w)
		return
	}
	if r.URL.Path == "/" {
		_, _ = io.WriteString(w, `{"version":{"number":"8.11.0"},"tagline":"You Know, for Search"}`)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"error":"no handler"}`)
}

func (f *fakeES) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

const twoHits = `{
  "took": 3,
  "hits": {
    "total": {"value": 2},
    "hits": [
      {"_score": 4.2, "_source": {"id": "e-1", "name": "Blackstone", "type": "Investor"}},
      {"_score": 2.1, "_source": {"id": "e-2", "name": "Blackstone Group", "type": "Investor"}},
      {"_score": 1.5, "_source": {"id": "e-3", "name": "blackstone", "type": "Fund"}}
    ]
  }
}`

// ==========================
// Indexing
// ==========================

func TestEntityIndex_IndexEntity(t *testing.T) {
	fake, client := newFakeES(t)
	fake.on("PUT /pm-entities/_doc/e-1", http.StatusCreated, `{"result":"created"}`)
	idx := NewEntityIndex(client, "", logger.NewTestLogger(t))

	err := idx.IndexEntity(context.Background(), models.Entity{
		ID:   "e-1",
		Type: models.EntityInvestor,
		Name: "Blackstone",
		Attributes: models.Attributes{
			models.AttrSector:  models.StringValue("Real Estate"),
			models.AttrCountry: models.StringValue("US"),
			models.AttrAliases: models.ListValue(models.StringValue("BX"), models.StringValue("Blackstone Inc")),
		},
	})
	require.NoError(t, err)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Blackstone", reqs[0].Body["name"])
	assert.Equal(t, "Investor", reqs[0].Body["type"])
	assert.Equal(t, "Real Estate", reqs[0].Body["sector"])
	assert.Equal(t, []interface{}{"BX", "Blackstone Inc"}, reqs[0].Body["aliases"])
}

func TestEntityIndex_IndexEntityErrors(t *testing.T) {
	fake, client := newFakeES(t)
	fake.on("PUT /pm-entities/_doc/e-1", http.StatusBadRequest, `{"error":"mapper_parsing_exception"}`)
	idx := NewEntityIndex(client, "", logger.NewTestLogger(t))

	err := idx.IndexEntity(context.Background(), models.Entity{ID: "e-1", Name: "Blackstone"})
	assert.True(t, errors.Is(err, ErrIndexFailed))

	err = idx.IndexEntity(context.Background(), models.Entity{Name: "No ID"})
	assert.True(t, errors.Is(err, ErrIndexFailed))
}

func TestEntityIndex_EnsureIndex(t *testing.T) {
	tests := []struct {
		name        string
		existStatus int
		wantCreate  bool
	}{
		{"creates a missing index", http.StatusNotFound, true},
		{"keeps an existing index", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, client := newFakeES(t)
			fake.on("HEAD /entities", tt.existStatus, "")
			fake.on("PUT /entities", http.StatusOK, `{"acknowledged":true}`)
			idx := NewEntityIndex(client, "entities", logger.NewTestLogger(t))

			require.NoError(t, idx.EnsureIndex(context.Background()))

			created := false
			for _, r := range fake.recorded() {
				if r.Method == http.MethodPut {
					created = true
					assert.Contains(t, r.Body, "mappings")
				}
			}
			assert.Equal(t, tt.wantCreate, created)
		})
	}
}

// ==========================
// Search
// ==========================

func TestEntityIndex_Suggest(t *testing.T) {
	fake, client := newFakeES(t)
	fake.on("POST /pm-entities/_search", http.StatusOK, twoHits)
	idx := NewEntityIndex(client, "", logger.NewTestLogger(t))

	names, err := idx.Suggest(context.Background(), "Blakstone", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Blackstone", "Blackstone Group"}, names)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	raw, _ := json.Marshal(reqs[0].Body)
	assert.Contains(t, string(raw), `"fuzziness":"AUTO"`)
	assert.Contains(t, string(raw), `"query":"Blakstone"`)
}

func TestEntityIndex_SuggestEmptyText(t *testing.T) {
	fake, client := newFakeES(t)
	idx := NewEntityIndex(client, "", logger.NewTestLogger(t))

	names, err := idx.Suggest(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Empty(t, fake.recorded())
}

func TestEntityIndex_SearchFilters(t *testing.T) {
	fake, client := newFakeES(t)
	fake.on("POST /pm-entities/_search", http.StatusOK, twoHits)
	idx := NewEntityIndex(client, "", logger.NewTestLogger(t))

	res, err := idx.Search(context.Background(), Query{Type: "Investor", Sector: "Fintech"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TotalHits)
	require.Len(t, res.Hits, 3)
	assert.InDelta(t, 4.2, res.Hits[0].Score, 1e-9)

	raw, _ := json.Marshal(fake.recorded()[0].Body)
	body := string(raw)
	assert.Contains(t, body, `"match_all"`)
	assert.Contains(t, body, `{"term":{"type":"investor"}}`)
	assert.Contains(t, body, `{"term":{"sector":"fintech"}}`)
	assert.False(t, strings.Contains(body, "country"))
}

func TestEntityIndex_SearchFailure(t *testing.T) {
	fake, client := newFakeES(t)
	fake.on("POST /pm-entities/_search", http.StatusInternalServerError, `{"error":"search_phase_execution_exception"}`)
	idx := NewEntityIndex(client, "", logger.NewTestLogger(t))

	_, err := idx.Suggest(context.Background(), "Blackstone", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSearchQueryFailed))
}
