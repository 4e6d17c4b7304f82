package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pm-intelligence/internal/common/logger"
)

func createTestConfig(url string) Config {
	return Config{
		BaseURL:    url,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}
}

// ==========================
// Success paths
// ==========================

func TestClient_Enrich(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"text":       "  KKR and TPG have co-invested in four healthcare deals.  ",
			"confidence": 0.8,
		})
	}))
	defer server.Close()

	c := New(createTestConfig(server.URL), logger.NewTestLogger(t))
	insight, err := c.Enrich(context.Background(), "KKR CO_INVESTED TPG")

	require.NoError(t, err)
	assert.Equal(t, "KKR and TPG have co-invested in four healthcare deals.", insight)
	assert.Contains(t, got["prompt"], "KKR CO_INVESTED TPG")
	assert.Equal(t, float64(200), got["max_tokens"])
}

func TestClient_EnrichEmptyInsight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":""}`))
	}))
	defer server.Close()

	c := New(createTestConfig(server.URL), logger.NewTestLogger(t))
	insight, err := c.Enrich(context.Background(), "Stripe (Company)")

	require.NoError(t, err)
	assert.Empty(t, insight)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"text":"third time lucky"}`))
	}))
	defer server.Close()

	c := New(createTestConfig(server.URL), logger.NewTestLogger(t))
	insight, err := c.Enrich(context.Background(), "Blackstone")

	require.NoError(t, err)
	assert.Equal(t, "third time lucky", insight)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// ==========================
// Failure paths
// ==========================

func TestClient_EnrichErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    error
	}{
		{
			name: "server error after retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			timeout: 2 * time.Second,
			want:    ErrEnrichmentFailed,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			timeout: 2 * time.Second,
			want:    ErrEnrichmentFailed,
		},
		{
			name: "slow service",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			want:    ErrEnrichmentTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			cfg := createTestConfig(server.URL)
			cfg.Timeout = tt.timeout
			c := New(cfg, logger.NewTestLogger(t))

			insight, err := c.Enrich(context.Background(), "Blackstone")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Empty(t, insight)
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	c := New(Config{}, logger.NewTestLogger(t))
	_, err := c.Enrich(context.Background(), "Blackstone")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "pm-intelligence/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New(createTestConfig(server.URL), logger.NewTestLogger(t))
	_, err := c.Enrich(context.Background(), "Blackstone")

	assert.True(t, errors.Is(err, ErrEnrichmentFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
