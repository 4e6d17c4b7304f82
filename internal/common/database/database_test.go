package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pm-intelligence/internal/common/config"
)

// ==========================
// Neo4j value conversion
// ==========================

func TestRecordToRow_ConvertsGraphValues(t *testing.T) {
	node := dbtype.Node{
		ElementId: "4:abc:1",
		Labels:    []string{"Entity", "Company"},
		Props:     map[string]interface{}{"id": "c1", "name": "Stripe"},
	}
	rel := dbtype.Relationship{
		ElementId: "5:abc:9",
		Type:      "INVESTS_IN",
		Props:     map[string]interface{}{"confidence": 0.9},
	}

	row := RecordToRow(map[string]interface{}{
		"e":     node,
		"r":     rel,
		"p":     dbtype.Path{Nodes: []dbtype.Node{node}, Relationships: []dbtype.Relationship{rel}},
		"d":     dbtype.Date(time.Date(2021, 5, 4, 0, 0, 0, 0, time.UTC)),
		"list":  []interface{}{node, int64(3)},
		"count": int64(7),
	})

	e := row.Map("e")
	require.NotNil(t, e)
	assert.Equal(t, "Stripe", e["name"])
	assert.Equal(t, []string{"Entity", "Company"}, e["labels"])

	r := row.Map("r")
	require.NotNil(t, r)
	assert.Equal(t, "INVESTS_IN", r["type"])
	assert.Equal(t, 0.9, r["confidence"])

	p := row.Map("p")
	require.NotNil(t, p)
	assert.Len(t, p["nodes"], 1)
	assert.Len(t, p["relationships"], 1)

	assert.Equal(t, "2021-05-04", row["d"])
	assert.Equal(t, 7, row.Int("count"))

	list, ok := row["list"].([]interface{})
	require.True(t, ok)
	assert.IsType(t, map[string]interface{}{}, list[0])
	assert.Equal(t, int64(3), list[1])
}

func TestNeo4jStore_Integration(t *testing.T) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skipf("NEO4J_URI not set")
	}
	ctx := context.Background()
	store, err := NewNeo4j(ctx, config.GraphConfig{
		URI:      uri,
		Username: os.Getenv("NEO4J_USERNAME"),
		Password: os.Getenv("NEO4J_PASSWORD"),
	})
	require.NoError(t, err)
	defer store.Close(ctx)

	if err := store.Ping(ctx); err != nil {
		t.Skipf("neo4j not reachable: %v", err)
	}

	out, err := store.ExecuteQuery(ctx, "RETURN $x AS x", map[string]interface{}{"x": 42})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 42, out.Rows[0].Int("x"))
}

// ==========================
// Redis JSON helpers
// ==========================

func TestRedisClient_JSON(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	type payload struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}

	var missing payload
	found, err := GetJSON(ctx, client.Client, "absent", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, client.Client, "k", payload{Name: "KKR", Score: 0.5}, time.Minute))
	var got payload
	found, err = GetJSON(ctx, client.Client, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "KKR", Score: 0.5}, got)

	mr.FastForward(2 * time.Minute)
	found, err = GetJSON(ctx, client.Client, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mr.Set("bad", "not-json"))
	_, err = GetJSON(ctx, client.Client, "bad", &got)
	assert.Error(t, err)
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

// ==========================
// Elasticsearch health
// ==========================

func TestElasticsearchClient_Ping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"green", http.StatusOK, `{"status":"green"}`, false},
		{"yellow single node", http.StatusOK, `{"status":"yellow"}`, false},
		{"red", http.StatusOK, `{"status":"red"}`, true},
		{"unauthorized", http.StatusUnauthorized, `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Elastic-Product", "Elasticsearch")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
			require.NoError(t, err)
			assert.Equal(t, "pm-entities", client.Index)

			err = client.Ping(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewElasticsearch_RequiresAddresses(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{Enabled: true})
	assert.Error(t, err)
}

// ==========================
// Postgres pool
// ==========================

func TestNewPostgres(t *testing.T) {
	_, err := NewPostgres(config.PostgresConfig{Port: 5432})
	assert.Error(t, err)

	client, err := NewPostgres(config.PostgresConfig{Host: "localhost", Port: 5432, Database: "pm_audit", User: "pm"})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, defaultAuditConns, client.DB.Stats().MaxOpenConnections)
}
