package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: test-app
graph:
  uri: neo4j://graph:7687
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test-app", cfg.App.Name)
	assert.Equal(t, 10, cfg.Conversation.WindowSize)
	assert.Equal(t, 60, cfg.Conversation.SessionTTL)
	assert.Equal(t, 4, cfg.Conversation.MaxFollowUps)
	assert.Equal(t, 60*time.Minute, cfg.Conversation.SessionTTLDuration())
	assert.Equal(t, 1024, cfg.Sources.ValidationCacheSize)
	assert.Equal(t, 8, cfg.Inference.BatchSize)
	assert.Equal(t, "neo4j", cfg.Graph.Database)
	assert.Equal(t, "test-app", cfg.Observability.ServiceName)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_GRAPH_PASSWORD", "s3cret")
	path := writeConfig(t, `
graph:
  uri: neo4j://graph:7687
  password: ${TEST_GRAPH_PASSWORD}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Graph.Password)
}

func TestLoadFromFile_UnsetPlaceholderFallsBackToDefault(t *testing.T) {
	path := writeConfig(t, `
graph:
  uri: ${TEST_UNSET_GRAPH_URI_VALUE}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "neo4j://localhost:7687", cfg.Graph.URI)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	path := writeConfig(t, `
workers:
  process-query:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	w := cfg.GetWorkerConfig("process-query")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.True(t, cfg.IsWorkerEnabled("process-query"))
	assert.False(t, cfg.IsWorkerEnabled("unknown-worker"))
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "too many follow ups",
			body: "conversation:\n  max_follow_ups: 6\n",
		},
		{
			name: "threshold out of range",
			body: "inference:\n  thresholds:\n    co_investment: 1.5\n",
		},
		{
			name: "redis enabled without address",
			body: "database:\n  redis:\n    enabled: true\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, GetDuration(250, time.Second))
	assert.Equal(t, time.Second, GetDuration(0, time.Second))
	assert.Equal(t, time.Second, GetDuration(-5, time.Second))
}
