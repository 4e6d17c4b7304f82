package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"cross-validate-claim", "infer-relationships", "process-query"}, reg.TaskTypes())

	a, ok := reg.Lookup("infer-relationships")
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, a.TimeoutOr(time.Second))
	assert.True(t, a.Throws("UNKNOWN_INFERENCE_PATTERN"))
	assert.False(t, a.Throws("NO_SOURCES"))

	_, ok = reg.Lookup("send-email")
	assert.False(t, ok)
}

func TestActivity_ValidateInput(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	tests := []struct {
		name      string
		taskType  string
		variables string
		wantValid bool
	}{
		{"query ok", "process-query", `{"text":"Who co-invested with Sequoia?"}`, true},
		{"query empty text", "process-query", `{"text":""}`, false},
		{"inference empty input", "infer-relationships", `{}`, true},
		{"inference bad batch", "infer-relationships", `{"batchSize":0}`, false},
		{"claim ok", "cross-validate-claim", `{"claim":{"subject":"Acme","predicate":"ACQUIRED","object":"Beta"},"sources":[{"sourceType":"SEC_FILINGS","agrees":true}]}`, true},
		{"claim no sources", "cross-validate-claim", `{"claim":{"subject":"Acme","predicate":"ACQUIRED","object":"Beta"},"sources":[]}`, false},
		{"claim authority out of range", "cross-validate-claim", `{"claim":{"subject":"Acme","predicate":"ACQUIRED","object":"Beta"},"sources":[{"sourceType":"SEC_FILINGS","agrees":true,"authority":1.5}]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := reg.Lookup(tt.taskType)
			require.True(t, ok)
			res, err := a.ValidateInput(tt.variables)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.Valid, res.String())
		})
	}
}

func TestLoadRegistry_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.json")},
		{"bad json", write("bad.json", `{"activities":`)},
		{"duplicate", write("dup.json", `{"activities":[{"taskType":"x"},{"taskType":"x"}]}`)},
		{"no task type", write("empty.json", `{"activities":[{"displayName":"A"}]}`)},
		{"bad timeout", write("timeout.json", `{"activities":[{"taskType":"x","timeout":"soon"}]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegistry(tt.path)
			assert.Error(t, err)
		})
	}
}
