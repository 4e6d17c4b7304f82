package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pm-intelligence/internal/conversation"
	"pm-intelligence/internal/models"
)

func TestRootCommandTree(t *testing.T) {
	want := []string{"ask", "infer", "validate", "ingest", "search", "workers"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	cmd, _, err := rootCmd.Find([]string{"validate", "sources"})
	require.NoError(t, err)
	assert.Equal(t, "sources", cmd.Name())
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claim.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no argument reads stdin", nil, `{"from":"stdin"}`},
		{"dash reads stdin", []string{"-"}, `{"from":"stdin"}`},
		{"file argument", []string{path}, `{"from":"file"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.SetIn(strings.NewReader(`{"from":"stdin"}`))
			got, err := readInput(cmd, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestPrintResponse(t *testing.T) {
	resp := &conversation.Response{
		Answer:     "Blackstone is a private equity firm.",
		Intent:     models.IntentEntityInfo,
		Confidence: 0.82,
		FollowUps:  []string{"What is Blackstone's portfolio?"},
		Metadata:   conversation.Metadata{TotalRecords: 3, ProcessingTimeMs: 12},
	}

	var buf bytes.Buffer
	require.NoError(t, printResponse(&buf, resp))
	out := buf.String()
	assert.Contains(t, out, "Blackstone is a private equity firm.")
	assert.Contains(t, out, "confidence 0.82, 3 records in 12ms")
	assert.Contains(t, out, "> What is Blackstone's portfolio?")
	assert.NotContains(t, out, "insight")
}
