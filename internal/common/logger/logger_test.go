package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARNING ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestZapAdapter_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := ForComponent(NewZapAdapter(zap.New(core)), "executor")

	log.With(map[string]interface{}{"query": "entity_info"}).
		Warn("query failed", map[string]interface{}{"cause": errors.New("timeout"), "rows": 0})

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "executor", ctx["component"])
	assert.Equal(t, "entity_info", ctx["query"])
	assert.Equal(t, "timeout", ctx["cause"])
	assert.EqualValues(t, 0, ctx["rows"])
}

func TestZapAdapter_WithError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := NewZapAdapter(zap.New(core))

	assert.Same(t, base, base.WithError(nil))
	base.WithError(errors.New("boom")).Error("run failed", nil)
	base.Debug("filtered", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestForComponent_NilLogger(t *testing.T) {
	log := ForComponent(nil, "scheduler")
	require.NotNil(t, log)
	log.Info("discarded", nil)
}
