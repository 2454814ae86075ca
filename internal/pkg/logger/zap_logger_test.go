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

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))

	l.Info("Executor", "stage finished", map[string]interface{}{"stage": "generate"})
	l.Warn("Session", "retrieval degraded", nil)
	l.Error("Session", "generation failed", map[string]interface{}{"error": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "Executor", first["module"])
	assert.Equal(t, map[string]interface{}{"stage": "generate"}, first["details"])

	assert.Equal(t, map[string]interface{}{}, entries[1].ContextMap()["details"])
	assert.Equal(t, "boom", entries[2].ContextMap()["cause"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestStringErrorsAreNotDuplicated(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))

	l.Error("Session", "generation failed", map[string]interface{}{"error": "boom"})

	require.Len(t, logs.All(), 1)
	assert.NotContains(t, logs.All()[0].ContextMap(), "cause")
}

func TestLevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewFromZap(zap.New(core))

	l.Debug("Executor", "stage complete", nil)
	l.Info("Executor", "stage complete", nil)
	l.Warn("Executor", "turn abandoned", nil)

	require.Len(t, logs.All(), 1)
	assert.Equal(t, "turn abandoned", logs.All()[0].Message)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("m", "ignored", nil)
	assert.NoError(t, l.Sync())
}
