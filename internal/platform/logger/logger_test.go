package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestRedactsSecrets(t *testing.T) {
	l, logs := observed()
	l.Info("calling provider", "api_key", "sk-123", "Authorization", "Bearer x", "model", "gpt")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["api_key"])
	assert.Equal(t, "[REDACTED]", fields["Authorization"])
	assert.Equal(t, "gpt", fields["model"])
}

func TestWithRedactsAndKeepsFields(t *testing.T) {
	l, logs := observed()
	l.With("component", "llm", "llm_password", "hunter2").Warn("retrying")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "llm", entry.ContextMap()["component"])
	assert.Equal(t, "[REDACTED]", entry.ContextMap()["llm_password"])
}

func TestSanitizeOddKeyValues(t *testing.T) {
	assert.Equal(t, []interface{}{"token", "[REDACTED]", "dangling"}, sanitizeKVs([]interface{}{"token", "abc", "dangling"}))
	assert.Empty(t, sanitizeKVs(nil))
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "debug", "info", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		assert.NotNil(t, l.SugaredLogger)
	}
	assert.NotNil(t, OrNop(nil).SugaredLogger)
}
