package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range testCases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With("component", "test")

	log.Debug("debug message")
	log.Info("fetched rates", "count", 31)
	log.Warn("serving stale entry", "key", "rates:latest")
	log.Error("upstream failed", "status", 503)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "fetched rates", entries[1].Message)
	fields := entries[1].ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.EqualValues(t, 31, fields["count"])

	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.EqualValues(t, 503, entries[3].ContextMap()["status"])
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Info("discarded", "k", "v")
	assert.NoError(t, log.Sync())
}
