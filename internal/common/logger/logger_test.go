package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
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
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestZapWrapper_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	child := Component(log, "tracking").WithError(errors.New("boom"))
	child.Warn("status change failed", map[string]interface{}{
		"entityId": "app-1",
		"cause":    errors.New("db down"),
	})

	entries := logs.All()
	assert.Len(t, entries, 1)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "tracking", ctx["component"])
	assert.Equal(t, "app-1", ctx["entityId"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "db down", ctx["cause"])
	assert.Equal(t, "status change failed", entries[0].Message)
}

func TestNew_Options(t *testing.T) {
	l := New(Options{Level: "debug", Format: "json", Output: "stderr", Service: "jobboard-workers", Version: "1.2.0"})
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l = New(Options{Level: "warn", Format: "console"})
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	// An unwritable file falls back to stderr instead of failing.
	l = New(Options{Output: "/nonexistent-dir/app.log"})
	assert.NotNil(t, l)
	assert.NotNil(t, NewNoOpLogger())
}

func TestOutputPaths(t *testing.T) {
	assert.Equal(t, []string{"stdout"}, outputPaths(""))
	assert.Equal(t, []string{"stderr"}, outputPaths("stderr"))
	assert.Equal(t, []string{"stdout", "/var/log/app.log"}, outputPaths("/var/log/app.log"))
}
