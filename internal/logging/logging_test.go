package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withCapturedOutput(t *testing.T, fn func()) string {
	t.Helper()
	prev := Get()
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelDebug)
	t.Cleanup(func() { singleton.Store(prev) })
	fn()
	return buf.String()
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name     string
		logFn    func()
		contains string
	}{
		{"Debug", func() { Debug("debug msg") }, "debug msg"},
		{"Debugf", func() { Debugf("debug %s", "formatted") }, "debug formatted"},
		{"Debugw", func() { Debugw("debug kv", "key", "val") }, "debug kv"},
		{"Info", func() { Info("info msg") }, "info msg"},
		{"Infof", func() { Infof("info %s", "formatted") }, "info formatted"},
		{"Infow", func() { Infow("info kv", "key", "val") }, "info kv"},
		{"Warn", func() { Warn("warn msg") }, "warn msg"},
		{"Warnf", func() { Warnf("warn %s", "formatted") }, "warn formatted"},
		{"Warnw", func() { Warnw("warn kv", "key", "val") }, "warn kv"},
		{"Error", func() { Error("error msg") }, "error msg"},
		{"Errorf", func() { Errorf("error %s", "formatted") }, "error formatted"},
		{"Errorw", func() { Errorw("error kv", "key", "val") }, "error kv"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := withCapturedOutput(t, tc.logFn)
			assert.Contains(t, out, tc.contains)
		})
	}
}

func TestJSONLogs(t *testing.T) {
	t.Setenv("FXA_CLIENT_JSON_LOGS", "true")
	assert.True(t, jsonLogs())

	t.Setenv("FXA_CLIENT_JSON_LOGS", "")
	assert.False(t, jsonLogs())
}

func TestGet(t *testing.T) {
	out := withCapturedOutput(t, func() { Get().Info("get test") })
	assert.Contains(t, out, "get test")
}
