// Package logging provides a small slog-backed logging facade used
// throughout this module so that ambient diagnostics (OAuth flow steps,
// best-effort token destruction, skipped commands) share one format and can
// be redirected in tests.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newDefault())
}

func newDefault() *slog.Logger {
	level := slog.LevelInfo
	if jsonLogs() {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// jsonLogs reports whether structured JSON logging was requested via
// FXA_CLIENT_JSON_LOGS. Unset or unparsable values default to false
// (human-readable text), matching the common case of an embedding desktop
// or mobile app tailing stderr during development.
func jsonLogs() bool {
	v, ok := os.LookupEnv("FXA_CLIENT_JSON_LOGS")
	if !ok {
		return false
	}
	return v == "1" || v == "true" || v == "TRUE"
}

// SetOutput redirects the singleton logger to w at the given level. Tests
// use this to assert on emitted log lines without touching global state
// beyond the package-level singleton.
func SetOutput(w io.Writer, level slog.Level) {
	singleton.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Get returns the current singleton logger.
func Get() *slog.Logger {
	return singleton.Load()
}

func Debug(msg string) { Get().Log(context.Background(), slog.LevelDebug, msg) }
func Debugf(format string, args ...any) { Debug(fmt.Sprintf(format, args...)) }
func Debugw(msg string, kv ...any) { Get().Debug(msg, kv...) }
func Info(msg string) { Get().Log(context.Background(), slog.LevelInfo, msg) }
func Infof(format string, args ...any) { Info(fmt.Sprintf(format, args...)) }
func Infow(msg string, kv ...any) { Get().Info(msg, kv...) }
func Warn(msg string) { Get().Log(context.Background(), slog.LevelWarn, msg) }
func Warnf(format string, args ...any) { Warn(fmt.Sprintf(format, args...)) }
func Warnw(msg string, kv ...any) { Get().Warn(msg, kv...) }
func Error(msg string) { Get().Log(context.Background(), slog.LevelError, msg) }
func Errorf(format string, args ...any) { Error(fmt.Sprintf(format, args...)) }
func Errorw(msg string, kv ...any) { Get().Error(msg, kv...) }
