package gpuhal

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discardHandler drops every record. Enabled reports false, so callers skip
// building attributes for disabled levels.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }

var (
	silent  = slog.New(discardHandler{})
	current atomic.Pointer[slog.Logger]
)

// SetLogger installs l as the logger for gpuhal and every sub-package that
// has no override of its own, and returns the previous logger. A nil l
// silences logging, which is also the initial state.
//
// Levels:
//   - [slog.LevelDebug]: resource churn, layout cache misses, pipeline variants
//   - [slog.LevelInfo]: adapter selection, device teardown, config reloads
//   - [slog.LevelWarn]: a request was adjusted or ignored
//   - [slog.LevelError]: the diagnostic logged right before a fatal abort
//
// Example:
//
//	gpuhal.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) (prev *slog.Logger) {
	if l == nil {
		l = silent
	}
	return loggerOrSilent(current.Swap(l))
}

// Logger returns the logger installed by SetLogger. It never returns nil.
func Logger() *slog.Logger {
	return loggerOrSilent(current.Load())
}

func loggerOrSilent(l *slog.Logger) *slog.Logger {
	if l == nil {
		return silent
	}
	return l
}
