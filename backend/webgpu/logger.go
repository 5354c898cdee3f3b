package webgpu

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gpuhal"
)

// loggerPtr stores a package override. When unset, logging follows
// gpuhal.Logger so gpuhal.SetLogger reaches this package without
// registration.
var loggerPtr atomic.Pointer[slog.Logger]

// slogger returns the current package logger.
// All package-level logging in backend/webgpu goes through this function.
func slogger() *slog.Logger {
	if l := loggerPtr.Load(); l != nil {
		return l
	}
	return gpuhal.Logger()
}

// SetLogger overrides the logger for backend/webgpu only.
// Pass nil to follow gpuhal.Logger again.
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(l)
}
