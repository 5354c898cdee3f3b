//go:build !nogpu

package halnative

import (
	"log/slog"

	"github.com/gogpu/gpuhal"
)

// slogger returns the logger for devices opened without Config.Logger.
func slogger() *slog.Logger {
	return gpuhal.Logger()
}
