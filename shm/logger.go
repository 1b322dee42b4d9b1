package shm

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var baseLogger atomic.Pointer[zap.Logger]

// Logger returns the base logger for chunk events. New names it "shm" and
// filters it to the transport's Config.LogLevel: loans, fills, takes and
// releases log at debug level, misuse of unknown or empty chunks at warn.
func Logger() *zap.Logger {
	if l := baseLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger sets the base logger. A Transport captures it in New, so the
// change applies to transports created afterwards.
func SetLogger(l *zap.Logger) {
	baseLogger.Store(l)
}
