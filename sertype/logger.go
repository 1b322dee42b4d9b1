package sertype

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	nopLogger    = zap.NewNop()
	lifecycleLog atomic.Pointer[zap.Logger]
)

// Logger returns the logger for type lifecycle events. Registration,
// derivation and freeing are logged at debug level, a release past zero
// references at error level. It is a no-op logger until SetLogger is called.
func Logger() *zap.Logger {
	if l := lifecycleLog.Load(); l != nil {
		return l
	}
	return nopLogger
}

// SetLogger sets the lifecycle logger. A nil logger restores the no-op
// default. It is safe to call while types are in use.
func SetLogger(l *zap.Logger) {
	lifecycleLog.Store(l)
}
