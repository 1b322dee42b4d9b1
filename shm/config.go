package shm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/dds-core/errors"
)

// LogLevel is the verbosity of the shared-memory transport. It is
// configured separately from the rest of the process.
type LogLevel int

const (
	LogOff LogLevel = iota
	LogFatal
	LogError
	LogWarn
	LogInfo
	LogDebug
	LogVerbose
)

var levelNames = [...]string{"off", "fatal", "error", "warn", "info", "debug", "verbose"}

func (l LogLevel) String() string {
	if l < LogOff || l > LogVerbose {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLogLevel accepts the level names case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return LogLevel(i), nil
		}
	}
	return LogOff, errors.InvalidInput(errors.PhaseTransport, fmt.Sprintf("unknown shm log level %q", s))
}

// Config configures a Transport.
type Config struct {
	LogLevel LogLevel
}

// logger filters base to the configured level. Verbose and debug both map
// to zap's debug level.
func (c Config) logger(base *zap.Logger) *zap.Logger {
	var lvl zapcore.Level
	switch c.LogLevel {
	case LogOff:
		return zap.NewNop()
	case LogFatal:
		lvl = zapcore.FatalLevel
	case LogError:
		lvl = zapcore.ErrorLevel
	case LogWarn:
		lvl = zapcore.WarnLevel
	case LogInfo:
		lvl = zapcore.InfoLevel
	default:
		lvl = zapcore.DebugLevel
	}
	return base.WithOptions(zap.IncreaseLevel(lvl)).Named("shm")
}

