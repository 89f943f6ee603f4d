// Package monitoring holds the process-wide diagnostic logger. Pipeline
// packages log through Logf so commands can route output to zap and tests
// can mute it.
package monitoring

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to a zap console
// logger on stderr but may be replaced by SetLogger or UseZap.
var Logf func(format string, v ...interface{}) = defaultLogger().Sugar().Infof

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// UseZap routes Logf through l at info level.
func UseZap(l *zap.Logger) {
	SetLogger(l.Sugar().Infof)
}

// NewLogger builds a zap logger writing to stderr. format is "json" or
// "console"; debug lowers the level from info to debug.
func NewLogger(format string, debug bool) (*zap.Logger, error) {
	var enc zapcore.Encoder
	switch format {
	case "json":
		enc = zapcore.NewJSONEncoder(encoderConfig())
	case "console", "":
		enc = zapcore.NewConsoleEncoder(encoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q (want json or console)", format)
	}
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return zap.New(core), nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func defaultLogger() *zap.Logger {
	l, _ := NewLogger("console", false)
	return l
}
