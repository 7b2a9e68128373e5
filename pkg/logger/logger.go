package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

// InitWithLevel initializes the global logger honoring the provided level
// string ("debug", "info", "warn", "error"). If level is empty it falls back
// to the CHATCACHE_LOG_LEVEL env var.
func InitWithLevel(level string) {
	// Allow overriding sink and level via env vars for tests and production
	sink := os.Getenv("CHATCACHE_LOG_SINK") // e.g. "file:/path/to/log"
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("CHATCACHE_LOG_LEVEL")))
	}
	var lv zapcore.Level
	switch lvl {
	case "debug":
		lv = zapcore.DebugLevel
	case "warn", "warning":
		lv = zapcore.WarnLevel
	case "error":
		lv = zapcore.ErrorLevel
	default:
		lv = zapcore.InfoLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	ws := zapcore.AddSync(os.Stdout)
	if strings.HasPrefix(sink, "file:") {
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			ws = zapcore.AddSync(f)
		} else {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
		}
	}
	Log = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, lv))
}

// Sync flushes buffered log entries.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

// Debug logs with key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Sugar().Debugw(msg, args...)
}

// Info logs with key/value pairs.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Sugar().Infow(msg, args...)
}

// Warn logs with key/value pairs.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Sugar().Warnw(msg, args...)
}

// Error logs with key/value pairs.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Sugar().Errorw(msg, args...)
}
