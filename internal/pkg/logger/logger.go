// Package logger provides structured JSON logging with optional PII redaction.
//
// Call sites pass a message followed by key/value pairs:
//
//	logger.Info("[Orchestrator] batch complete", "campaign_id", id, "sent", n)
//
// Values under keys that look like e-mail fields, and any e-mail address
// embedded in other values, are masked unless redaction is disabled.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu        sync.RWMutex
	base      = newProduction(zapcore.InfoLevel)
	redactPII = true
)

func newProduction(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Init configures the package logger. level is one of debug, info, warn, error.
func Init(level string, redact bool) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	SetLogger(newProduction(lvl))
	SetRedactPII(redact)
}

// SetLogger replaces the underlying zap logger (tests use zaptest/observer).
func SetLogger(l *zap.Logger) {
	mu.Lock()
	base = l
	mu.Unlock()
}

// SetRedactPII enables or disables PII redaction.
func SetRedactPII(r bool) {
	mu.Lock()
	redactPII = r
	mu.Unlock()
}

// L returns the underlying zap logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() { _ = L().Sync() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { log(zapcore.DebugLevel, msg, fields) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { log(zapcore.InfoLevel, msg, fields) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { log(zapcore.WarnLevel, msg, fields) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { log(zapcore.ErrorLevel, msg, fields) }

func log(level zapcore.Level, msg string, kv []interface{}) {
	mu.RLock()
	l, redact := base, redactPII
	mu.RUnlock()

	ce := l.Check(level, msg)
	if ce == nil {
		return
	}
	ce.Write(toFields(kv, redact)...)
}

func toFields(kv []interface{}, redact bool) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i < len(kv)-1; i += 2 {
		key := fmt.Sprintf("%v", kv[i])
		switch v := kv[i+1].(type) {
		case error:
			val := v.Error()
			if redact {
				val = redactPIIValue(key, val)
			}
			fields = append(fields, zap.String(key, val))
		case int, int64, int32, float64, bool:
			fields = append(fields, zap.Any(key, v))
		default:
			val := fmt.Sprintf("%v", v)
			if redact {
				val = redactPIIValue(key, val)
			}
			fields = append(fields, zap.String(key, val))
		}
	}
	return fields
}
