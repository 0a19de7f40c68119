// Package logger is the structured logging used by the server and its services.
package logger

import (
	"fmt"
	"sort"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
	Sync() error
}

// New builds the process logger. format "json" writes one JSON object per line
// tagged with the service name; anything else writes the console encoding.
func New(level, format string) (Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}

	cfg := zap.NewDevelopmentConfig()
	if format == "json" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.InitialFields = map[string]interface{}{"service": "collab-nest"}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return FromZap(l), nil
}

// FromZap wraps l.
func FromZap(l *zap.Logger) Logger {
	return &structured{z: l}
}

func NewTestLogger(t testing.TB) Logger {
	return FromZap(zaptest.NewLogger(t))
}

func NewNoOpLogger() Logger {
	return FromZap(zap.NewNop())
}

type structured struct {
	z *zap.Logger
}

func (s *structured) Debug(msg string, fields map[string]interface{}) {
	s.z.Debug(msg, toZap(fields)...)
}

func (s *structured) Info(msg string, fields map[string]interface{}) {
	s.z.Info(msg, toZap(fields)...)
}

func (s *structured) Warn(msg string, fields map[string]interface{}) {
	s.z.Warn(msg, toZap(fields)...)
}

func (s *structured) Error(msg string, fields map[string]interface{}) {
	s.z.Error(msg, toZap(fields)...)
}

func (s *structured) WithFields(fields map[string]interface{}) Logger {
	return &structured{z: s.z.With(toZap(fields)...)}
}

func (s *structured) WithError(err error) Logger {
	return &structured{z: s.z.With(zap.Error(err))}
}

func (s *structured) Sync() error {
	return s.z.Sync()
}

// toZap emits fields in key order so console lines are stable.
func toZap(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
