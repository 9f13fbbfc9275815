// Package logging wires the ectologger interface used across the codebase to
// a zap backend.
package logging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger. PrettyLogs switches to zap's development
// encoding for local work.
func New(level string, prettyLogs bool) ectologger.Logger {
	zapLevel := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		zapLevel = parsed
	}

	var cfg zap.Config
	if prettyLogs {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	zl, err := cfg.Build(zap.WithCaller(false))
	if err != nil {
		zl = zap.NewNop()
	}

	return zapadapter.NewZapEctoLogger(zl, nil)
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
