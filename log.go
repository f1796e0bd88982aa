package sdc

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the debug channel on stderr. Level 0 only reports
// warnings such as ignored configuration values, 1 logs progress, 2 and
// above log parse details, 3 also dumps the catalog.
func NewLogger(level int) *zap.Logger {
	return newLogger(zapcore.Lock(os.Stderr), level)
}

func newLogger(sink zapcore.WriteSyncer, level int) *zap.Logger {
	zapLevel := zapcore.WarnLevel
	switch {
	case level >= 2:
		zapLevel = zapcore.DebugLevel
	case level == 1:
		zapLevel = zapcore.InfoLevel
	}

	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(zapLevel))
	return zap.New(core, zap.ErrorOutput(sink)).
		Named("sdc").
		With(zap.Int("pid", os.Getpid()))
}

// logConfigWarnings reports configuration values that were ignored.
func logConfigWarnings(logger *zap.Logger, warnings []error) {
	for _, warning := range warnings {
		logger.Warn("ignoring configuration value", zap.Error(warning))
	}
}
