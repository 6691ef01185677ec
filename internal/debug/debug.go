package debug

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Debug mode switches to the human readable
// development encoder and enables debug level output.
func NewLogger(enabled bool) (*zap.Logger, error) {
	if enabled {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Timing measures and logs execution time of an operation at debug level.
//
//	defer debug.Timing(logger, "resolve properties")()
func Timing(logger *zap.Logger, operation string) func() {
	if logger == nil || !logger.Core().Enabled(zapcore.DebugLevel) {
		return func() {}
	}

	start := time.Now()
	logger.Debug("starting", zap.String("operation", operation))

	return func() {
		logger.Debug("completed",
			zap.String("operation", operation),
			zap.Duration("took", time.Since(start)))
	}
}
