package mapreduce

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger builds the structured logger used by the coordinator and
// worker runtimes. debug enables Debug-level scheduler transition logs.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// Fatal logs err at Error level and exits the process with status 1,
// matching spec.md §6's exit-code contract for unrecoverable failures.
func Fatal(logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	os.Exit(1)
}
