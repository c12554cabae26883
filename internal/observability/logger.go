// Package observability holds the CLI's logger and metrics endpoint.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process logger. It discards output until InitCLILogger
// is called.
var CLILogger = zap.NewNop()

// NewCLILogger builds a logger writing to stderr: human-readable at debug
// level when verbose, JSON at info level otherwise.
func NewCLILogger(service string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", service)), nil
}

// InitCLILogger replaces CLILogger. On failure CLILogger falls back to a
// production logger.
func InitCLILogger(service string, verbose bool) {
	logger, err := NewCLILogger(service, verbose)
	if err != nil {
		logger = zap.Must(zap.NewProduction())
		logger.Warn("Falling back to default logger", zap.Error(err))
	}
	CLILogger = logger
}
