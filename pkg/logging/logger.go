// Package logging builds the process logger and scrubs credentials from
// values that are about to be logged.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l10nledger/ledger/pkg/config"
)

// New builds a zap logger from the log configuration. JSON output uses the
// production encoder; console output uses the development one. Debug forces
// debug level with console output.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	format := cfg.Format
	if cfg.Debug {
		level = zapcore.DebugLevel
		format = "console"
	}

	var zcfg zap.Config
	switch format {
	case "", "json":
		zcfg = zap.NewProductionConfig()
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q: want json or console", format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
