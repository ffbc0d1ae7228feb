// Package logging builds the zap loggers used by the CLI, TUI and server.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr. json selects the production
// encoder; otherwise a console encoder is used.
func New(level string, json bool) (*zap.Logger, error) {
	return build(level, json, "stderr")
}

// NewFile returns a JSON logger appending to path. The TUI uses it because
// the alternate screen owns the terminal.
func NewFile(path, level string) (*zap.Logger, error) {
	return build(level, true, path)
}

func build(level string, json bool, output string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	var config zap.Config
	if json {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{output}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
