// Package logging builds the process logger. The TUI owns the terminal, so
// output goes to a file.
package logging

import (
	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Joseda-hg/clutchdesk/internal/config"
)

// New returns a JSON logger writing to path at the named level. An empty
// path logs to stderr.
func New(path, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	if path != "" {
		if err := config.EnsureDir(path); err != nil {
			return nil, err
		}
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}
