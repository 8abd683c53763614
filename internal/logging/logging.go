// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/crossfade/internal/config"
)

// New returns a logger configured from cfg and a closer for its output file.
// Without a file, logs go to stderr and the closer is a no-op.
func New(cfg config.LoggingConfig) (*logrus.Logger, func() error, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	closer := func() error { return nil }
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", cfg.File, err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}
	logger.SetOutput(out)
	return logger, closer, nil
}
