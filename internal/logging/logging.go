package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a zap logger at level ("debug", "info", ...; empty means info).
// Development loggers write human-readable console output.
func New(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}
