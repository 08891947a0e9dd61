// Package common provides the shared dependency bootstrap for commands.
package common

import (
	"fmt"

	"github.com/coursepulse/ingest/internal/config"
	"github.com/coursepulse/ingest/internal/logger"
)

// Deps holds the dependencies every command starts from.
type Deps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewCommandDeps loads and validates configuration and builds the logger.
// Configuration failures are fatal: nothing runs without valid config.
func NewCommandDeps() (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Deps{Config: cfg, Logger: log}, nil
}
