// Package logging configures the global zerolog logger every binary
// in cmd/ shares, through the package-level zerolog/log singleton;
// this repo has four processes instead of one, so that one-line setup
// is factored here instead of copy-pasted four times.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"predictex/internal/config"
)

// Setup applies cfg to the global zerolog logger: parses the level
// (defaulting to info on an unrecognized value) and switches to a
// human-readable console writer when Console is set.
func Setup(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
