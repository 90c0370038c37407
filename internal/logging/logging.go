// Package logging wires the scanner's zerolog output, mirroring the
// teacher's console-writer init in cmd/pulse/main.go but adding a JSON mode
// for production deployments and a level parsed from config.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. format is "console" or "json";
// level is any zerolog level name ("debug", "info", "warn", "error").
// Unrecognized levels fall back to info rather than failing startup.
func Init(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if strings.ToLower(format) == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// Component returns a child logger tagged with a "component" field, the
// pattern used throughout the teacher's codebase for scoping log lines to a
// subsystem (e.g. "scheduler", "ingest", "observer").
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
