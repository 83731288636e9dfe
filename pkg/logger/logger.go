// Package logger provides a configured zerolog logger.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger scoped to the given service name.
func New(serviceName, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
