// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. DEV gets a human-readable console
// writer; every other environment logs JSON to stdout.
func Setup(env, level string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(env, "DEV") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	return SetupWriter(out, level)
}

// SetupWriter installs a global logger writing to out.
func SetupWriter(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
