// Package logger initializes and configures the global zerolog instance.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/warwatch/internal/config"
	"golang.org/x/term"
)

// Setup initializes the global logger from the log section of the config.
// Unknown levels fall back to info; an unopenable file falls back to stderr.
func Setup(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = New(cfg)
}

// New builds a logger for the given config without touching global state.
func New(cfg config.LogConfig) zerolog.Logger {
	writer := openOutput(cfg.Output)

	if cfg.Format == "json" {
		return zerolog.New(writer).With().Timestamp().Logger()
	}

	cw := zerolog.ConsoleWriter{
		Out:        writer,
		TimeFormat: time.RFC3339,
	}
	if f, ok := writer.(*os.File); ok {
		if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(f.Fd())) {
			cw.NoColor = true
		}
	}
	return zerolog.New(cw).With().Timestamp().Logger()
}

func openOutput(output string) io.Writer {
	switch output {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		tmp := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		tmp.Error().Err(err).Str("path", output).Msg("failed to open log file, falling back to stderr")
		return os.Stderr
	}
	return file
}
