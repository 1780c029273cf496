package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnv names the environment variable that sets the log level.
const LevelEnv = "MODERATION_LOG_LEVEL"

// Init initializes the global logger with configuration from environment variables.
// MODERATION_LOG_LEVEL controls the log level: debug, info, warn, error (default: warn).
// Logs always go to stderr so stdout carries only results.
func Init() {
	SetLevel(os.Getenv(LevelEnv))
	log.Logger = log.Output(consoleWriter(os.Stderr))
}

// SetLevel applies a level name. Unknown or empty names fall back to warn,
// which keeps the interactive output free of request chatter.
func SetLevel(name string) zerolog.Level {
	level := zerolog.WarnLevel
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}

func consoleWriter(out *os.File) io.Writer {
	return zerolog.ConsoleWriter{
		Out:     out,
		NoColor: !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd()),
	}
}
