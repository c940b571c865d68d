package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zerologLevel converts a string log level to zerolog.Level.
func zerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the logger used by the database and influx managers.
// It writes console format to the same destination the slog manager uses.
func NewZerolog(file io.Writer, level string, component string) zerolog.Logger {
	out := file
	if out == nil {
		out = consoleOut
	}
	w := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(w).
		Level(zerologLevel(level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
