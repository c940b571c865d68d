// Package logging wires the process logger: a text sink (session file or
// console), JSON sinks such as Graylog and the OTel bridge behind one
// Handler. It also builds the zerolog loggers of the database and influx
// managers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName names the OTel logger the slog bridge writes to.
const InstrumentationName = "github.com/WCArena/pudscan"

// consoleOut receives logs when no file is configured. Stdout is reserved
// for command output.
var consoleOut io.Writer = os.Stderr

// SlogManager owns the process logger. Setup may be called again to move
// logging to a new destination.
type SlogManager struct {
	logger      *slog.Logger
	provider    ContextProvider
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a manager whose Logger is slog.Default until Setup.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts slog level names in any case plus "trace" as debug.
// Anything else is info.
func parseLevel(level string) slog.Level {
	if strings.EqualFold(level, "trace") {
		return slog.LevelDebug
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.TimeKey {
				return a
			}
			if t, ok := a.Value.Any().(time.Time); ok {
				a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
			}
			return a
		},
	}
}

// SetContextProvider registers attributes added to every record. It takes
// effect on the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.provider = p
}

// Setup (re)builds the logger. Text records go to file, or to the console
// when file is nil. Every sink gets JSON records. A nil provider disables the
// OTel bridge.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, sinks ...io.Writer) {
	lvl := parseLevel(level)
	opts := handlerOptions(lvl)

	primary := file
	if primary == nil {
		primary = consoleOut
	}
	handlers := []slog.Handler{slog.NewTextHandler(primary, opts)}
	for _, w := range sinks {
		if w != nil {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		}
	}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(provider)))
	}

	m.logProvider = provider
	m.logger = slog.New(NewHandler(m.provider, handlers...))
	m.logger.Info("Logging initialized", "level", lvl.String())
}

// Logger returns the configured logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records out.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}
