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

// Options selects the sinks a SlogManager writes to.
type Options struct {
	Level string
	// File receives text output. When nil the console is used instead.
	File io.Writer
	// Console is the console sink, os.Stdout when nil.
	Console io.Writer
	// Graylog receives JSON records, typically a *gelf.Writer from NewGELFWriter.
	Graylog io.Writer
	// Provider enables the OTel bridge when non-nil.
	Provider *sdklog.LoggerProvider
	// Context adds attributes such as the session id to every record.
	Context ContextProvider
}

// SlogManager owns the process logger and the OTel provider it bridges to.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts slog's own level syntax ("debug", "WARN", "info+2") plus
// "warning". Anything else is info.
func parseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

func sinks(opts Options, lvl slog.Level) []slog.Handler {
	ho := &slog.HandlerOptions{Level: lvl, ReplaceAttr: utcTime}

	text := opts.File
	if text == nil {
		text = opts.Console
	}
	if text == nil {
		text = os.Stdout
	}
	out := []slog.Handler{slog.NewTextHandler(text, ho)}
	if opts.Graylog != nil {
		out = append(out, slog.NewJSONHandler(opts.Graylog, ho))
	}
	if opts.Provider != nil {
		out = append(out, otelslog.NewHandler("mapviewer", otelslog.WithLoggerProvider(opts.Provider)))
	}
	return out
}

// Setup builds the handler chain. It may be called again to replace the
// previous chain; the old sinks stop receiving records.
func (m *SlogManager) Setup(opts Options) {
	m.logProvider = opts.Provider
	m.logger = slog.New(NewContextHandler(NewMultiHandler(sinks(opts, parseLevel(opts.Level))...), opts.Context))
	m.logger.Info("Logging initialized", "level", opts.Level)
}

// Logger returns the configured slog.Logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Component returns a child logger tagged with the component name.
func (m *SlogManager) Component(name string) *slog.Logger {
	return m.Logger().With("component", name)
}

// Flush pushes buffered OTel records to the exporter.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}
