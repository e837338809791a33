package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmap/mapviewer/internal/config"
	"github.com/vmap/mapviewer/internal/geolocation"
	"github.com/vmap/mapviewer/internal/logging"
	intOtel "github.com/vmap/mapviewer/internal/otel"
)

// runtimeLogging holds the sinks opened at startup so they can be closed on exit.
type runtimeLogging struct {
	manager  *logging.SlogManager
	logger   *slog.Logger
	zerolog  zerolog.Logger
	otel     *intOtel.Provider
	closers  []io.Closer
	filePath string
}

// setupLogging configures slog with the file, Graylog and OTel sinks the
// config enables. toFile=false keeps output on the console.
func setupLogging(ctx context.Context, sessionID string, toFile bool) (*runtimeLogging, error) {
	rl := &runtimeLogging{manager: logging.NewSlogManager()}
	level := config.GetString("logLevel")

	var out io.Writer
	if toFile {
		dir := config.GetString("logsDir")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		rl.filePath = logging.LogFilePath(dir, "mapviewer", time.Now())
		f, err := os.OpenFile(rl.filePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		rl.closers = append(rl.closers, f)
		out = f
	}

	otelCfg := config.GetOTelConfig()
	provider, err := intOtel.New(ctx, intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		SessionID:    sessionID,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    out,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		// OTel is optional; keep going without it.
		slog.Warn("OTel disabled", "error", err)
		provider, _ = intOtel.New(ctx, intOtel.Config{})
	}
	rl.otel = provider

	opts := logging.Options{
		Level:    level,
		File:     out,
		Provider: provider.LoggerProvider(),
		Context:  logging.SessionContext(sessionID),
	}

	var gelfErr error
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address)
		if err != nil {
			gelfErr = err
		} else {
			opts.Graylog = w
			rl.closers = append(rl.closers, w)
		}
	}

	rl.manager.Setup(opts)
	rl.logger = rl.manager.Logger()
	if gelfErr != nil {
		rl.logger.Warn("Graylog disabled", "error", gelfErr)
	}
	if rl.filePath != "" {
		rl.logger.Info("Logging to file", "path", rl.filePath)
	}

	var zw io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if out != nil {
		zw = out
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	rl.zerolog = zerolog.New(zw).Level(lvl).With().Timestamp().
		Str("component", "dispatcher").Str("session", sessionID).Logger()

	return rl, nil
}

// Close flushes OTel and closes the log sinks.
func (rl *runtimeLogging) Close(ctx context.Context) error {
	errs := []error{rl.manager.Flush(ctx), rl.otel.Shutdown(ctx)}
	for i := len(rl.closers) - 1; i >= 0; i-- {
		errs = append(errs, rl.closers[i].Close())
	}
	return errors.Join(errs...)
}

// buildProvider selects the geolocation provider named in the config. The
// returned closer releases provider resources and is never nil.
func buildProvider(gc config.GeolocationConfig, ipOverride string) (geolocation.Provider, *geolocation.ClientProvider, func() error, error) {
	noop := func() error { return nil }
	switch gc.Provider {
	case "static":
		return geolocation.StaticProvider{Position: gc.Static}, nil, noop, nil
	case "geoip":
		ip := gc.GeoIPIP
		if ipOverride != "" {
			ip = ipOverride
		}
		p, err := geolocation.OpenGeoIP(gc.GeoIPDB, ip)
		if err != nil {
			return nil, nil, noop, err
		}
		return p, nil, p.Close, nil
	case "client", "":
		c := geolocation.NewClientProvider()
		return c, c, noop, nil
	case "none":
		return nil, nil, noop, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown geolocation provider %q", gc.Provider)
}
