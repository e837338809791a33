package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vmap/mapviewer/internal/config"
	"github.com/vmap/mapviewer/internal/geolocation"
	"github.com/vmap/mapviewer/internal/influx"
	"github.com/vmap/mapviewer/internal/logging"
	"github.com/vmap/mapviewer/internal/render"
	"github.com/vmap/mapviewer/internal/session"
	"github.com/vmap/mapviewer/internal/transport/websocket"
	"github.com/vmap/mapviewer/pkg/core"
)

const shutdownTimeout = 10 * time.Second

var _ session.Outbound = (*websocket.Hub)(nil)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		console bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the map session and serve it over WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(configDir); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr, !console)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.address)")
	cmd.Flags().BoolVar(&console, "console", false, "Log to the console instead of the logs directory")
	return cmd
}

func serve(ctx context.Context, addrOverride string, toFile bool) error {
	sessionID := uuid.NewString()

	rl, err := setupLogging(ctx, sessionID, toFile)
	if err != nil {
		return err
	}
	logger := rl.logger
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rl.Close(closeCtx); err != nil {
			logger.Warn("Log shutdown incomplete", "error", err)
		}
	}()

	ic := config.GetInfluxConfig()
	sink := influx.NewSink(rl.zerolog.With().Str("component", "influx").Logger(), influx.Config{
		Enabled:   ic.Enabled,
		URL:       ic.URL,
		Token:     ic.Token,
		Org:       ic.Org,
		Bucket:    ic.Bucket,
		BackupDir: ic.BackupDir,
	})
	if err := sink.Connect(ctx); err != nil {
		logger.Warn("Telemetry disabled", "error", err)
	}
	defer sink.Close()

	gc := config.GetGeolocationConfig()
	provider, client, closeProvider, err := buildProvider(gc, "")
	if err != nil {
		return err
	}
	defer closeProvider()

	sc := config.GetServerConfig()
	hub, err := websocket.NewHub(rl.manager.Component("websocket"), websocket.Config{AllowedOrigins: sc.AllowedOrigins})
	if err != nil {
		return err
	}

	markerCfgs, err := config.GetMarkers()
	if err != nil {
		return err
	}
	markers := make([]core.Marker, 0, len(markerCfgs))
	for _, m := range markerCfgs {
		markers = append(markers, m.Marker())
	}

	vc := config.GetViewConfig()
	sess, err := session.New(session.Options{
		ID:             sessionID,
		View:           vc.State(),
		UserZoom:       vc.UserZoom,
		Animation:      vc.Animation,
		Markers:        markers,
		Resolver:       geolocation.NewResolver(provider, gc.Timeout),
		Client:         client,
		Renderer:       render.NewMercator(config.GetRenderConfig()),
		Out:            hub,
		Telemetry:      sink,
		Logger:         rl.manager.Component("session"),
		DispatchLogger: logging.NewDispatcherLogger(rl.zerolog),
	})
	if err != nil {
		return err
	}
	hub.SetHandler(sess)
	hub.OnConnect(sess.ClientConnected)

	mux := http.NewServeMux()
	mux.Handle(sc.Path, hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := sc.Address
	if addrOverride != "" {
		addr = addrOverride
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logCtx := logging.ContextWith(ctx, slog.String("addr", addr))

	loopDone := make(chan error, 1)
	go func() { loopDone <- sess.Run(ctx) }()
	sess.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(logCtx, "Listening", "path", sc.Path, "geolocation", gc.Provider)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.InfoContext(logCtx, "Shutting down")
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.WarnContext(logCtx, "HTTP shutdown incomplete", "error", serr)
	}
	hub.Close()
	sess.Close()
	<-loopDone

	if err != nil {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}
