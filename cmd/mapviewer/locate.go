package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmap/mapviewer/internal/config"
	"github.com/vmap/mapviewer/internal/geo"
	"github.com/vmap/mapviewer/internal/geolocation"
)

// ErrNeedsClient is returned by locate when the configured provider needs a browser.
var ErrNeedsClient = errors.New("client geolocation needs a connected browser; use static or geoip")

func newLocateCmd() *cobra.Command {
	var (
		ip       string
		provider string
	)
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Resolve the device position once and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(configDir); err != nil {
				return err
			}
			gc := config.GetGeolocationConfig()
			if provider != "" {
				gc.Provider = provider
			}
			return locate(cmd.Context(), cmd, gc, ip)
		},
	}
	cmd.Flags().StringVar(&ip, "ip", "", "Address to resolve with the geoip provider")
	cmd.Flags().StringVar(&provider, "provider", "", "Override geolocation.provider (static, geoip)")
	return cmd
}

func locate(ctx context.Context, cmd *cobra.Command, gc config.GeolocationConfig, ip string) error {
	p, client, closeProvider, err := buildProvider(gc, ip)
	if err != nil {
		return err
	}
	defer closeProvider()
	if client != nil {
		return ErrNeedsClient
	}

	res := <-geolocation.NewResolver(p, gc.Timeout).Resolve(ctx)
	if res.Err != nil {
		return res.Err
	}
	proj := geo.ToProjected(res.Position)
	fmt.Fprintf(cmd.OutOrStdout(), "lon=%.6f lat=%.6f x=%.2f y=%.2f\n",
		res.Position.X, res.Position.Y, proj.X, proj.Y)
	return nil
}
