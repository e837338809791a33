// Package main is the mapviewer server: it hosts one interactive map session
// and serves it to browsers over WebSocket.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

var configDir string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mapviewer",
		Short: "Interactive map session server",
		Long: `Interactive map session server

Serves markers, a click-to-popup overlay and the device location to map
clients over WebSocket. Settings are read from mapviewer.cfg.json in the
config directory, a .env file next to it, and MAPVIEWER_* variables.

Examples:
  mapviewer serve --config ./etc
  mapviewer locate --ip 203.0.113.7
  mapviewer version`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", ".", "Directory containing mapviewer.cfg.json")

	root.AddCommand(newServeCmd())
	root.AddCommand(newLocateCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
