package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmap/mapviewer/internal/config"
	"github.com/vmap/mapviewer/internal/geolocation"
)

// executeCommand runs a fresh root command with the given arguments and returns the output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)

	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func configDirWith(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0644))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mapviewer "+Version)
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := executeCommand(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "locate", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestLocate_Static(t *testing.T) {
	dir := configDirWith(t, `{
		"geolocation": { "provider": "static", "static": { "lon": 127.0276, "lat": 37.4979 } }
	}`)

	out, err := executeCommand(t, "locate", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "lon=127.027600 lat=37.497900")
}

func TestLocate_ProviderFlag(t *testing.T) {
	out, err := executeCommand(t, "locate", "--config", t.TempDir(), "--provider", "static")
	require.NoError(t, err)
	assert.Contains(t, out, "lon=126.978000 lat=37.566500")
}

func TestLocate_ClientNeedsBrowser(t *testing.T) {
	_, err := executeCommand(t, "locate", "--config", t.TempDir())
	assert.ErrorIs(t, err, ErrNeedsClient)
}

func TestLocate_NoneIsUnsupported(t *testing.T) {
	_, err := executeCommand(t, "locate", "--config", t.TempDir(), "--provider", "none")
	assert.ErrorIs(t, err, geolocation.ErrUnsupported)
}

func TestLocate_GeoIPMissingDatabase(t *testing.T) {
	dir := configDirWith(t, `{
		"geolocation": { "provider": "geoip", "geoip": { "database": "/nonexistent/GeoLite2-City.mmdb" } }
	}`)
	_, err := executeCommand(t, "locate", "--config", dir, "--ip", "203.0.113.7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GeoIP database")
}

func TestBuildProvider_Unknown(t *testing.T) {
	_, _, closer, err := buildProvider(config.GeolocationConfig{Provider: "carrier-pigeon"}, "")
	require.Error(t, err)
	assert.NoError(t, closer())
}

func TestBuildProvider_Client(t *testing.T) {
	p, client, _, err := buildProvider(config.GeolocationConfig{Provider: "client"}, "")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, client, p)
}
