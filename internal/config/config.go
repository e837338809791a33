package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vmap/mapviewer/internal/geo"
	"github.com/vmap/mapviewer/internal/render"
	"github.com/vmap/mapviewer/pkg/core"
)

// FileName is the JSON config file looked up in the config directory.
const FileName = "mapviewer.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. MAPVIEWER_SERVER_ADDRESS.
const EnvPrefix = "MAPVIEWER"

// ViewConfig holds the initial view and its constraints.
type ViewConfig struct {
	Center   core.Coordinate // geographic
	Zoom     float64
	MinZoom  float64
	MaxZoom  float64
	Bounds   core.Extent // projected
	UserZoom float64
	// Animation is the duration of the recenter after geolocation.
	Animation time.Duration
}

// State returns the initial camera state described by c.
func (c ViewConfig) State() core.ViewState {
	bounds := c.Bounds
	return core.ViewState{
		Center:  geo.ToProjected(c.Center),
		Zoom:    c.Zoom,
		MinZoom: c.MinZoom,
		MaxZoom: c.MaxZoom,
		Bounds:  &bounds,
	}
}

// MarkerConfig is a marker placed at session start.
type MarkerConfig struct {
	Label string  `mapstructure:"label"`
	Lon   float64 `mapstructure:"lon"`
	Lat   float64 `mapstructure:"lat"`
	Style string  `mapstructure:"style"`
}

// Marker converts the entry to a core.Marker. Unknown styles fall back to generic.
func (m MarkerConfig) Marker() core.Marker {
	return core.Marker{Position: core.LonLat(m.Lon, m.Lat), Label: m.Label, Style: core.ParseStyle(m.Style)}
}

// GeolocationConfig selects and configures the position provider.
type GeolocationConfig struct {
	Provider string // static, geoip or client
	Timeout  time.Duration
	Static   core.Coordinate
	GeoIPDB  string
	GeoIPIP  string
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Address        string
	Path           string
	AllowedOrigins []string
}

// InfluxConfig configures interaction telemetry.
type InfluxConfig struct {
	Enabled   bool
	URL       string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// OTelConfig configures the OpenTelemetry log provider.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// GraylogConfig configures the GELF log sink.
type GraylogConfig struct {
	Enabled bool
	Address string
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("view.center.lon", 126.978)
	viper.SetDefault("view.center.lat", 37.5665)
	viper.SetDefault("view.zoom", 7)
	viper.SetDefault("view.minZoom", 7)
	viper.SetDefault("view.maxZoom", 18)
	viper.SetDefault("view.userZoom", 16)
	viper.SetDefault("view.animation", "0s")
	viper.SetDefault("view.bounds.minLon", 123)
	viper.SetDefault("view.bounds.minLat", 32)
	viper.SetDefault("view.bounds.maxLon", 132)
	viper.SetDefault("view.bounds.maxLat", 43)

	viper.SetDefault("markers", []map[string]any{
		{"label": "Null Island", "lon": 126.978, "lat": 37.5665, "style": "generic"},
	})

	viper.SetDefault("geolocation.provider", "client")
	viper.SetDefault("geolocation.timeout", "10s")
	viper.SetDefault("geolocation.static.lon", 126.978)
	viper.SetDefault("geolocation.static.lat", 37.5665)
	viper.SetDefault("geolocation.geoip.database", "GeoLite2-City.mmdb")
	viper.SetDefault("geolocation.geoip.ip", "")

	def := render.DefaultConfig()
	viper.SetDefault("render.width", def.Width)
	viper.SetDefault("render.height", def.Height)
	viper.SetDefault("render.tileSize", def.TileSize)
	viper.SetDefault("render.circleRadius", def.CircleRadius)
	viper.SetDefault("render.strokeWidth", def.StrokeWidth)
	viper.SetDefault("render.iconWidth", def.IconWidth)
	viper.SetDefault("render.iconHeight", def.IconHeight)
	viper.SetDefault("render.userIconScale", def.IconScale)

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.path", "/ws")
	viper.SetDefault("server.allowedOrigins", []string{})

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "mapviewer")
	viper.SetDefault("influx.bucket", "interactions")
	viper.SetDefault("influx.backupDir", "./telemetry")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "mapviewer")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// Load sets defaults, applies a .env file and MAPVIEWER_* environment
// overrides, then reads FileName from configDir. Neither file is required.
func Load(configDir string) error {
	setDefaults()

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading env file: %w", err)
	}
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetViewConfig() ViewConfig {
	return ViewConfig{
		Center:   core.LonLat(viper.GetFloat64("view.center.lon"), viper.GetFloat64("view.center.lat")),
		Zoom:     viper.GetFloat64("view.zoom"),
		MinZoom:  viper.GetFloat64("view.minZoom"),
		MaxZoom:  viper.GetFloat64("view.maxZoom"),
		UserZoom: viper.GetFloat64("view.userZoom"),
		Bounds: geo.ExtentFromLonLat(
			viper.GetFloat64("view.bounds.minLon"),
			viper.GetFloat64("view.bounds.minLat"),
			viper.GetFloat64("view.bounds.maxLon"),
			viper.GetFloat64("view.bounds.maxLat"),
		),
		Animation: viper.GetDuration("view.animation"),
	}
}

// GetMarkers returns the markers placed at session start.
func GetMarkers() ([]MarkerConfig, error) {
	var markers []MarkerConfig
	if err := viper.UnmarshalKey("markers", &markers); err != nil {
		return nil, fmt.Errorf("decode markers: %w", err)
	}
	return markers, nil
}

func GetGeolocationConfig() GeolocationConfig {
	return GeolocationConfig{
		Provider: strings.ToLower(viper.GetString("geolocation.provider")),
		Timeout:  viper.GetDuration("geolocation.timeout"),
		Static: core.LonLat(
			viper.GetFloat64("geolocation.static.lon"),
			viper.GetFloat64("geolocation.static.lat"),
		),
		GeoIPDB: viper.GetString("geolocation.geoip.database"),
		GeoIPIP: viper.GetString("geolocation.geoip.ip"),
	}
}

func GetRenderConfig() render.Config {
	return render.Config{
		Width:        viper.GetInt("render.width"),
		Height:       viper.GetInt("render.height"),
		TileSize:     viper.GetInt("render.tileSize"),
		CircleRadius: viper.GetFloat64("render.circleRadius"),
		StrokeWidth:  viper.GetFloat64("render.strokeWidth"),
		IconWidth:    viper.GetFloat64("render.iconWidth"),
		IconHeight:   viper.GetFloat64("render.iconHeight"),
		IconScale:    viper.GetFloat64("render.userIconScale"),
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address:        viper.GetString("server.address"),
		Path:           viper.GetString("server.path"),
		AllowedOrigins: viper.GetStringSlice("server.allowedOrigins"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		URL:       viper.GetString("influx.url"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
