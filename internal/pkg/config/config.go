package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Views     ViewsConfig     `mapstructure:"views"`
	Warmer    WarmerConfig    `mapstructure:"warmer"`
	Map       MapConfig       `mapstructure:"map"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
	RateLimit    int    `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OverpassConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Amenity       string        `mapstructure:"amenity"`
	LabelPrefix   string        `mapstructure:"label_prefix"`
	RadiusMeters  int           `mapstructure:"radius_meters"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	// CacheTTL applies to the stateless REST/GraphQL lookups only.
	CacheTTL int `mapstructure:"cache_ttl"`
}

type ViewsConfig struct {
	// Refetch is "always" or "cache".
	Refetch      string        `mapstructure:"refetch"`
	Prefetch     bool          `mapstructure:"prefetch"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// WarmerConfig drives cmd/warmer, which keeps the shared point cache hot.
type WarmerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// MapConfig holds the marker icons sent to map clients. Icon is the
// fallback for every marker; PointIcon is used for points of interest.
type MapConfig struct {
	Icon      IconConfig `mapstructure:"icon"`
	PointIcon IconConfig `mapstructure:"poi_icon"`
}

// IconConfig sizes are [x, y] pixel pairs; empty means the renderer default.
type IconConfig struct {
	RetinaURL   string `mapstructure:"retina_url"`
	URL         string `mapstructure:"url"`
	ShadowURL   string `mapstructure:"shadow_url"`
	Size        []int  `mapstructure:"size"`
	Anchor      []int  `mapstructure:"anchor"`
	PopupAnchor []int  `mapstructure:"popup_anchor"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.amenity", "restaurant")
	v.SetDefault("overpass.label_prefix", "Restaurant")
	v.SetDefault("overpass.radius_meters", 50000)
	v.SetDefault("overpass.timeout", 35*time.Second)
	v.SetDefault("overpass.user_agent", service)
	v.SetDefault("overpass.rate_per_second", 1.0)
	v.SetDefault("overpass.burst", 2)
	v.SetDefault("overpass.cache_ttl", 300)
	v.SetDefault("views.refetch", "always")
	v.SetDefault("views.prefetch", true)
	v.SetDefault("views.fetch_timeout", 40*time.Second)
	v.SetDefault("warmer.interval", 4*time.Minute)
	v.SetDefault("warmer.concurrency", 2)
	v.SetDefault("map.icon.retina_url", "https://unpkg.com/leaflet@1.7.1/dist/images/marker-icon-2x.png")
	v.SetDefault("map.icon.url", "https://unpkg.com/leaflet@1.7.1/dist/images/marker-icon.png")
	v.SetDefault("map.icon.shadow_url", "https://unpkg.com/leaflet@1.7.1/dist/images/marker-shadow.png")
	v.SetDefault("map.poi_icon.url", "/restaurant.svg")
	v.SetDefault("map.poi_icon.size", []int{30, 30})
	v.SetDefault("map.poi_icon.anchor", []int{15, 30})
	v.SetDefault("map.poi_icon.popup_anchor", []int{0, -30})
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CITYVIEW_OVERPASS_ENDPOINT → overpass.endpoint
	v.SetEnvPrefix("CITYVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, "server.rate_limit must be positive")
	}
	if c.Overpass.Endpoint == "" {
		errs = append(errs, "overpass.endpoint is required")
	}
	if c.Overpass.Amenity == "" {
		errs = append(errs, "overpass.amenity is required")
	}
	if c.Overpass.RadiusMeters <= 0 {
		errs = append(errs, fmt.Sprintf("overpass.radius_meters must be positive, got %d", c.Overpass.RadiusMeters))
	}
	if c.Overpass.Timeout <= 0 {
		errs = append(errs, "overpass.timeout must be positive")
	}
	if c.Overpass.RatePerSecond < 0 {
		errs = append(errs, "overpass.rate_per_second must not be negative")
	}
	switch c.Views.Refetch {
	case "always", "cache":
	default:
		errs = append(errs, fmt.Sprintf("views.refetch must be \"always\" or \"cache\", got %q", c.Views.Refetch))
	}
	if c.Views.FetchTimeout < 0 {
		errs = append(errs, "views.fetch_timeout must not be negative")
	}
	if c.Warmer.Interval <= 0 {
		errs = append(errs, "warmer.interval must be positive")
	}
	if c.Warmer.Concurrency <= 0 {
		errs = append(errs, "warmer.concurrency must be positive")
	}
	for name, icon := range map[string]IconConfig{"map.icon": c.Map.Icon, "map.poi_icon": c.Map.PointIcon} {
		for field, pair := range map[string][]int{"size": icon.Size, "anchor": icon.Anchor, "popup_anchor": icon.PopupAnchor} {
			if len(pair) != 0 && len(pair) != 2 {
				errs = append(errs, fmt.Sprintf("%s.%s must be an [x, y] pair", name, field))
			}
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.TempoAddr == "" {
		errs = append(errs, "telemetry.tempo_addr is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
