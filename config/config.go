package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/royalcat/listingmap/listing"
	"github.com/spf13/viper"
)

type Config struct {
	API           APIConfig     `mapstructure:"api"`
	Markers       MarkersConfig `mapstructure:"markers"`
	Cards         CardsConfig   `mapstructure:"cards"`
	ZoomThreshold float64       `mapstructure:"zoom_threshold"`
	Cache         CacheConfig   `mapstructure:"cache"`
	Session       SessionConfig `mapstructure:"session"`
	Locate        LocateConfig  `mapstructure:"locate"`
	Server        ServerConfig  `mapstructure:"server"`
}

type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MarkersResource string        `mapstructure:"markers_resource"`
	CardsResource   string        `mapstructure:"cards_resource"`

	CommercialMarkersResource string `mapstructure:"commercial_markers_resource"`
	CommercialCardsResource   string `mapstructure:"commercial_cards_resource"`
}

// Resources returns the marker and card resource names of a listing kind.
func (c APIConfig) Resources(kind listing.Kind) (markers, cards string) {
	if kind == listing.KindCommercial {
		return c.CommercialMarkersResource, c.CommercialCardsResource
	}
	return c.MarkersResource, c.CardsResource
}

type MarkersConfig struct {
	PageSize     int           `mapstructure:"page_size"`
	MaxPages     int           `mapstructure:"max_pages"`
	Debounce     time.Duration `mapstructure:"debounce"`
	Extension    float64       `mapstructure:"extension"`
	PanThreshold float64       `mapstructure:"pan_threshold"`
	Category     string        `mapstructure:"category"`
}

type CardsConfig struct {
	PageSize     int           `mapstructure:"page_size"`
	Debounce     time.Duration `mapstructure:"debounce"`
	PanThreshold float64       `mapstructure:"pan_threshold"`
}

type CacheConfig struct {
	Size   int           `mapstructure:"size"`
	Expiry time.Duration `mapstructure:"expiry"`
}

type SessionConfig struct {
	StaleGuard bool `mapstructure:"stale_guard"`
}

type LocateConfig struct {
	GeoIPDB    string  `mapstructure:"geoip_db"`
	DefaultLat float64 `mapstructure:"default_lat"`
	DefaultLng float64 `mapstructure:"default_lng"`
	Span       float64 `mapstructure:"span"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://test-vision-api-389008.el.r.appspot.com")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.markers_resource", "residential_projects_viewport")
	v.SetDefault("api.cards_resource", "residential_projects_viewport")
	v.SetDefault("api.commercial_markers_resource", "commercial_projects_viewport")
	v.SetDefault("api.commercial_cards_resource", "commercial_projects_viewport")
	v.SetDefault("markers.page_size", 500)
	v.SetDefault("markers.max_pages", 0)
	v.SetDefault("markers.debounce", 800*time.Millisecond)
	v.SetDefault("markers.extension", 0.2)
	v.SetDefault("markers.pan_threshold", 0.05)
	v.SetDefault("markers.category", "")
	v.SetDefault("cards.page_size", 6)
	v.SetDefault("cards.debounce", 300*time.Millisecond)
	v.SetDefault("cards.pan_threshold", 0.25)
	v.SetDefault("zoom_threshold", 0.10)
	v.SetDefault("cache.size", 10)
	v.SetDefault("cache.expiry", 5*time.Minute)
	v.SetDefault("session.stale_guard", false)
	v.SetDefault("locate.geoip_db", "")
	v.SetDefault("locate.default_lat", 23.0225)
	v.SetDefault("locate.default_lng", 72.5714)
	v.SetDefault("locate.span", 0.2)
	v.SetDefault("server.listen", ":8080")
}

// Load reads configuration from defaults, an optional listingmap.yaml (or
// the file at path) and LISTINGMAP_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("listingmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// LISTINGMAP_API_BASE_URL → api.base_url
	v.SetEnvPrefix("LISTINGMAP")
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

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.base_url must be an absolute url, got %q", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, "api.timeout must be positive")
	}
	if c.API.MarkersResource == "" {
		errs = append(errs, "api.markers_resource is required")
	}
	if c.API.CardsResource == "" {
		errs = append(errs, "api.cards_resource is required")
	}
	if c.API.CommercialMarkersResource == "" {
		errs = append(errs, "api.commercial_markers_resource is required")
	}
	if c.API.CommercialCardsResource == "" {
		errs = append(errs, "api.commercial_cards_resource is required")
	}
	if c.Markers.PageSize <= 0 {
		errs = append(errs, fmt.Sprintf("markers.page_size must be positive, got %d", c.Markers.PageSize))
	}
	if c.Markers.MaxPages < 0 {
		errs = append(errs, "markers.max_pages must not be negative")
	}
	if c.Markers.Debounce < 0 {
		errs = append(errs, "markers.debounce must not be negative")
	}
	if c.Markers.Extension < 0 {
		errs = append(errs, fmt.Sprintf("markers.extension must not be negative, got %g", c.Markers.Extension))
	}
	if c.Markers.PanThreshold <= 0 {
		errs = append(errs, "markers.pan_threshold must be positive")
	}
	if c.Cards.PageSize <= 0 {
		errs = append(errs, fmt.Sprintf("cards.page_size must be positive, got %d", c.Cards.PageSize))
	}
	if c.Cards.Debounce < 0 {
		errs = append(errs, "cards.debounce must not be negative")
	}
	if c.Cards.PanThreshold <= 0 {
		errs = append(errs, "cards.pan_threshold must be positive")
	}
	if c.ZoomThreshold <= 0 {
		errs = append(errs, "zoom_threshold must be positive")
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, fmt.Sprintf("cache.size must be positive, got %d", c.Cache.Size))
	}
	if c.Cache.Expiry <= 0 {
		errs = append(errs, "cache.expiry must be positive")
	}
	if c.Locate.DefaultLat < -90 || c.Locate.DefaultLat > 90 {
		errs = append(errs, fmt.Sprintf("locate.default_lat must be within ±90, got %g", c.Locate.DefaultLat))
	}
	if c.Locate.DefaultLng < -180 || c.Locate.DefaultLng > 180 {
		errs = append(errs, fmt.Sprintf("locate.default_lng must be within ±180, got %g", c.Locate.DefaultLng))
	}
	if c.Locate.Span <= 0 {
		errs = append(errs, "locate.span must be positive")
	}
	if c.Server.Listen == "" {
		errs = append(errs, "server.listen is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
