package app

import (
	"github.com/spf13/viper"

	"github.com/grocerly/storefront/config"
	"github.com/grocerly/storefront/core/validator"
	redisstore "github.com/grocerly/storefront/storage/redis"
)

// Config is the full application schema, loaded from storefront.yaml
// by the config package.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
}

// APIConfig points at the backend.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// Timeout per request, in milliseconds.
	Timeout int64 `mapstructure:"timeout" default:"15000"`
}

// SessionConfig tunes token handling.
type SessionConfig struct {
	StorageKey string `mapstructure:"storage_key" default:"storefront.session"`

	// RefreshLeeway in milliseconds.
	RefreshLeeway int64 `mapstructure:"refresh_leeway" default:"60000"`

	// RefreshInterval for the proactive refresher, in minutes.
	RefreshInterval int `mapstructure:"refresh_interval" default:"55"`
}

// CacheConfig sets the collection freshness windows, in milliseconds.
type CacheConfig struct {
	ProductsTTL int64 `mapstructure:"products_ttl" default:"300000"`
	OrdersTTL   int64 `mapstructure:"orders_ttl" default:"120000"`
	UsersTTL    int64 `mapstructure:"users_ttl" default:"300000"`
}

// LogConfig controls output.
type LogConfig struct {
	Level string `mapstructure:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`

	// File enables rotating file output alongside the console.
	File     bool   `mapstructure:"file"`
	Filepath string `mapstructure:"filepath" default:"log"`
}

// StorageConfig selects the durable store backing sessions and flags.
type StorageConfig struct {
	Backend string `mapstructure:"backend" default:"memory" validate:"oneof=memory file redis"`

	// Dir for the file backend.
	Dir string `mapstructure:"dir" default:".storefront"`

	Redis redisstore.Config `mapstructure:"redis"`
}

// LoadConfig reads storefront.yaml from the given directories,
// falling back to the working directory.
func LoadConfig(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var cfg Config
	v := viper.New()
	c := config.New(&cfg,
		config.WithViper(v),
		config.WithLoader(config.NewFileLoader("storefront.yaml", paths, v, validator.Validate)))
	if err := c.Load(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
