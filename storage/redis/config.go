package redis

import (
	"github.com/grocerly/storefront/core/tag"
)

// Config covers single, cluster and sentinel deployments. The mode is
// inferred from Addrs and MasterName.
type Config struct {
	// Addrs holds the server addresses.
	// Single: ["localhost:6379"], cluster: one entry per node,
	// sentinel: the sentinel addresses.
	Addrs []string

	// MasterName selects sentinel mode when set.
	MasterName string

	Username string
	Password string

	// DB is ignored in cluster mode.
	DB int

	// KeyPrefix is prepended to every key.
	KeyPrefix string `default:"storefront:"`

	// DialTimeout in milliseconds.
	DialTimeout int64 `default:"5000"`

	// ReadTimeout in milliseconds.
	ReadTimeout int64 `default:"3000"`

	// WriteTimeout in milliseconds.
	WriteTimeout int64 `default:"3000"`

	// PoolSize of 0 falls back to the driver default.
	PoolSize int

	MinIdleConns int
}

// ApplyDefaults fills zero fields from struct tags.
func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

// Single builds a single-node config.
func Single(addr string) *Config {
	return &Config{Addrs: []string{addr}}
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return ErrEmptyAddrs
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// IsSentinel reports whether the config selects sentinel mode.
func (c *Config) IsSentinel() bool {
	return c.MasterName != ""
}

// IsCluster reports whether the config selects cluster mode.
func (c *Config) IsCluster() bool {
	return len(c.Addrs) > 1 && c.MasterName == ""
}
