package session

import (
	"github.com/grocerly/storefront/core/tag"
)

// Config for the session store.
type Config struct {
	// BaseURL of the backend, e.g. "https://shop.example.com".
	BaseURL string `validate:"required,url"`

	// StorageKey the serialized session is persisted under.
	StorageKey string `default:"storefront.session"`

	// HTTPTimeout for login/register/refresh calls, in milliseconds.
	HTTPTimeout int64 `default:"10000"`

	// RefreshLeeway in milliseconds. A token expiring within this
	// window is treated as already expired and refreshed first.
	RefreshLeeway int64 `default:"60000"`

	// RefreshInterval for the proactive Refresher, in minutes.
	RefreshInterval int `default:"55"`
}

// ApplyDefaults fills zero fields from struct tags.
func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}
