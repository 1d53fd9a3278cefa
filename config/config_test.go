package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	API struct {
		BaseURL string `mapstructure:"base_url" validate:"required,url"`
		Timeout int64  `mapstructure:"timeout" default:"10000"`
	} `mapstructure:"api"`
	Cache struct {
		ProductsTTL int64 `mapstructure:"products_ttl" default:"300000"`
		OrdersTTL   int64 `mapstructure:"orders_ttl" default:"120000"`
	} `mapstructure:"cache"`
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeConfigFile(t, "api:\n  base_url: http://localhost:8000\n")

	var target testConfig
	c := New(&target, WithLoader(NewFileLoader("storefront.yaml", []string{dir}, viper.New(), nil)))

	require.NoError(t, c.Load())

	assert.Equal(t, "http://localhost:8000", target.API.BaseURL)
	assert.Equal(t, int64(10000), target.API.Timeout)
	assert.Equal(t, int64(300000), target.Cache.ProductsTTL)
	assert.Equal(t, int64(120000), target.Cache.OrdersTTL)
}

func TestLoadFileValuesWin(t *testing.T) {
	dir := writeConfigFile(t, "api:\n  base_url: http://localhost:8000\n  timeout: 2500\ncache:\n  orders_ttl: 60000\n")

	var target testConfig
	c := New(&target, WithLoader(NewFileLoader("storefront.yaml", []string{dir}, viper.New(), nil)))

	require.NoError(t, c.Load())

	assert.Equal(t, int64(2500), target.API.Timeout)
	assert.Equal(t, int64(60000), target.Cache.OrdersTTL)
	assert.Equal(t, int64(300000), target.Cache.ProductsTTL)
}

func TestLoadValidation(t *testing.T) {
	dir := writeConfigFile(t, "api:\n  base_url: not-a-url\n")

	var target testConfig
	c := New(&target)
	c.loader = NewFileLoader("storefront.yaml", []string{dir}, c.viper, c.validate)

	err := c.Load()
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	var target testConfig
	c := New(&target)
	c.loader = NewFileLoader("storefront.yaml", []string{t.TempDir()}, c.viper, nil)

	assert.Error(t, c.Load())
}
