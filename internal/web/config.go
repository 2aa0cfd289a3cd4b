package web

import (
	"github.com/epl-xg-merge/internal/config"
)

// Config represents the web server configuration
type Config struct {
	Server   ServerConfig  `json:"server"`
	Auth     AuthConfig    `json:"auth"`
	Features FeatureConfig `json:"features"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
}

// FeatureConfig contains feature toggles
type FeatureConfig struct {
	SearchEnabled bool `json:"search_enabled"`
	ReviewEnabled bool `json:"review_enabled"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Features: FeatureConfig{
			SearchEnabled: true,
			ReviewEnabled: true,
		},
	}
}

// ConfigFromEnv overlays HTTP_HOST, HTTP_PORT, API_KEY, SEARCH_ENABLED and
// REVIEW_ENABLED on the defaults. Setting API_KEY turns authentication on.
func ConfigFromEnv() *Config {
	c := DefaultConfig()
	c.Server.Host = config.GetEnv("HTTP_HOST", c.Server.Host)
	c.Server.Port = config.GetEnvInt("HTTP_PORT", c.Server.Port)
	c.Auth.APIKey = config.GetEnv("API_KEY", "")
	c.Auth.Enabled = c.Auth.APIKey != ""
	c.Features.SearchEnabled = config.GetEnvBool("SEARCH_ENABLED", c.Features.SearchEnabled)
	c.Features.ReviewEnabled = config.GetEnvBool("REVIEW_ENABLED", c.Features.ReviewEnabled)
	return c
}
