package models

import "time"

// Rate provider kinds
const (
	ProviderKindShippo     = "shippo"
	ProviderKindEasyPost   = "easypost"
	ProviderKindShipEngine = "shipengine"
)

// ProviderConfig is one entry of providers.yaml
type ProviderConfig struct {
	Name       string        `yaml:"name"`
	Kind       string        `yaml:"kind"`
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
	Mock       bool          `yaml:"mock"`
	CarrierIds []string      `yaml:"carrier_ids"`

	// APIKey is resolved from APIKeyEnv at load time.
	APIKey string `yaml:"-"`
}
