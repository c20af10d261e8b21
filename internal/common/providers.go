package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type ProvidersConfig struct {
	Providers []models.ProviderConfig `yaml:"providers"`
}

var knownKinds = map[string]bool{
	models.ProviderKindShippo:     true,
	models.ProviderKindEasyPost:   true,
	models.ProviderKindShipEngine: true,
}

// LoadProviderConfig reads the rate provider catalogue and resolves each
// provider's API key from the environment variable it names.
func LoadProviderConfig(providersFile string) ([]models.ProviderConfig, error) {
	var providersPath string
	if filepath.IsAbs(providersFile) {
		providersPath = providersFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		providersPath = filepath.Join(wd, providersFile)
	}

	data, err := os.ReadFile(providersPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", providersFile, err)
	}
	return ParseProviderConfig(data)
}

func ParseProviderConfig(data []byte) ([]models.ProviderConfig, error) {
	var config ProvidersConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse provider config: %w", err)
	}

	seen := make(map[string]bool)
	for i := range config.Providers {
		p := &config.Providers[i]
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if !knownKinds[p.Kind] {
			return nil, fmt.Errorf("provider at index %d has unknown kind %q", i, p.Kind)
		}
		if p.Name == "" {
			p.Name = p.Kind
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true

		if p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
	}

	return config.Providers, nil
}

// MockProviderConfig enables every provider kind in mock mode. Used when no
// catalogue file is present.
func MockProviderConfig() []models.ProviderConfig {
	zap.L().Warn("No provider catalogue found, using mock rate providers")
	return []models.ProviderConfig{
		{Name: models.ProviderKindShippo, Kind: models.ProviderKindShippo, Enabled: true, Mock: true},
		{Name: models.ProviderKindEasyPost, Kind: models.ProviderKindEasyPost, Enabled: true, Mock: true},
		{Name: models.ProviderKindShipEngine, Kind: models.ProviderKindShipEngine, Enabled: true, Mock: true},
	}
}
