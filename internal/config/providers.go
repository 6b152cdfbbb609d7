package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderDecl declares one external search provider. Keys never live in the
// file itself; APIKeyEnv names the environment variable holding them.
type ProviderDecl struct {
	ID        string `yaml:"id"`
	Kind      string `yaml:"kind"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Enabled   *bool  `yaml:"enabled,omitempty"`
}

// APIKey resolves the provider's key from the environment.
func (p ProviderDecl) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

type providersFile struct {
	Providers []ProviderDecl `yaml:"providers"`
}

// LoadProviders reads the provider declarations, dropping entries marked
// enabled: false.
func LoadProviders(path string) ([]ProviderDecl, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", path, err)
	}

	var decls []ProviderDecl
	for i, p := range file.Providers {
		if p.ID == "" {
			return nil, fmt.Errorf("providers[%d]: id is required", i)
		}
		if p.Kind == "" {
			return nil, fmt.Errorf("provider %s: kind is required", p.ID)
		}
		if p.BaseURL == "" {
			return nil, fmt.Errorf("provider %s: base_url is required", p.ID)
		}
		if p.Enabled != nil && !*p.Enabled {
			continue
		}
		decls = append(decls, p)
	}
	return decls, nil
}
