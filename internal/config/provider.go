// Package config loads the provider connection file and the layered chat
// settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// defaultTimeoutMS bounds connection setup and non-streaming requests.
const defaultTimeoutMS = 600000

// ProviderConfig defines how termchat connects to an OpenAI-compatible gateway.
type ProviderConfig struct {
	// APIBaseURL is the base URL for OpenAI-compatible chat completions.
	APIBaseURL string `json:"api_base_url"`
	// APIKey is the bearer token used for Authorization; local servers may omit it.
	APIKey string `json:"api_key"`
	// TimeoutMS configures request timeout in milliseconds.
	TimeoutMS int `json:"timeout_ms"`
	// DefaultModel is used when no CLI or settings override is provided.
	DefaultModel string `json:"default_model"`
	// SystemPrompt opens every conversation unless the CLI overrides it.
	SystemPrompt string `json:"system_prompt"`
	// ModelAliases maps friendly names to provider model ids.
	ModelAliases map[string]string `json:"model_aliases"`
}

var (
	// ErrProviderConfigMissing is returned when the config file does not exist.
	ErrProviderConfigMissing = errors.New("provider config missing")
	// ErrProviderConfigInvalid is returned when required fields are missing.
	ErrProviderConfigInvalid = errors.New("provider config invalid")
)

// ProviderConfigPath returns the default provider config path.
func ProviderConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".termchat", "config.json"), nil
}

// LoadProviderConfig reads and validates the provider config. An empty path
// uses ProviderConfigPath.
func LoadProviderConfig(path string) (*ProviderConfig, error) {
	if path == "" {
		var err error
		path, err = ProviderConfigPath()
		if err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrProviderConfigMissing
		}
		return nil, fmt.Errorf("read provider config: %w", err)
	}

	var cfg ProviderConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse provider config: %w", err)
	}

	if cfg.APIBaseURL == "" || cfg.DefaultModel == "" {
		return nil, fmt.Errorf("%w: api_base_url and default_model are required", ErrProviderConfigInvalid)
	}
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = defaultTimeoutMS
	}
	if cfg.ModelAliases == nil {
		cfg.ModelAliases = make(map[string]string)
	}
	return &cfg, nil
}

// Timeout returns the configured request timeout.
func (cfg *ProviderConfig) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMS) * time.Millisecond
}

// ResolveModel returns the model for the session: the CLI value, then the
// settings value, then the provider default, with aliases applied.
func ResolveModel(cfg *ProviderConfig, cliModel string, settingsModel string) string {
	if cliModel != "" {
		return aliasModel(cfg, cliModel)
	}
	if settingsModel != "" {
		return aliasModel(cfg, settingsModel)
	}
	if cfg == nil {
		return ""
	}
	return cfg.DefaultModel
}

// aliasModel resolves an alias to a provider model name.
func aliasModel(cfg *ProviderConfig, name string) string {
	if cfg == nil {
		return name
	}
	if aliased, ok := cfg.ModelAliases[name]; ok {
		return aliased
	}
	return name
}
