// Package config reads and writes the config.toml kept in a .quill/
// directory and exposes its keys to the CLI and to viper.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/quill/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha layout.
	v0 = 0

	// CurrentV is the layout this build reads and writes.
	CurrentV = v0
)

// Configer loads and saves config.toml for one resolved .quill/ directory.
// With no directory resolved it serves defaults and refuses to save.
type Configer struct {
	path string
}

func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &Configer{}, nil
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return &Configer{path: path}, nil
}

// orderedKeys follows the TOML section layout and covers every configKeys entry.
var orderedKeys = []string{
	"relay.listen",
	"relay.upstream",
	"relay.model",
	"relay.api_key",
	"relay.persona",
	"api.listen",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"client.relay_target",
	"client.api_target",
	"client.tick_ms",
	"eventstream.brokers",
	"eventstream.topic",
}

// ValidConfigKeys returns every supported key in section order.
func ValidConfigKeys() []string {
	return slices.Clone(orderedKeys)
}

func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// IsSecretKey reports whether the key holds a credential.
func IsSecretKey(key string) bool {
	return configKeys[key].secret
}

// GetTarget returns the config.toml path, or "" when no .quill/ was found.
func (c *Configer) GetTarget() string {
	return c.path
}

// LoadConfig reads config.toml and fills every unset key from
// NewDefaultConfig. A missing file yields the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.path == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewDefaultConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	for _, key := range orderedKeys {
		info := configKeys[key]
		if info.get(cfg) != "" {
			continue
		}
		if def := info.get(defaults); def != "" {
			// Defaults are produced by get, so set cannot reject them.
			_ = info.set(cfg, def)
		}
	}
}

// SaveConfig writes cfg to config.toml, readable by the owner only since it
// may carry credentials.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.path == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(c.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func lookupKey(key string) (configKeyInfo, error) {
	info, ok := configKeys[key]
	if !ok {
		return configKeyInfo{}, fmt.Errorf("unknown config key: %q", key)
	}
	return info, nil
}

// SetConfigValue updates a single key in config.toml.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, err := lookupKey(key)
	if err != nil {
		return err
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := info.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the effective value of key, defaults included.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, err := lookupKey(key)
	if err != nil {
		return "", err
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return info.get(cfg), nil
}

type preset struct {
	upstream string
	model    string
	apiKey   string
}

var presets = map[string]preset{
	"openai": {
		upstream: "https://api.openai.com/v1",
		model:    "gpt-4o-mini",
	},
	"openrouter": {
		upstream: "https://openrouter.ai/api/v1",
		model:    "openai/gpt-4o-mini",
	},
	// Ollama ignores the bearer token but the relay still requires one.
	"ollama": {
		upstream: "http://localhost:11434/v1",
		model:    "qwen2.5-coder",
		apiKey:   "ollama",
	},
}

// PresetConfig returns the default config pointed at a known gateway.
func PresetConfig(name string) (*Config, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	cfg := NewDefaultConfig()
	cfg.Relay.Upstream = p.upstream
	cfg.Relay.Model = p.model
	cfg.Relay.APIKey = p.apiKey
	return cfg, nil
}

func ValidPresetNames() []string {
	return []string{"openai", "openrouter", "ollama"}
}

// ParseConfigTOML decodes data without applying defaults. An explicit
// version other than CurrentV is rejected.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}
