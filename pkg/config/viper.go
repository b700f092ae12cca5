package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/quill/pkg/dotdir"
)

// EnvPrefix prefixes every environment override, e.g. QUILL_RELAY_API_KEY
// for relay.api_key.
const EnvPrefix = "QUILL"

// InitViper returns a viper instance resolving config keys in this order:
// bound CLI flags, QUILL_* environment variables, config.toml from the
// resolved .quill/ directory, then NewDefaultConfig.
//
// Flags join the chain when a command calls BindRegisteredFlags.
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil && !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults seeds every registered key from NewDefaultConfig through
// the same getters "quill config get" uses, so the two cannot disagree.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)
	for _, key := range orderedKeys {
		v.SetDefault(key, configKeys[key].get(d))
	}
}
