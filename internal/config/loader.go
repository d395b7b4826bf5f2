package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/silicograph/bridger/pkg/errors"
)

// envPrefix is the environment variable prefix for every setting, so
// "bridging.context_depth" resolves to "BRIDGER_BRIDGING_CONTEXT_DEPTH".
const envPrefix = "BRIDGER"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads the YAML file at configPath, merges BRIDGER_* environment
// overrides, applies defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidParam, "failed to read config file").
			WithDetail("path=" + configPath)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from BRIDGER_* environment variables alone,
// the preferred strategy for containerised deployments.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal configuration")
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
