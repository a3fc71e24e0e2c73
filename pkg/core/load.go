package core

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "DERIBIT"

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"credentials.client_id":     "DERIBIT_CLIENT_ID",
	"credentials.client_secret": "DERIBIT_CLIENT_SECRET",
	"testnet":                   "DERIBIT_TESTNET",
	"base_url":                  "DERIBIT_BASE_URL",
	"timeout":                   "DERIBIT_HTTP_TIMEOUT",
	"user_agent":                "DERIBIT_HTTP_USER_AGENT",
	"safety_margin":             "DERIBIT_SAFETY_MARGIN",
	"log_level":                 "DERIBIT_LOG_LEVEL",
}

// LoadConfig reads config from a YAML file layered over DefaultConfig, with
// env var overrides. An empty path reads the environment only.
// Sensitive fields are expected from env vars: DERIBIT_CLIENT_ID, DERIBIT_CLIENT_SECRET.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, NewConfigError("bind env "+env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewConfigError(fmt.Sprintf("read config %s", path), err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, NewConfigError("unmarshal config", err)
	}
	if cfg.Credentials != nil && *cfg.Credentials == (Credentials{}) {
		cfg.Credentials = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
