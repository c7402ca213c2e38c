package auth

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"willcloud/internal/config"
)

type Config struct {
	TokenSecret string        `mapstructure:"TokenSecret"`
	Issuer      string        `mapstructure:"Issuer"`
	Leeway      time.Duration `mapstructure:"Leeway"`
}

var bindings = map[string]string{
	"TokenSecret": "AUTH_TOKEN_SECRET",
	"Issuer":      "AUTH_ISSUER",
	"Leeway":      "AUTH_LEEWAY",
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("Leeway", 30*time.Second)

	config.Read(v, bindings)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("%w: auth TokenSecret", config.ErrMissing)
	}

	return &cfg, nil
}
