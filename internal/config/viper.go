package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Read binds every key to its environment variable, then reads the env file at
// the configured path. Values in the file are written under their variable
// names (DATABASE_HOST=...), so they are copied onto the structured keys.
// Precedence: process environment, then file, then defaults.
func Read(v *viper.Viper, bindings map[string]string) {
	for key, env := range bindings {
		v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
		return
	}

	for key, env := range bindings {
		if v.InConfig(env) {
			v.SetDefault(key, v.Get(env))
		}
	}
}
