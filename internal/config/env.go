package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. Only variables that are
// set replace file values.
func applyEnv(cfg *Config) error {
	return env.Parse(cfg)
}

// applyEnvFrom is applyEnv over an explicit variable set.
func applyEnvFrom(cfg *Config, vars map[string]string) error {
	return env.ParseWithOptions(cfg, env.Options{Environment: vars})
}
