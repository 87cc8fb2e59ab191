package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if ERYSA_CONFIG is set
//  3. env (prefix ERYSA_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("ERYSA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: ERYSA_ADDR, ERYSA_QUEUE_SIZE, ...
	// Keys map to the koanf tags on the struct, underscores preserved.
	envProvider := env.Provider("ERYSA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "erysa_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return ErrEmptyAddr
	case c.SessionCapacity < 1:
		return ErrInvalidCapacity
	case c.WorkerCount < 1:
		return ErrInvalidWorkerCount
	case c.DispatchMaxAttempts < 1:
		return ErrInvalidAttempts
	case len(c.AllowedEventTypes) == 0:
		return ErrNoEventTypes
	}
	return nil
}
