// Package config loads server configuration from an optional YAML file with
// environment-variable overrides under the CCDL_ prefix.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/epiforge/ccdl/internal/domain"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Schema    SchemaConfig    `koanf:"schema"`
	Translate TranslateConfig `koanf:"translate"`
	Storage   StorageConfig   `koanf:"storage"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type SchemaConfig struct {
	// Path to the engine schema.json the registry is built from. Empty
	// means the built-in descriptor table only.
	Path string `koanf:"path"`

	// Eventmap is an optional config file whose Event_Map parameters
	// rename raw signals during decoding.
	Eventmap string `koanf:"eventmap"`

	// Watch reloads the registry when the schema file changes.
	Watch bool `koanf:"watch"`
}

type TranslateConfig struct {
	// Mode is "strict" or "lenient".
	Mode string `koanf:"mode"`

	// Workers is the goroutine fan-out for decoding large campaign
	// documents. Values below 2 keep decoding sequential.
	Workers int `koanf:"workers"`
}

type StorageConfig struct {
	// Dbpath is the SQLite file for the run log. Empty keeps runs in
	// memory only.
	Dbpath string `koanf:"dbpath"`
}

// Load reads path (when non-empty) and then the CCDL_ environment, which
// wins on conflicts. CCDL_SERVER_PORT=9090 sets server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("server.port", 8080)
	k.Set("translate.mode", domain.ModeLenient.String())

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("CCDL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CCDL_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if _, err := domain.ParseMode(cfg.Translate.Mode); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Mode returns the parsed translation mode.
func (c *Config) Mode() domain.Mode {
	mode, _ := domain.ParseMode(c.Translate.Mode)
	return mode
}
