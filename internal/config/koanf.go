// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/metricus/config.yaml",
	"/etc/metricus/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "METRICUS_CONFIG"

// envPrefix scopes environment variables to this application.
const envPrefix = "METRICUS_"

// sectionPrefixes maps the first environment variable segment to a koanf
// section. The remainder keeps its underscores, so
// METRICUS_STORE_MAX_MEMORY becomes store.max_memory.
var sectionPrefixes = []string{
	"SERVER", "STORE", "REFRESH", "INGEST", "REALTIME", "SNAPSHOT", "API", "LOGGING",
}

// Load builds the configuration from defaults, an optional YAML file and
// METRICUS_-prefixed environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps METRICUS_SECTION_SOME_KEY to section.some_key. Variables
// whose first segment is not a known section are ignored.
func envTransform(name string) string {
	trimmed := strings.TrimPrefix(name, envPrefix)
	for _, section := range sectionPrefixes {
		if rest, ok := strings.CutPrefix(trimmed, section+"_"); ok && rest != "" {
			return strings.ToLower(section) + "." + strings.ToLower(rest)
		}
	}
	return ""
}

// findConfigFile returns the first existing config file path, preferring the
// METRICUS_CONFIG override.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
