// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package config loads and validates application configuration with koanf:
// struct defaults, then an optional YAML file, then METRICUS_-prefixed
// environment variables.
package config
