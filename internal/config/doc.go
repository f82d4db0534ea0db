// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides operator configuration for tourcast.
//
// Precedence is ENV (TOURCAST_*) > YAML file (strict) > defaults. The loaded
// AppConfig is validated once; CLI flags may override individual fields after
// loading. Recording specs themselves are not configuration, see package tour.
package config
