// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/tourcast/internal/log"
	"github.com/rs/zerolog"
)

// lookup treats an empty variable as unset.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "key") || strings.Contains(k, "secret")
}

// parseEnv reads key with parse, logging where the value came from. Invalid
// values fall back to def with a warning.
func parseEnv[T any](key string, def T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	raw, ok := lookup(key)
	if !ok {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return def
	}
	v, err := parse(raw)
	if err != nil {
		ev := logger.Warn().Str("key", key).Interface("default", def)
		if !sensitive(key) {
			ev = ev.Str("value", raw)
		}
		ev.Msg("invalid environment variable, using default")
		return def
	}
	logEnv(logger, key, raw)
	return v
}

func logEnv(logger zerolog.Logger, key, raw string) {
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if sensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", raw)
	}
	ev.Msg("using environment variable")
}

// ParseString reads a string variable. Values of keys that look like
// credentials are never logged.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseDuration reads a Go duration such as "5s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration)
}

// ParseBool accepts true/false, 1/0 and yes/no, case-insensitively.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}

func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// ParseList splits a variable on whitespace, e.g. a command line.
func ParseList(key string, defaultValue []string) []string {
	return parseEnv(key, defaultValue, func(s string) ([]string, error) {
		f := strings.Fields(s)
		if len(f) == 0 {
			return nil, strconv.ErrSyntax
		}
		return f, nil
	})
}
