// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures structured logging for Orgflow binaries.
//
// # Description
//
// Libraries in this repository take a *slog.Logger (or use
// slog.Default) and never configure handlers themselves; the binaries
// call New once at startup and install the result with
// slog.SetDefault. JSON output is the default for services, text for
// interactive CLI use.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Config controls handler construction.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Unknown values fall back to info.
	Level string

	// Format selects the handler: "json" or "text".
	// Unknown values fall back to json.
	Format string

	// Service, when set, is attached to every entry as the "service"
	// attribute so aggregated logs can be filtered by component.
	Service string
}

// New builds a logger writing to stderr.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger
}

// ParseLevel maps a level name to its slog level. Unknown names map
// to info so a typo in LOG_LEVEL never silences errors.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
