// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the Orgflow safe action orchestration
// server.
//
// It reads configuration from environment variables and runs until
// SIGINT or SIGTERM.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12210)
//   - ORCHESTRATOR_API_KEY: bearer token for /v1 (empty disables auth)
//   - ORCHESTRATOR_DATA_DIR: BadgerDB directory (empty: in-memory)
//   - ACTION_SERVICE_URL: downstream action service (empty: local mode)
//   - GRAPH_SERVICE_URL: snapshot capture/restore service (empty: local mode)
//   - INFLUX_URL, INFLUX_TOKEN, INFLUX_ORG, INFLUX_BUCKET: health metrics source
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (empty disables tracing)
//   - IMPACT_TABLE_PATH: YAML overrides for the impact classification table
//   - APPROVAL_TIMEOUT_HOURS: approval window for HIGH impact (default: 24)
//   - OUTCOME_CHECK_DELAY_HOURS: outcome monitor delay (default: 168)
//
// # Usage
//
//	go build -o orchestrator ./cmd/orchestrator
//	./orchestrator
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/orgflow-ai/orgflow/pkg/logging"
	"github.com/orgflow-ai/orgflow/services/orchestrator"
)

func main() {
	logger := logging.New(logging.Config{
		Level:  getEnvString("LOG_LEVEL", "info"),
		Format: getEnvString("LOG_FORMAT", "json"),
	})
	slog.SetDefault(logger)

	cfg := orchestrator.Config{
		Port:              getEnvInt("ORCHESTRATOR_PORT", 12210),
		APIKey:            os.Getenv("ORCHESTRATOR_API_KEY"),
		DataDir:           os.Getenv("ORCHESTRATOR_DATA_DIR"),
		ActionServiceURL:  os.Getenv("ACTION_SERVICE_URL"),
		GraphServiceURL:   os.Getenv("GRAPH_SERVICE_URL"),
		InfluxURL:         os.Getenv("INFLUX_URL"),
		InfluxToken:       os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:         os.Getenv("INFLUX_ORG"),
		InfluxBucket:      getEnvString("INFLUX_BUCKET", "org_health"),
		OTelEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ImpactTablePath:   os.Getenv("IMPACT_TABLE_PATH"),
		ApprovalTimeout:   time.Duration(getEnvInt("APPROVAL_TIMEOUT_HOURS", 24)) * time.Hour,
		OutcomeCheckDelay: time.Duration(getEnvInt("OUTCOME_CHECK_DELAY_HOURS", 168)) * time.Hour,
	}

	slog.Info("starting orchestrator",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"action_service", cfg.ActionServiceURL,
		"graph_service", cfg.GraphServiceURL,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
