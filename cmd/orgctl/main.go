// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orgctl is the operator CLI for the Orgflow orchestrator.
//
// It talks to a running orchestrator over its HTTP API: proposing
// interventions, reviewing and deciding pending approvals, triggering
// rollbacks, and inspecting the audit trail.
//
// # Examples
//
//	orgctl propose --type reduce_meetings --target emp_42 --reason "reduce load"
//	orgctl pending
//	orgctl approve 3fa85f64-5717-4562-b3fc-2c963f66afa6
//	orgctl audit --intervention 3fa85f64-5717-4562-b3fc-2c963f66afa6
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/orgflow-ai/orgflow/pkg/logging"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	serverURL string // Orchestrator base URL
	apiKey    string // Bearer token for /v1
	logLevel  string // CLI log level
)

// rootCmd is the orgctl entry command.
var rootCmd = &cobra.Command{
	Use:   "orgctl",
	Short: "Operator CLI for the Orgflow safe action orchestrator",
	Long: `orgctl manages organizational interventions through the orchestrator API.

Interventions flow through a safety state machine: proposals are
classified by impact, HIGH-impact changes wait for human approval,
executions capture rollback snapshots, and every decision lands in an
immutable audit trail.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New(logging.Config{Level: logLevel, Format: "text"}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		envOr("ORGCTL_SERVER", "http://localhost:12210"),
		"Orchestrator base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key",
		os.Getenv("ORGCTL_API_KEY"),
		"Bearer token for the orchestrator API")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")

	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(auditCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
