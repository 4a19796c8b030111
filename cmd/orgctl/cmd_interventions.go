// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// =============================================================================
// FLAGS
// =============================================================================

var (
	proposeType   string   // Intervention type
	proposeTarget string   // Target entity ID
	proposeReason string   // Human-readable justification
	proposeParams []string // key=value action parameters
	pendingWide   bool     // Full JSON instead of the table
)

// =============================================================================
// COMMANDS
// =============================================================================

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose a new intervention",
	Long: `Propose an organizational intervention.

The orchestrator classifies the impact level from the intervention type.
LOW and MEDIUM impact proposals are auto-approved and executed
immediately; HIGH impact proposals wait in PENDING_APPROVAL until an
operator approves or rejects them.`,
	Example: `  orgctl propose --type reduce_meetings --target emp_42 --reason "calendar overload" --param max_hours=10
  orgctl propose --type reassign_manager --target emp_42 --reason "team merge" --param new_manager=emp_7`,
	RunE: runPropose,
}

var getCmd = &cobra.Command{
	Use:   "get <intervention-id>",
	Short: "Show one intervention",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var iv datatypes.Intervention
		if err := newAPIClient().do("GET", "/v1/interventions/"+args[0], nil, &iv); err != nil {
			return err
		}
		return printJSON(iv)
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List interventions awaiting approval",
	RunE:  runPending,
}

var approveCmd = &cobra.Command{
	Use:   "approve <intervention-id>",
	Short: "Approve a pending intervention and execute it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(args[0], "approve")
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <intervention-id>",
	Short: "Reject a pending intervention",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(args[0], "reject")
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <intervention-id>",
	Short: "Roll back an executed intervention",
	Long: `Restore the pre-intervention snapshot for an EXECUTED intervention.

Rollback also cancels any pending automatic outcome check for the
record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(args[0], "rollback")
	},
}

func init() {
	proposeCmd.Flags().StringVar(&proposeType, "type", "", "Intervention type (required)")
	proposeCmd.Flags().StringVar(&proposeTarget, "target", "", "Target entity ID (required)")
	proposeCmd.Flags().StringVar(&proposeReason, "reason", "", "Justification for the change (required)")
	proposeCmd.Flags().StringArrayVar(&proposeParams, "param", nil, "Action parameter as key=value (repeatable)")
	proposeCmd.MarkFlagRequired("type")
	proposeCmd.MarkFlagRequired("target")
	proposeCmd.MarkFlagRequired("reason")

	pendingCmd.Flags().BoolVar(&pendingWide, "json", false, "Print full records as JSON")
}

// =============================================================================
// RUN FUNCTIONS
// =============================================================================

func runPropose(cmd *cobra.Command, args []string) error {
	params, err := parseParams(proposeParams)
	if err != nil {
		return err
	}

	body := map[string]any{
		"type":      proposeType,
		"target_id": proposeTarget,
		"reason":    proposeReason,
	}
	if len(params) > 0 {
		body["params"] = params
	}

	var iv datatypes.Intervention
	if err := newAPIClient().do("POST", "/v1/interventions", body, &iv); err != nil {
		return err
	}

	if iv.Status == datatypes.StatusPendingApproval {
		fmt.Fprintf(os.Stderr, "HIGH impact: waiting for approval. Decide with:\n  orgctl approve %s\n", iv.ID)
	}
	return printJSON(iv)
}

func runPending(cmd *cobra.Command, args []string) error {
	var resp struct {
		Interventions []datatypes.Intervention `json:"interventions"`
		Count         int                      `json:"count"`
	}
	if err := newAPIClient().do("GET", "/v1/interventions", nil, &resp); err != nil {
		return err
	}

	if pendingWide {
		return printJSON(resp.Interventions)
	}
	if resp.Count == 0 {
		fmt.Println("No interventions awaiting approval.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTARGET\tPROPOSED\tREASON")
	for _, iv := range resp.Interventions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			iv.ID, iv.Type, iv.TargetID,
			iv.ProposedAt.Format(time.RFC3339), iv.Reason)
	}
	return w.Flush()
}

// runDecision posts to one of the per-intervention action endpoints
// and prints the resulting record.
func runDecision(id, action string) error {
	var iv datatypes.Intervention
	if err := newAPIClient().do("POST", "/v1/interventions/"+id+"/"+action, nil, &iv); err != nil {
		return err
	}
	return printJSON(iv)
}

// parseParams converts repeated key=value flags into an action
// parameter map. Values stay strings; the executor owns any further
// coercion.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
