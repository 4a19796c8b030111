// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// =============================================================================
// FLAGS
// =============================================================================

var (
	auditIntervention string // Filter by intervention ID
	auditAction       string // Filter by audit action
	auditStart        string // RFC3339 lower bound
	auditEnd          string // RFC3339 upper bound
	auditLimit        int    // Max entries
	auditWide         bool   // Full JSON instead of the table
)

// =============================================================================
// COMMAND
// =============================================================================

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the intervention audit trail",
	Long: `Query the append-only audit trail.

Entries are returned in timestamp order. All filters are optional and
combine with AND semantics.`,
	Example: `  orgctl audit --intervention 3fa85f64-5717-4562-b3fc-2c963f66afa6
  orgctl audit --action rolled_back --start 2026-08-01T00:00:00Z
  orgctl audit --limit 20 --json`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditIntervention, "intervention", "", "Filter by intervention ID")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action (proposed, approved, executed, ...)")
	auditCmd.Flags().StringVar(&auditStart, "start", "", "Earliest timestamp, RFC3339")
	auditCmd.Flags().StringVar(&auditEnd, "end", "", "Latest timestamp, RFC3339")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "Maximum number of entries (0 = no cap)")
	auditCmd.Flags().BoolVar(&auditWide, "json", false, "Print full entries as JSON")
}

func runAudit(cmd *cobra.Command, args []string) error {
	query := url.Values{}
	if auditIntervention != "" {
		query.Set("intervention_id", auditIntervention)
	}
	if auditAction != "" {
		query.Set("action", auditAction)
	}
	if auditStart != "" {
		query.Set("start", auditStart)
	}
	if auditEnd != "" {
		query.Set("end", auditEnd)
	}
	if auditLimit > 0 {
		query.Set("limit", strconv.Itoa(auditLimit))
	}

	path := "/v1/audit"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp struct {
		Entries []datatypes.AuditLogEntry `json:"entries"`
		Count   int                       `json:"count"`
	}
	if err := newAPIClient().do("GET", path, nil, &resp); err != nil {
		return err
	}

	if auditWide {
		return printJSON(resp.Entries)
	}
	if resp.Count == 0 {
		fmt.Println("No audit entries matched.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tACTION\tINTERVENTION")
	for _, entry := range resp.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			entry.Timestamp.Format(time.RFC3339), entry.Action, entry.InterventionID)
	}
	return w.Flush()
}
