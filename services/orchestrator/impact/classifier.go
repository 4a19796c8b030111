// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package impact maps intervention types to risk tiers.
//
// # Description
//
// The classifier is a pure lookup over a data table: no side effects,
// no failure mode. Unknown intervention types classify as LOW so that
// new, experimental intervention types never accidentally bypass the
// orchestrator (LOW still executes, but every execution is audited and
// monitored). Raising the tier of a type is a data change, not a code
// change: ship a YAML override or extend the built-in table.
//
// # Thread Safety
//
// A Classifier is immutable after construction and safe for concurrent
// use.
package impact

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

// builtinTable is the default classification shipped with the service.
// Keep entries sorted by tier, then name.
var builtinTable = map[string]datatypes.ImpactLevel{
	// HIGH: visible org-structure changes requiring human sign-off.
	"reassign_manager": datatypes.ImpactHigh,
	"transfer_team":    datatypes.ImpactHigh,
	"change_role":      datatypes.ImpactHigh,

	// MEDIUM: noticeable but reversible workload changes.
	"reduce_meetings":     datatypes.ImpactMedium,
	"redistribute_work":   datatypes.ImpactMedium,
	"pause_notifications": datatypes.ImpactMedium,

	// LOW: advisory or self-contained adjustments.
	"schedule_focus_time": datatypes.ImpactLow,
	"suggest_break":       datatypes.ImpactLow,
	"send_nudge":          datatypes.ImpactLow,
}

// Classifier resolves an intervention type to its impact level.
type Classifier struct {
	table map[string]datatypes.ImpactLevel
}

// NewClassifier returns a classifier backed by the built-in table.
func NewClassifier() *Classifier {
	return &Classifier{table: builtinTable}
}

// NewClassifierWithOverrides returns a classifier whose table is the
// built-in table with the given entries layered on top. Overrides with
// an invalid level are rejected.
func NewClassifierWithOverrides(overrides map[string]datatypes.ImpactLevel) (*Classifier, error) {
	table := make(map[string]datatypes.ImpactLevel, len(builtinTable)+len(overrides))
	for k, v := range builtinTable {
		table[k] = v
	}
	for k, v := range overrides {
		if !v.Valid() {
			return nil, fmt.Errorf("impact override for %q: invalid level %q", k, v)
		}
		table[k] = v
	}
	return &Classifier{table: table}, nil
}

// LoadOverrides reads a YAML file mapping intervention type to impact
// level and returns a classifier layering it over the built-in table.
//
// File format:
//
//	reassign_manager: HIGH
//	reduce_meetings: MEDIUM
//	pilot_survey: LOW
func LoadOverrides(path string) (*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read impact table %s: %w", path, err)
	}
	var overrides map[string]datatypes.ImpactLevel
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse impact table %s: %w", path, err)
	}
	return NewClassifierWithOverrides(overrides)
}

// Classify returns the impact level for the given intervention type.
// Unknown types are LOW; Classify never fails.
func (c *Classifier) Classify(interventionType string) datatypes.ImpactLevel {
	if level, ok := c.table[interventionType]; ok {
		return level
	}
	return datatypes.ImpactLow
}

// Known reports whether the type has an explicit table entry.
func (c *Classifier) Known(interventionType string) bool {
	_, ok := c.table[interventionType]
	return ok
}
