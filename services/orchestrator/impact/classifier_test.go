// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package impact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
)

func TestClassify_Builtin(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		want datatypes.ImpactLevel
	}{
		{"reassign manager is high", "reassign_manager", datatypes.ImpactHigh},
		{"transfer team is high", "transfer_team", datatypes.ImpactHigh},
		{"reduce meetings is medium", "reduce_meetings", datatypes.ImpactMedium},
		{"focus time is low", "schedule_focus_time", datatypes.ImpactLow},
		{"unknown type defaults low", "install_ping_pong_table", datatypes.ImpactLow},
		{"empty type defaults low", "", datatypes.ImpactLow},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.typ); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.typ, got, tt.want)
			}
		})
	}
}

func TestClassify_Overrides(t *testing.T) {
	c, err := NewClassifierWithOverrides(map[string]datatypes.ImpactLevel{
		"reduce_meetings": datatypes.ImpactHigh,
		"pilot_survey":    datatypes.ImpactMedium,
	})
	if err != nil {
		t.Fatalf("NewClassifierWithOverrides: %v", err)
	}

	if got := c.Classify("reduce_meetings"); got != datatypes.ImpactHigh {
		t.Errorf("override not applied: got %s", got)
	}
	if got := c.Classify("pilot_survey"); got != datatypes.ImpactMedium {
		t.Errorf("new type not applied: got %s", got)
	}
	// Untouched builtin entries survive.
	if got := c.Classify("reassign_manager"); got != datatypes.ImpactHigh {
		t.Errorf("builtin entry lost: got %s", got)
	}
}

func TestClassify_InvalidOverrideRejected(t *testing.T) {
	_, err := NewClassifierWithOverrides(map[string]datatypes.ImpactLevel{
		"reduce_meetings": "EXTREME",
	})
	if err == nil {
		t.Fatal("expected error for invalid impact level")
	}
}

func TestLoadOverrides_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "impact.yaml")
	content := "pilot_survey: LOW\nreduce_meetings: HIGH\n"
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	c, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if got := c.Classify("reduce_meetings"); got != datatypes.ImpactHigh {
		t.Errorf("yaml override not applied: got %s", got)
	}
	if !c.Known("pilot_survey") {
		t.Error("pilot_survey should be a known type after loading")
	}
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	if _, err := LoadOverrides("/nonexistent/impact.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
