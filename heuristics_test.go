package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHeuristicsPopulated(t *testing.T) {
	h := defaultHeuristics()
	if len(h.TrackingPrefixes) == 0 || len(h.TrackingParams) == 0 ||
		len(h.TwoLevelTLDs) == 0 || len(h.CTAPhrases) == 0 {
		t.Fatalf("default heuristics has empty lists: %+v", h)
	}
	if !containsString(h.TwoLevelTLDs, "co.uk") {
		t.Error("co.uk missing from two-level TLD list")
	}
	if !containsString(h.CTAPhrases, "learn more") {
		t.Error("'learn more' missing from CTA phrases")
	}
}

func TestLoadHeuristicsNoFileKeepsDefaults(t *testing.T) {
	h, err := loadHeuristics("")
	if err != nil {
		t.Fatalf("loadHeuristics(\"\"): %v", err)
	}
	if len(h.CTAPhrases) != len(defaultHeuristics().CTAPhrases) {
		t.Error("empty path should return defaults unchanged")
	}
}

func TestLoadHeuristicsPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heuristics.json")
	if err := os.WriteFile(path, []byte(`{"ctaPhrases": ["buy now"]}`), 0644); err != nil {
		t.Fatal(err)
	}

	h, err := loadHeuristics(path)
	if err != nil {
		t.Fatalf("loadHeuristics: %v", err)
	}
	if len(h.CTAPhrases) != 1 || h.CTAPhrases[0] != "buy now" {
		t.Errorf("CTAPhrases = %v, want [buy now]", h.CTAPhrases)
	}
	// Lists absent from the file keep their defaults.
	if len(h.TrackingPrefixes) != len(defaultHeuristics().TrackingPrefixes) {
		t.Error("TrackingPrefixes should keep defaults")
	}
}

func TestLoadHeuristicsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadHeuristics(path); err == nil {
		t.Error("expected error for malformed JSON")
	}

	if _, err := loadHeuristics(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
