package agenttype_test

import (
	"testing"

	"github.com/kestrel-run/orchestra/internal/domain/agenttype"
)

func TestHasCapability(t *testing.T) {
	ty := agenttype.Type{Capabilities: []agenttype.Capability{{ID: "code_writing"}}}
	if !ty.HasCapability("code_writing") {
		t.Fatal("expected HasCapability to find a registered capability")
	}
	if ty.HasCapability("missing") {
		t.Fatal("expected HasCapability to return false for an unregistered capability")
	}
}

func TestMatchesTags(t *testing.T) {
	ty := agenttype.Type{Tags: []string{"code", "programming"}}

	if !ty.MatchesTags(nil) {
		t.Fatal("an empty filter should match every type")
	}
	if !ty.MatchesTags([]string{"programming"}) {
		t.Fatal("expected a match on a shared tag")
	}
	if ty.MatchesTags([]string{"unrelated"}) {
		t.Fatal("expected no match when no tag overlaps")
	}
}

func TestPresetsAreWellFormed(t *testing.T) {
	presets := agenttype.Presets()
	if len(presets) != 8 {
		t.Fatalf("expected 8 built-in presets, got %d", len(presets))
	}

	seen := make(map[string]bool, len(presets))
	for _, p := range presets {
		if p.ID == "" {
			t.Fatal("preset has an empty ID")
		}
		if seen[p.ID] {
			t.Fatalf("duplicate preset ID %q", p.ID)
		}
		seen[p.ID] = true
		if len(p.Capabilities) == 0 {
			t.Fatalf("preset %q declares no capabilities", p.ID)
		}
	}
}
