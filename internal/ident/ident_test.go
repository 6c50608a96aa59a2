package ident

import (
	"strings"
	"testing"
)

func TestNew_PrefixAndUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := New(KindProvider)
		if !strings.HasPrefix(id, "prv_") {
			t.Fatalf("New(KindProvider) = %q, want prv_ prefix", id)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate identifier generated: %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNew_KindsDiffer(t *testing.T) {
	t.Parallel()

	kinds := []Kind{KindProvider, KindModel, KindMapping, KindUsage, KindBudget, KindAudit}
	for _, kind := range kinds {
		id := New(kind)
		if !strings.HasPrefix(id, string(kind)+"_") {
			t.Fatalf("New(%s) = %q, want %s_ prefix", kind, id, kind)
		}
		if len(id) != len(kind)+1+32 {
			t.Fatalf("New(%s) length = %d, want %d", kind, len(id), len(kind)+1+32)
		}
	}
}
