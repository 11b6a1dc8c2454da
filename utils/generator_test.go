package utils

import (
	"strings"
	"testing"
)

const idCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func TestGenerateIDFormat(t *testing.T) {
	gen := NewIDGenerator()

	id, err := gen.GenerateID()
	if err != nil {
		t.Fatalf("GenerateID returned error: %v", err)
	}
	if len(id) != 8 {
		t.Errorf("expected 8 character ID, got %q (%d chars)", id, len(id))
	}
	for _, r := range id {
		if !strings.ContainsRune(idCharset, r) {
			t.Errorf("ID %q contains character %q outside charset", id, r)
		}
	}
}

func TestGenerateIDUniqueness(t *testing.T) {
	gen := NewIDGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := gen.GenerateID()
		if err != nil {
			t.Fatalf("GenerateID returned error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %q", id)
		}
		seen[id] = true
	}
}

func TestCleanupOldIDsResetsTracking(t *testing.T) {
	gen := NewIDGenerator()

	for i := 0; i < 10; i++ {
		if _, err := gen.GenerateID(); err != nil {
			t.Fatalf("GenerateID returned error: %v", err)
		}
	}

	gen.CleanupOldIDs(5)

	gen.mutex.Lock()
	size := len(gen.usedIDs)
	gen.mutex.Unlock()
	if size != 0 {
		t.Errorf("expected tracking map to be reset, got %d entries", size)
	}
}
