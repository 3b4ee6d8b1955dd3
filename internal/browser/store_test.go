package browser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	blob := []byte(`{"saved_at":"2026-01-01T00:00:00Z","cookies":[]}`)
	if err := store.Save("alice", blob); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	if !store.Exists("alice") {
		t.Error("Expected saved session to exist")
	}

	loaded, err := store.Load("alice")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if string(loaded) != string(blob) {
		t.Errorf("Loaded blob differs: %s", loaded)
	}
}

func TestSessionStoreMissingIsFreshStart(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	// A missing session must not be an error, only a nil blob.
	blob, err := store.Load("nobody")
	if err != nil {
		t.Fatalf("Expected missing session to load as nil, got error: %v", err)
	}
	if blob != nil {
		t.Errorf("Expected nil blob, got %q", blob)
	}

	if store.Exists("nobody") {
		t.Error("Expected missing session to not exist")
	}
}

func TestSessionStoreList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	for _, name := range []string{"alice", "bob"} {
		if err := store.Save(name, []byte("{}")); err != nil {
			t.Fatalf("Failed to save %s: %v", name, err)
		}
	}
	// Unrelated files are not sessions.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("Expected 2 sessions, got %v", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Errorf("Expected alice and bob, got %v", names)
	}
}
