package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type snapshotDoc struct {
	Numbers []string `json:"numbers"`
}

func TestFile_LoadMissingFileIsFreshInstall(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"))

	var doc snapshotDoc
	if err := f.Load(context.Background(), &doc); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(doc.Numbers) != 0 {
		t.Fatalf("expected empty doc, got %+v", doc)
	}
}

func TestFile_SaveThenLoadRoundTrip(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "numbers.json"))
	ctx := context.Background()

	in := snapshotDoc{Numbers: []string{"+12345678900", "19998887777"}}
	if err := f.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out snapshotDoc
	if err := f.Load(ctx, &out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Numbers) != 2 || out.Numbers[0] != "+12345678900" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestFile_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "numbers.json"))

	if err := f.Save(context.Background(), snapshotDoc{Numbers: []string{"12345678900"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "numbers.json" {
		t.Fatalf("expected only the snapshot file, got %v", entries)
	}
}

func TestFile_CorruptSnapshotIsPersistenceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numbers.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var doc snapshotDoc
	err := NewFile(path).Load(context.Background(), &doc)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
