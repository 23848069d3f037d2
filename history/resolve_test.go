// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetPathNoSnapshotYet(t *testing.T) {
	e := newTestEngine(t)
	_, found, err := e.GetPath("/anything")
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if found {
		t.Fatal("expected found=false with no snapshot yet")
	}
}

func TestGetPathMissingComponentIsNotAnError(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	root, err := e.UpdatePaths([]string{dir})
	if err != nil {
		t.Fatalf("UpdatePaths: %v", err)
	}
	if _, err := e.NewSnapshot(root, 1); err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	_, found, err := e.GetPath(filepath.Join(dir, "does-not-exist.txt"))
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if found {
		t.Fatal("expected found=false for a missing path component")
	}
}

func TestGetPathRejectsNonCanonicalInput(t *testing.T) {
	e := newTestEngine(t)
	_, _, err := e.GetPath("relative/path")
	if err == nil {
		t.Fatal("expected an error for a non-absolute path")
	}
}
