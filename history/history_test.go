// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"testing"

	"github.com/coldtrail/coldtrail/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	raw, err := store.NewFilesystemBackend(t.TempDir(), "node-1")
	if err != nil {
		t.Fatalf("NewFilesystemBackend: %v", err)
	}
	if err := raw.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}

	var dataKey, metaKey [32]byte
	copy(dataKey[:], []byte("0123456789abcdef0123456789abcdef"))
	copy(metaKey[:], []byte("fedcba9876543210fedcba9876543210"))

	backend, err := store.NewEncryptionAdapter(raw, "remote-1", "node-1", dataKey, metaKey)
	if err != nil {
		t.Fatalf("NewEncryptionAdapter: %v", err)
	}
	return New(backend)
}
