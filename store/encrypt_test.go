// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"

	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/object"
)

func newTestAdapter(t *testing.T, remote, node string) *EncryptionAdapter {
	t.Helper()
	raw, err := NewFilesystemBackend(t.TempDir(), node)
	if err != nil {
		t.Fatalf("NewFilesystemBackend: %v", err)
	}
	if err := raw.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}

	var dataKey, metaKey [32]byte
	copy(dataKey[:], []byte("0123456789abcdef0123456789abcdef"))
	copy(metaKey[:], []byte("fedcba9876543210fedcba9876543210"))

	adapter, err := NewEncryptionAdapter(raw, remote, node, dataKey, metaKey)
	if err != nil {
		t.Fatalf("NewEncryptionAdapter: %v", err)
	}
	return adapter
}

func TestEncryptionAdapterBlockRoundTrip(t *testing.T) {
	a := newTestAdapter(t, "remote-1", "node-1")

	plaintext := []byte("hello, plaintext block")
	tag, err := a.WriteBlock(plaintext)
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if tag != object.Hash(plaintext) {
		t.Fatal("block tag must equal SHA-256 of the plaintext, not the ciphertext")
	}

	got, err := a.ReadBlock(tag)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestEncryptionAdapterMetaRoundTrip(t *testing.T) {
	a := newTestAdapter(t, "remote-1", "node-1")

	obj := object.Tree{Name: []byte("etc"), Meta: object.DefaultFSMetadata(100)}
	tag, err := a.WriteMeta(obj)
	if err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	if tag != object.IdentityOf(obj) {
		t.Fatal("metadata tag must equal the canonical identity of the plaintext object")
	}

	got, err := a.ReadMeta(tag)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	tree, ok := got.(object.Tree)
	if !ok || string(tree.Name) != "etc" {
		t.Fatalf("unexpected decoded object: %#v", got)
	}
}

func TestEncryptionAdapterWrongKeyFailsDecrypt(t *testing.T) {
	raw, err := NewFilesystemBackend(t.TempDir(), "node-1")
	if err != nil {
		t.Fatalf("NewFilesystemBackend: %v", err)
	}
	if err := raw.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}

	var key1, key2, metaKey [32]byte
	copy(key1[:], []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	copy(key2[:], []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	copy(metaKey[:], []byte("cccccccccccccccccccccccccccccccc"))

	writer, err := NewEncryptionAdapter(raw, "remote-1", "node-1", key1, metaKey)
	if err != nil {
		t.Fatalf("NewEncryptionAdapter: %v", err)
	}
	reader, err := NewEncryptionAdapter(raw, "remote-1", "node-1", key2, metaKey)
	if err != nil {
		t.Fatalf("NewEncryptionAdapter: %v", err)
	}

	tag, err := writer.WriteBlock([]byte("secret"))
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	_, err = reader.ReadBlock(tag)
	if !errs.Is(err, errs.CryptoError) {
		t.Fatalf("expected CryptoError when decrypting with the wrong key, got %v", err)
	}
}

func TestEncryptionAdapterHeadMustBeSnapshot(t *testing.T) {
	a := newTestAdapter(t, "remote-1", "node-1")

	tag, err := a.WriteMeta(object.Tree{Name: []byte("not-a-snapshot")})
	if err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}

	err = a.SetHead(tag)
	if !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument setting head to a non-Snapshot, got %v", err)
	}
}

func TestEncryptionAdapterHeadRoundTrip(t *testing.T) {
	a := newTestAdapter(t, "remote-1", "node-1")

	head, err := a.GetHead()
	if err != nil {
		t.Fatalf("GetHead: %v", err)
	}
	if head != nil {
		t.Fatal("expected no head on a fresh destination")
	}

	root, err := a.WriteMeta(object.Tree{Name: []byte("root")})
	if err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	snap := object.Snapshot{CreateTime: 42, Root: root}
	snapTag, err := a.WriteMeta(snap)
	if err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}

	if err := a.SetHead(snapTag); err != nil {
		t.Fatalf("SetHead: %v", err)
	}

	head, err = a.GetHead()
	if err != nil {
		t.Fatalf("GetHead: %v", err)
	}
	if head == nil || head.CreateTime != 42 {
		t.Fatalf("unexpected head: %#v", head)
	}
}
