// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"path/filepath"
	"testing"

	"github.com/coldtrail/coldtrail/errs"
)

// fixedPrompter hands out a canned password every time; tests never touch a
// real terminal.
type fixedPrompter struct {
	password string
	calls    int
}

func (p *fixedPrompter) PromptPassword(message string) (string, error) {
	p.calls++
	return p.password, nil
}

func TestCreateOpenRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ks")
	prompter := &fixedPrompter{password: "correct horse battery staple"}

	ks, err := Create(dir, prompter)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if prompter.calls != 2 {
		t.Fatalf("expected password to be prompted twice (new + confirm), got %d", prompter.calls)
	}

	key, err := ks.NewDataKey("backblaze")
	if err != nil {
		t.Fatalf("NewDataKey: %v", err)
	}

	reopened, err := Open(dir, &fixedPrompter{password: "correct horse battery staple"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := reopened.ReadDataKey("backblaze")
	if err != nil {
		t.Fatalf("ReadDataKey: %v", err)
	}
	if got.Data != key.Data {
		t.Fatal("round-tripped data key does not match original")
	}
}

func TestCreateRejectsMismatchedPasswords(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ks")
	prompter := &twoPasswordPrompter{first: "abc", second: "xyz"}

	_, err := Create(dir, prompter)
	if !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

type twoPasswordPrompter struct {
	first, second string
	calls         int
}

func (p *twoPasswordPrompter) PromptPassword(message string) (string, error) {
	p.calls++
	if p.calls == 1 {
		return p.first, nil
	}
	return p.second, nil
}

func TestOpenWrongPassword(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ks")
	if _, err := Create(dir, &fixedPrompter{password: "right"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ks, err := Open(dir, &fixedPrompter{password: "wrong"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := ks.NewDataKey("x"); !errs.Is(err, errs.CryptoError) {
		t.Fatalf("expected CryptoError for wrong password, got %v", err)
	}
}

func TestOpenMissingKeystore(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"), &fixedPrompter{})
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestReadMissingKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ks")
	ks, err := Create(dir, &fixedPrompter{password: "p"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = ks.ReadMetaKey("nosuchnode")
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestExportImportKeyRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ks")
	ks, err := Create(dir, &fixedPrompter{password: "p"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	key, err := ks.NewMetaKey("node-a")
	if err != nil {
		t.Fatalf("NewMetaKey: %v", err)
	}

	envelope, err := ks.ExportKey(key)
	if err != nil {
		t.Fatalf("ExportKey: %v", err)
	}

	imported, err := ks.ImportKey(envelope)
	if err != nil {
		t.Fatalf("ImportKey: %v", err)
	}
	if imported.Name != key.Name || imported.Data != key.Data {
		t.Fatal("imported key does not match exported key")
	}
}

func TestImportKeyRejectsTamperedEnvelope(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ks")
	ks, err := Create(dir, &fixedPrompter{password: "p"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	key, err := ks.NewDataKey("r1")
	if err != nil {
		t.Fatalf("NewDataKey: %v", err)
	}
	envelope, err := ks.ExportKey(key)
	if err != nil {
		t.Fatalf("ExportKey: %v", err)
	}
	envelope[len(envelope)-1] ^= 0xff

	_, err = ks.ImportKey(envelope)
	if !errs.Is(err, errs.CryptoError) {
		t.Fatalf("expected CryptoError for tampered envelope, got %v", err)
	}
}

func TestNewNonceFieldsDiffer(t *testing.T) {
	a, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	b, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	if a == b {
		t.Fatal("expected two nonces to differ in their random invocation field")
	}
	if a[:6] != b[:6] {
		t.Fatal("expected the machine field to be stable across calls within a process")
	}
}

func TestJoinRederivesSameMaster(t *testing.T) {
	dirA := filepath.Join(t.TempDir(), "ks-a")
	ksA, err := Create(dirA, &fixedPrompter{password: "shared"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	key, err := ksA.NewDataKey("remote")
	if err != nil {
		t.Fatalf("NewDataKey: %v", err)
	}
	envelope, err := ksA.ExportKey(key)
	if err != nil {
		t.Fatalf("ExportKey: %v", err)
	}

	salt, hash, err := ksA.Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	dirB := filepath.Join(t.TempDir(), "ks-b")
	ksB, err := Join(dirB, salt, hash, &fixedPrompter{password: "shared"})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}

	imported, err := ksB.ImportKey(envelope)
	if err != nil {
		t.Fatalf("ImportKey: %v", err)
	}
	if imported.Data != key.Data {
		t.Fatal("joined keystore did not rederive the same master key")
	}
}

func TestJoinWrongPassword(t *testing.T) {
	dirA := filepath.Join(t.TempDir(), "ks-a")
	ksA, err := Create(dirA, &fixedPrompter{password: "shared"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	salt, hash, err := ksA.Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	dirB := filepath.Join(t.TempDir(), "ks-b")
	ksB, err := Join(dirB, salt, hash, &fixedPrompter{password: "wrong"})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := ksB.NewDataKey("x"); !errs.Is(err, errs.CryptoError) {
		t.Fatalf("expected CryptoError, got %v", err)
	}
}

func TestHasKeyHelpers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ks")
	ks, err := Create(dir, &fixedPrompter{password: "p"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ks.HasDataKey("r") {
		t.Fatal("expected no data key yet")
	}
	if _, err := ks.NewDataKey("r"); err != nil {
		t.Fatalf("NewDataKey: %v", err)
	}
	if !ks.HasDataKey("r") {
		t.Fatal("expected data key to be present after creation")
	}
}
