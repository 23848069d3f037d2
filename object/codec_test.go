// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"
)

func randTag(r *rand.Rand) IdentityTag {
	var t IdentityTag
	r.Read(t[:])
	return t
}

func randMeta(r *rand.Rand) FSMetadata {
	return FSMetadata{
		Mtime: uint64(r.Int63()),
		Atime: uint64(r.Int63()),
		UID:   r.Uint32(),
		GID:   r.Uint32(),
		Mode:  uint16(r.Intn(1 << 16)),
	}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	cases := []Object{
		Snapshot{CreateTime: 123, Root: randTag(r)},
		func() Object {
			p := randTag(r)
			return Snapshot{CreateTime: 456, Root: randTag(r), Parent: &p}
		}(),
		Tree{Name: []byte("etc"), Meta: randMeta(r), Children: []IdentityTag{randTag(r), randTag(r)}},
		Tree{Name: []byte(""), Meta: randMeta(r), Children: nil},
		File{Name: []byte("a.txt"), Meta: randMeta(r), Blocks: []IdentityTag{randTag(r)}},
		Symlink{Name: []byte("link"), Meta: randMeta(r), Target: []byte("../target")},
	}

	for i, c := range cases {
		enc := Encode(c)
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if !reflect.DeepEqual(c, dec) {
			t.Fatalf("case %d: round trip mismatch:\n got  %#v\n want %#v", i, dec, c)
		}

		// Stability: re-encoding the decoded value reproduces the same bytes,
		// and hashing is deterministic.
		enc2 := Encode(dec)
		if !bytes.Equal(enc, enc2) {
			t.Fatalf("case %d: re-encode mismatch", i)
		}
		if IdentityOf(c) != IdentityOf(dec) {
			t.Fatalf("case %d: identity mismatch after round trip", i)
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte{0xff})
	if err == nil {
		t.Fatal("expected error for unknown type byte")
	}
}

func TestDecodeTruncated(t *testing.T) {
	enc := Encode(Tree{Name: []byte("x"), Children: []IdentityTag{{1}}})
	_, err := Decode(enc[:len(enc)-1])
	if err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func TestIdentityStableAcrossCalls(t *testing.T) {
	o := File{Name: []byte("f"), Blocks: []IdentityTag{{9}}}
	a := IdentityOf(o)
	b := IdentityOf(o)
	if a != b {
		t.Fatal("identity not stable")
	}
}

func TestClampTime(t *testing.T) {
	if ClampTime(-5) != 0 {
		t.Fatal("expected negative time to clamp to 0")
	}
	if ClampTime(100) != 100 {
		t.Fatal("expected positive time to pass through")
	}
}
