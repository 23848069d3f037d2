// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package object defines the four content-addressed object kinds coldtrail
// stores — Snapshot, Tree, File, and Symlink — their canonical binary
// encoding, and the identity tag derived from that encoding.
//
// # Design
//
// The on-disk format is a tagged variant, not a sum-of-structs: each kind
// carries only its own fields, and readers dispatch on the leading type byte
// (0..3) of the canonical encoding. An object's IdentityTag is the SHA-256 of
// that encoding (or, for raw blocks, of the plaintext itself) — the store is
// content-addressed and immutable per tag.
package object

import "crypto/sha256"

// IdentityTag is the 32-byte SHA-256 identity of an object's canonical
// encoding, or of a raw block's plaintext.
type IdentityTag [32]byte

// IsZero reports whether the tag is the all-zero value, i.e. an
// IdentityTag that was never assigned.
func (t IdentityTag) IsZero() bool {
	return t == IdentityTag{}
}

// Hash returns the SHA-256 identity of arbitrary bytes. Used both for raw
// block content addressing and, via Encode, for object identity.
func Hash(data []byte) IdentityTag {
	return IdentityTag(sha256.Sum256(data))
}

// Kind is the leading type byte of an object's canonical encoding.
type Kind uint8

const (
	KindSnapshot Kind = 0x00
	KindTree     Kind = 0x01
	KindSymlink  Kind = 0x02
	KindFile     Kind = 0x03
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindTree:
		return "tree"
	case KindSymlink:
		return "symlink"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// FSMetadata captures the filesystem attributes attached to Tree, File, and
// Symlink objects. Creation time for the object itself is tracked
// separately on Snapshot and is not part of FSMetadata.
type FSMetadata struct {
	Mtime uint64 // seconds since epoch, UTC
	Atime uint64 // seconds since epoch, UTC
	UID   uint32
	GID   uint32
	Mode  uint16 // low 16 bits of the POSIX mode
}

// DefaultFSMetadata is used for synthetic intermediate directories created
// by the skeleton-tree builder (build_tree_skeleton).
func DefaultFSMetadata(now uint64) FSMetadata {
	return FSMetadata{Mtime: now, Atime: now, UID: 0, GID: 0, Mode: 0755}
}

// Snapshot is a single logical point-in-time state of a node's filesystem
// tree. Root points to a Tree; Parent, if present, points to the previous
// Snapshot written by the same node.
type Snapshot struct {
	CreateTime uint64 // seconds since epoch, UTC
	Root       IdentityTag
	Parent     *IdentityTag
}

// Tree is a directory listing: an ordered set of child tags, each pointing
// to a Tree, File, or Symlink — never a Snapshot.
type Tree struct {
	Name     []byte
	Meta     FSMetadata
	Children []IdentityTag
}

// File records a regular file as an ordered list of content-addressed block
// tags.
type File struct {
	Name   []byte
	Meta   FSMetadata
	Blocks []IdentityTag
}

// Symlink records a symbolic link's target path.
type Symlink struct {
	Name   []byte
	Meta   FSMetadata
	Target []byte
}

// Object is implemented by Snapshot, Tree, File, and Symlink. It exists so
// code that only needs to dispatch on kind or re-encode an object doesn't
// need a type switch at every call site.
type Object interface {
	kind() Kind
}

func (Snapshot) kind() Kind { return KindSnapshot }
func (Tree) kind() Kind     { return KindTree }
func (File) kind() Kind     { return KindFile }
func (Symlink) kind() Kind  { return KindSymlink }

// KindOf returns the leading type byte for any Object.
func KindOf(o Object) Kind { return o.kind() }

// Name returns the object's name, or nil for a Snapshot (which has none).
func Name(o Object) []byte {
	switch v := o.(type) {
	case Tree:
		return v.Name
	case File:
		return v.Name
	case Symlink:
		return v.Name
	default:
		return nil
	}
}
