// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package store defines the object-store Backend interface the History
// Engine builds on, a content-addressed filesystem implementation of it,
// and an encryption adapter that wraps any raw Backend with per-destination
// AEAD protection for blocks and metadata.
package store

import "github.com/coldtrail/coldtrail/object"

// Backend is the interface the History Engine consumes. Implementations
// store and retrieve content-addressed blocks and metadata objects, and
// track a single mutable head pointer per node.
//
// write_meta and write_block are idempotent: writing the same content twice
// returns the same tag without error. Concurrent writers racing on the same
// tag produce identical bytes, so neither write needs to hold the
// destination lock; only head reads/writes and initialization do.
type Backend interface {
	// ListMeta returns every metadata object tag currently stored.
	ListMeta() ([]object.IdentityTag, error)

	// ReadMeta decodes and returns the metadata object stored under tag.
	ReadMeta(tag object.IdentityTag) (object.Object, error)

	// WriteMeta stores obj's canonical encoding and returns its tag.
	WriteMeta(obj object.Object) (object.IdentityTag, error)

	// ReadBlock returns the plaintext block stored under tag.
	ReadBlock(tag object.IdentityTag) ([]byte, error)

	// WriteBlock stores plaintext and returns SHA-256(plaintext).
	WriteBlock(plaintext []byte) (object.IdentityTag, error)

	// GetHead returns the current head Snapshot, or (nil, nil) if the node
	// has no head yet.
	GetHead() (*object.Snapshot, error)

	// SetHead atomically repoints the node's head at tag, which must
	// resolve to a Snapshot object already written via WriteMeta.
	SetHead(tag object.IdentityTag) error
}
