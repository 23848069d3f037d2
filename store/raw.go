// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import "github.com/coldtrail/coldtrail/object"

// RawBackend is the storage-only half of a destination: content-addressed
// byte blobs and a per-node head tag, with no knowledge of encryption. The
// EncryptionAdapter in this package turns a RawBackend into the Backend
// interface the History Engine actually uses, by encrypting plaintext
// before handing it to RawBackend.WriteMeta/WriteBlock and decrypting what
// RawBackend.ReadMeta/ReadBlock returns.
//
// Every Write is idempotent: writing the same tag twice must succeed
// without altering the stored bytes, since two writers can race on the same
// content-addressed tag.
type RawBackend interface {
	ListMetaTags() ([]object.IdentityTag, error)
	ReadMeta(tag object.IdentityTag) ([]byte, error)
	WriteMeta(tag object.IdentityTag, ciphertext []byte) error

	ReadBlock(tag object.IdentityTag) ([]byte, error)
	WriteBlock(tag object.IdentityTag, ciphertext []byte) error

	// HeadTag returns the node's current head tag, or nil if none is set.
	HeadTag() (*object.IdentityTag, error)
	SetHeadTag(tag object.IdentityTag) error

	// Lock acquires the destination's exclusive lock for the duration of
	// fn, per the spec's exclusive-access discipline: held across head
	// reads/writes and initialization, never across content-addressed
	// writes.
	Lock(fn func() error) error

	// ReadDataKeyEnvelope and ReadMetaKeyEnvelope fetch the encrypted key
	// envelopes a destination publishes for new nodes; WriteDataKeyEnvelope
	// and WriteMetaKeyEnvelope publish this node's own. A nil, nil return
	// means the envelope doesn't exist yet.
	ReadDataKeyEnvelope() ([]byte, error)
	WriteDataKeyEnvelope(envelope []byte) error
	ReadMetaKeyEnvelope(node string) ([]byte, error)
	WriteMetaKeyEnvelope(node string, envelope []byte) error

	// Initialized reports whether the metadata/blocks directory skeleton
	// already exists at this destination.
	Initialized() (bool, error)
	// EnsureLayout creates the metadata/blocks directory skeleton. It must
	// be safe to call when the layout already exists.
	EnsureLayout() error
}
