// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/hex"
	"log/slog"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/keystore"
	"github.com/coldtrail/coldtrail/object"
)

// EncryptionAdapter wraps a RawBackend so that blocks are encrypted under
// the destination's data key and metadata objects under the node's
// metadata key, turning raw ciphertext storage into the plaintext Backend
// interface the History Engine consumes. Ciphertext on disk is
// `12-byte nonce | ciphertext || 16-byte AEAD tag`, per spec.md §4.3;
// associated data is the remote name for blocks and the node name for
// metadata.
type EncryptionAdapter struct {
	raw    RawBackend
	remote string // associated data for block encryption
	node   string // associated data for metadata encryption

	dataAEAD cipherAEAD
	metaAEAD cipherAEAD

	logger *slog.Logger
}

// cipherAEAD is the minimal surface EncryptionAdapter needs from a
// chacha20poly1305 cipher; kept as an interface so tests can substitute a
// deterministic fake.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewEncryptionAdapter builds an adapter from already-resolved 32-byte data
// and metadata keys. Use Connect to resolve those keys from a Keystore
// following the full initialization protocol.
func NewEncryptionAdapter(raw RawBackend, remote, node string, dataKey, metaKey [32]byte, opts ...Option) (*EncryptionAdapter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	dataAEAD, err := chacha20poly1305.New(dataKey[:])
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, err, "construct data key cipher")
	}
	metaAEAD, err := chacha20poly1305.New(metaKey[:])
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, err, "construct metadata key cipher")
	}
	return &EncryptionAdapter{
		raw:      raw,
		remote:   remote,
		node:     node,
		dataAEAD: dataAEAD,
		metaAEAD: metaAEAD,
		logger:   o.logger,
	}, nil
}

var _ Backend = (*EncryptionAdapter)(nil)

func (e *EncryptionAdapter) ListMeta() ([]object.IdentityTag, error) {
	return e.raw.ListMetaTags()
}

func (e *EncryptionAdapter) ReadMeta(tag object.IdentityTag) (object.Object, error) {
	ciphertext, err := e.raw.ReadMeta(tag)
	if err != nil {
		return nil, err
	}
	plain, err := open(e.metaAEAD, ciphertext, []byte(e.node))
	if err != nil {
		e.logger.Error("coldtrail: metadata decrypt failed", "tag", hex.EncodeToString(tag[:]), "node", e.node, "error", err)
		return nil, err
	}
	return object.Decode(plain)
}

func (e *EncryptionAdapter) WriteMeta(obj object.Object) (object.IdentityTag, error) {
	plain := object.Encode(obj)
	tag := object.Hash(plain)

	ciphertext, err := seal(e.metaAEAD, plain, []byte(e.node))
	if err != nil {
		return object.IdentityTag{}, err
	}
	if err := e.raw.WriteMeta(tag, ciphertext); err != nil {
		return object.IdentityTag{}, err
	}
	return tag, nil
}

func (e *EncryptionAdapter) ReadBlock(tag object.IdentityTag) ([]byte, error) {
	ciphertext, err := e.raw.ReadBlock(tag)
	if err != nil {
		return nil, err
	}
	plain, err := open(e.dataAEAD, ciphertext, []byte(e.remote))
	if err != nil {
		e.logger.Error("coldtrail: block decrypt failed", "tag", hex.EncodeToString(tag[:]), "remote", e.remote, "error", err)
		return nil, err
	}
	return plain, nil
}

func (e *EncryptionAdapter) WriteBlock(plaintext []byte) (object.IdentityTag, error) {
	tag := object.Hash(plaintext)

	ciphertext, err := seal(e.dataAEAD, plaintext, []byte(e.remote))
	if err != nil {
		return object.IdentityTag{}, err
	}
	if err := e.raw.WriteBlock(tag, ciphertext); err != nil {
		return object.IdentityTag{}, err
	}
	return tag, nil
}

func (e *EncryptionAdapter) GetHead() (*object.Snapshot, error) {
	var snap *object.Snapshot
	err := e.raw.Lock(func() error {
		tag, err := e.raw.HeadTag()
		if err != nil {
			return err
		}
		if tag == nil {
			return nil
		}
		obj, err := e.ReadMeta(*tag)
		if err != nil {
			return err
		}
		s, ok := obj.(object.Snapshot)
		if !ok {
			return errs.New(errs.IntegrityError, "head %x does not resolve to a Snapshot", tag[:])
		}
		snap = &s
		return nil
	})
	return snap, err
}

func (e *EncryptionAdapter) SetHead(tag object.IdentityTag) error {
	return e.raw.Lock(func() error {
		obj, err := e.ReadMeta(tag)
		if err != nil {
			return err
		}
		if _, ok := obj.(object.Snapshot); !ok {
			return errs.New(errs.InvalidArgument, "head must point to a Snapshot")
		}
		return e.raw.SetHeadTag(tag)
	})
}

func seal(c cipherAEAD, plaintext, ad []byte) ([]byte, error) {
	nonce, err := keystore.NewNonce()
	if err != nil {
		return nil, err
	}
	sealed := c.Seal(nil, nonce[:], plaintext, ad)
	return append(nonce[:], sealed...), nil
}

func open(c cipherAEAD, ciphertext, ad []byte) ([]byte, error) {
	if len(ciphertext) < keystore.NonceSize {
		return nil, errs.New(errs.IntegrityError, "ciphertext shorter than nonce")
	}
	nonce := ciphertext[:keystore.NonceSize]
	body := ciphertext[keystore.NonceSize:]
	plain, err := c.Open(nil, nonce, body, ad)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, err, "decrypt")
	}
	return plain, nil
}
