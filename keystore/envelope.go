// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/coldtrail/coldtrail/errs"
)

// envelopeVersion is the only wire version this package writes. Decode
// rejects anything else rather than guessing at a future layout.
const envelopeVersion uint16 = 1

// ExportKey wraps key under the keystore's master key so it can be written
// to a destination's metakeys/<node> or the data key a remote publishes for
// new members of a target group. The wire format is:
//
//	u16 version | 12-byte nonce | AEAD{ u16 namelen | name | 32-byte key }
//
// with no associated data, per spec.md §4.3 and matching
// original_source/src/keys.rs's encrypt_master.
func (k *Keystore) ExportKey(key Key) ([]byte, error) {
	master, err := k.masterKey()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(master[:aeadKeyLength])
	if err != nil {
		return nil, errs.Wrap(errs.CryptoError, err, "construct AEAD cipher")
	}

	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}

	plain := make([]byte, 2+len(key.Name)+aeadKeyLength)
	binary.LittleEndian.PutUint16(plain[0:2], uint16(len(key.Name)))
	copy(plain[2:2+len(key.Name)], key.Name)
	copy(plain[2+len(key.Name):], key.Data[:])

	header := make([]byte, 2+NonceSize)
	binary.LittleEndian.PutUint16(header[0:2], envelopeVersion)
	copy(header[2:], nonce[:])

	sealed := aead.Seal(nil, nonce[:], plain, nil)
	return append(header, sealed...), nil
}

// ImportKey reverses ExportKey, verifying the envelope under the keystore's
// master key.
func (k *Keystore) ImportKey(envelope []byte) (Key, error) {
	if len(envelope) < 2+NonceSize {
		return Key{}, errs.New(errs.WrongFormat, "key envelope too short")
	}
	version := binary.LittleEndian.Uint16(envelope[0:2])
	if version != envelopeVersion {
		return Key{}, errs.New(errs.WrongFormat, "unsupported key envelope version %d", version)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], envelope[2:2+NonceSize])
	sealed := envelope[2+NonceSize:]

	master, err := k.masterKey()
	if err != nil {
		return Key{}, err
	}
	aead, err := chacha20poly1305.New(master[:aeadKeyLength])
	if err != nil {
		return Key{}, errs.Wrap(errs.CryptoError, err, "construct AEAD cipher")
	}

	plain, err := aead.Open(nil, nonce[:], sealed, nil)
	if err != nil {
		return Key{}, errs.Wrap(errs.CryptoError, err, "decrypt key envelope")
	}
	if len(plain) < 2 {
		return Key{}, errs.New(errs.IntegrityError, "decrypted key envelope truncated")
	}
	nameLen := int(binary.LittleEndian.Uint16(plain[0:2]))
	if len(plain) != 2+nameLen+aeadKeyLength {
		return Key{}, errs.New(errs.IntegrityError, "decrypted key envelope has wrong length")
	}

	var key Key
	key.Name = string(plain[2 : 2+nameLen])
	copy(key.Data[:], plain[2+nameLen:])
	return key, nil
}
