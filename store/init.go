// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/keystore"
)

// Connect runs the initialization protocol from spec.md §4.4 against raw for
// (node, remote), then wraps it as an encrypted Backend:
//
//  1. Acquire the destination lock.
//  2. If metadata/blocks are missing, create the layout and generate a
//     fresh data key for this destination in the local keystore.
//  3. If the local keystore lacks the destination's data key, fetch
//     <root>/datakey, decrypt it under the local master, and cache it.
//  4. If metakeys/<node> is missing at the destination, publish this
//     node's metadata key envelope.
//  5. Release the lock once all shared-state mutations have landed.
func Connect(raw RawBackend, ks *keystore.Keystore, remote, node string, opts ...Option) (*EncryptionAdapter, error) {
	var dataKey, metaKey keystore.Key

	err := raw.Lock(func() error {
		initialized, err := raw.Initialized()
		if err != nil {
			return err
		}
		if !initialized {
			if err := raw.EnsureLayout(); err != nil {
				return err
			}
			if dataKey, err = ks.NewDataKey(remote); err != nil {
				return err
			}
		} else if ks.HasDataKey(remote) {
			if dataKey, err = ks.ReadDataKey(remote); err != nil {
				return err
			}
		} else {
			envelope, err := raw.ReadDataKeyEnvelope()
			if err != nil {
				return err
			}
			if envelope == nil {
				return errs.New(errs.NotFound, "destination %s has no published data key", remote)
			}
			dataKey, err = ks.ImportKey(envelope)
			if err != nil {
				return err
			}
			if err := ks.StoreDataKey(dataKey); err != nil {
				return err
			}
		}

		if !initialized {
			envelope, err := ks.ExportKey(dataKey)
			if err != nil {
				return err
			}
			if err := raw.WriteDataKeyEnvelope(envelope); err != nil {
				return err
			}
		}

		if ks.HasMetaKey(node) {
			if metaKey, err = ks.ReadMetaKey(node); err != nil {
				return err
			}
		} else {
			if metaKey, err = ks.NewMetaKey(node); err != nil {
				return err
			}
		}

		existing, err := raw.ReadMetaKeyEnvelope(node)
		if err != nil {
			return err
		}
		if existing == nil {
			envelope, err := ks.ExportKey(metaKey)
			if err != nil {
				return err
			}
			if err := raw.WriteMetaKeyEnvelope(node, envelope); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewEncryptionAdapter(raw, remote, node, dataKey.Data, metaKey.Data, opts...)
}
