// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"crypto/rand"
	"io"
	"net"
	"sync"

	"github.com/coldtrail/coldtrail/errs"
)

const NonceSize = 12

// nonceMu guards lazy discovery of the machine field below; it is read far
// more often than written so a plain mutex is fine.
var (
	nonceMu      sync.Mutex
	machineField [6]byte
	haveMachine  bool
)

// NewNonce builds a 12-byte AEAD nonce: a fixed 6-byte machine field (the
// lowest-numbered non-loopback hardware address on the host) followed by a
// 6-byte CSPRNG invocation field. The machine field makes nonces from two
// processes on the same host collide only if the random field also
// collides; it is never a secret and is always sent in cleartext ahead of
// the ciphertext it protects.
func NewNonce() ([NonceSize]byte, error) {
	var out [NonceSize]byte

	field, err := machineID()
	if err != nil {
		return out, err
	}
	copy(out[:6], field[:])

	if _, err := io.ReadFull(rand.Reader, out[6:]); err != nil {
		return out, errs.Wrap(errs.CryptoError, err, "generate nonce invocation field")
	}
	return out, nil
}

func machineID() ([6]byte, error) {
	nonceMu.Lock()
	defer nonceMu.Unlock()

	if haveMachine {
		return machineField, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return [6]byte{}, errs.Wrap(errs.CryptoError, err, "enumerate network interfaces")
	}

	var best net.HardwareAddr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		if best == nil || bytesLess(iface.HardwareAddr, best) {
			best = iface.HardwareAddr
		}
	}
	if best == nil {
		// No usable non-loopback hardware address (containers, CI). Per
		// spec.md §4.3, the nonce's machine field is not allowed to be
		// fabricated: fail rather than substitute a random stand-in that
		// would silently lose the cross-process stability a real MAC gives.
		return [6]byte{}, errs.New(errs.CryptoError, "no non-loopback hardware address available for nonce machine field")
	}

	copy(machineField[:], best)
	haveMachine = true
	return machineField, nil
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
