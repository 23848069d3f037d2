// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package keystore manages the password-derived master key that protects
// per-destination data keys and per-node metadata keys, plus the AEAD
// primitives coldtrail's object store uses to encrypt blocks and metadata.
//
// Design mirrors original_source/src/keys.rs: a master key is derived once
// via PBKDF2-HMAC-SHA256 from a per-keystore salt, cached in memory for the
// lifetime of the process, and used only to wrap/unwrap 32-byte ChaCha20-
// Poly1305 keys exported to (or imported from) a destination. The plaintext
// master key never touches disk.
package keystore

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/coldtrail/coldtrail/errs"
)

const (
	saltLength      = 256
	pbkdf2Iters     = 100000
	aeadKeyLength   = 32
	masterKeyLength = sha256.Size
)

// PasswordPrompter is the external key-prompt collaborator named in spec.md
// §6. Create calls it twice (new password + confirmation); Open calls it
// lazily, once, the first time a key is actually needed.
type PasswordPrompter interface {
	PromptPassword(message string) (string, error)
}

// Key is a 32-byte AEAD key tied to the name it was issued for (a node name
// for metadata keys, a destination/remote name for data keys). The name is
// folded in as associated data whenever the key is used to encrypt.
type Key struct {
	Name string
	Data [aeadKeyLength]byte
}

// Keystore gates access to the local key material described in spec.md §6:
//
//	<ks>/mkey_salt         256 bytes
//	<ks>/mkey_hash         32 bytes = SHA-256 of the derived master key
//	<ks>/meta/<node>       32 bytes, metadata key
//	<ks>/data/<remote>     32 bytes, data key
type Keystore struct {
	path     string
	prompter PasswordPrompter

	mu     sync.Mutex
	master *[masterKeyLength]byte // cached for the process lifetime
}

// Create initializes a new keystore directory at path, prompting for (and
// confirming) a password, then deriving and persisting the master key's salt
// and verification hash.
func Create(path string, prompter PasswordPrompter) (*Keystore, error) {
	if err := os.Mkdir(path, 0700); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "create keystore directory %s", path)
	}
	if err := os.Mkdir(filepath.Join(path, "meta"), 0700); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "create meta directory")
	}
	if err := os.Mkdir(filepath.Join(path, "data"), 0700); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "create data directory")
	}

	passwd, err := prompter.PromptPassword("New keystore password: ")
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "prompt password")
	}
	confirm, err := prompter.PromptPassword("Confirm keystore password: ")
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "prompt confirmation")
	}
	if subtle.ConstantTimeCompare([]byte(passwd), []byte(confirm)) != 1 {
		return nil, errs.New(errs.InvalidArgument, "passwords do not match")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errs.Wrap(errs.CryptoError, err, "generate salt")
	}

	master := deriveMaster(passwd, salt)
	hash := sha256.Sum256(master[:])

	if err := os.WriteFile(filepath.Join(path, "mkey_salt"), salt, 0600); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "write mkey_salt")
	}
	if err := os.WriteFile(filepath.Join(path, "mkey_hash"), hash[:], 0600); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "write mkey_hash")
	}

	return &Keystore{path: path, prompter: prompter, master: &master}, nil
}

// Open validates an existing keystore directory. The password is not
// required until the first key operation that needs the master key.
func Open(path string, prompter PasswordPrompter) (*Keystore, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, err, "open keystore %s", path)
	}
	if !info.IsDir() {
		return nil, errs.New(errs.InvalidArgument, "keystore path %s is not a directory", path)
	}
	for _, f := range []string{"mkey_salt", "mkey_hash"} {
		if _, err := os.Stat(filepath.Join(path, f)); err != nil {
			return nil, errs.Wrap(errs.NotFound, err, "keystore missing %s", f)
		}
	}
	return &Keystore{path: path, prompter: prompter}, nil
}

// Bootstrap returns this keystore's salt and password-verification hash, so
// a second node can be provisioned to derive the identical master key. A
// keystore's master key is a function of (password, salt); since salt is
// generated fresh by Create, two independently-created keystores derive
// different masters even given the same password. Join closes that gap.
func (k *Keystore) Bootstrap() (salt, hash []byte, err error) {
	salt, err = os.ReadFile(filepath.Join(k.path, "mkey_salt"))
	if err != nil {
		return nil, nil, errs.Wrap(errs.BackendError, err, "read mkey_salt")
	}
	hash, err = os.ReadFile(filepath.Join(k.path, "mkey_hash"))
	if err != nil {
		return nil, nil, errs.Wrap(errs.BackendError, err, "read mkey_hash")
	}
	return salt, hash, nil
}

// Join provisions a new local keystore directory at path using a salt and
// verification hash obtained out of band (typically via Bootstrap on an
// already-initialized node), so that entering the same password here
// rederives the same master key as the source keystore.
func Join(path string, salt, hash []byte, prompter PasswordPrompter) (*Keystore, error) {
	if len(salt) != saltLength {
		return nil, errs.New(errs.InvalidArgument, "bootstrap salt has wrong length %d", len(salt))
	}
	if len(hash) != masterKeyLength {
		return nil, errs.New(errs.InvalidArgument, "bootstrap hash has wrong length %d", len(hash))
	}
	if err := os.Mkdir(path, 0700); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "create keystore directory %s", path)
	}
	if err := os.Mkdir(filepath.Join(path, "meta"), 0700); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "create meta directory")
	}
	if err := os.Mkdir(filepath.Join(path, "data"), 0700); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "create data directory")
	}
	if err := os.WriteFile(filepath.Join(path, "mkey_salt"), salt, 0600); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "write mkey_salt")
	}
	if err := os.WriteFile(filepath.Join(path, "mkey_hash"), hash, 0600); err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "write mkey_hash")
	}
	return &Keystore{path: path, prompter: prompter}, nil
}

func deriveMaster(passwd string, salt []byte) [masterKeyLength]byte {
	derived := pbkdf2.Key([]byte(passwd), salt, pbkdf2Iters, masterKeyLength, sha256.New)
	var out [masterKeyLength]byte
	copy(out[:], derived)
	return out
}

// masterKey returns the cached master key, deriving and verifying it on
// first use. Access is single-threaded per process as described in spec.md
// §5; the mutex below only protects the lazy-init race, not concurrent
// crypto operations.
func (k *Keystore) masterKey() ([masterKeyLength]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.master != nil {
		return *k.master, nil
	}

	passwd, err := k.prompter.PromptPassword("Keystore password: ")
	if err != nil {
		return [masterKeyLength]byte{}, errs.Wrap(errs.InvalidArgument, err, "prompt password")
	}

	salt, err := os.ReadFile(filepath.Join(k.path, "mkey_salt"))
	if err != nil {
		return [masterKeyLength]byte{}, errs.Wrap(errs.BackendError, err, "read mkey_salt")
	}
	wantHash, err := os.ReadFile(filepath.Join(k.path, "mkey_hash"))
	if err != nil {
		return [masterKeyLength]byte{}, errs.Wrap(errs.BackendError, err, "read mkey_hash")
	}

	master := deriveMaster(passwd, salt)
	gotHash := sha256.Sum256(master[:])
	if subtle.ConstantTimeCompare(gotHash[:], wantHash) != 1 {
		return [masterKeyLength]byte{}, errs.New(errs.CryptoError, "incorrect keystore password")
	}

	k.master = &master
	return master, nil
}

// NewMetaKey generates and persists a fresh metadata key for node.
func (k *Keystore) NewMetaKey(node string) (Key, error) {
	return k.newKey("meta", node)
}

// NewDataKey generates and persists a fresh data key for remote.
func (k *Keystore) NewDataKey(remote string) (Key, error) {
	return k.newKey("data", remote)
}

func (k *Keystore) newKey(subdir, name string) (Key, error) {
	if _, err := k.masterKey(); err != nil {
		return Key{}, err
	}

	var key Key
	key.Name = name
	if _, err := io.ReadFull(rand.Reader, key.Data[:]); err != nil {
		return Key{}, errs.Wrap(errs.CryptoError, err, "generate key")
	}

	path := filepath.Join(k.path, subdir, name)
	if err := os.WriteFile(path, key.Data[:], 0600); err != nil {
		return Key{}, errs.Wrap(errs.BackendError, err, "write key %s", path)
	}
	return key, nil
}

// ReadMetaKey loads a previously-created metadata key for node.
func (k *Keystore) ReadMetaKey(node string) (Key, error) {
	return k.readKey("meta", node)
}

// ReadDataKey loads a previously-created data key for remote.
func (k *Keystore) ReadDataKey(remote string) (Key, error) {
	return k.readKey("data", remote)
}

// HasDataKey reports whether a data key for remote is already cached
// locally, without attempting to read or derive anything else.
func (k *Keystore) HasDataKey(remote string) bool {
	_, err := os.Stat(filepath.Join(k.path, "data", remote))
	return err == nil
}

// HasMetaKey reports whether a metadata key for node is already cached
// locally.
func (k *Keystore) HasMetaKey(node string) bool {
	_, err := os.Stat(filepath.Join(k.path, "meta", node))
	return err == nil
}

// StoreDataKey persists a data key fetched from a remote (after decrypting
// its envelope with ImportKey) into the local keystore.
func (k *Keystore) StoreDataKey(key Key) error {
	return os.WriteFile(filepath.Join(k.path, "data", key.Name), key.Data[:], 0600)
}

// StoreMetaKey persists a metadata key fetched from a remote into the local
// keystore.
func (k *Keystore) StoreMetaKey(key Key) error {
	return os.WriteFile(filepath.Join(k.path, "meta", key.Name), key.Data[:], 0600)
}

func (k *Keystore) readKey(subdir, name string) (Key, error) {
	path := filepath.Join(k.path, subdir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Key{}, errs.Wrap(errs.NotFound, err, "key %s/%s", subdir, name)
		}
		return Key{}, errs.Wrap(errs.BackendError, err, "read key %s", path)
	}
	if len(data) != aeadKeyLength {
		return Key{}, errs.New(errs.CryptoError, "key %s has wrong length %d", path, len(data))
	}
	var key Key
	key.Name = name
	copy(key.Data[:], data)
	return key, nil
}

// String avoids accidentally leaking key material through %v/%s formatting.
func (k Key) String() string {
	return fmt.Sprintf("Key{Name:%q}", k.Name)
}
