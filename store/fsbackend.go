// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/object"
)

// FilesystemBackend implements RawBackend over a local directory, using the
// sharded content-addressed layout from spec.md §4.4:
//
//	<root>/metadata/<first-hex-byte>/<64-hex-tag>
//	<root>/blocks/<first-hex-byte>/<64-hex-tag>
//	<root>/heads/<node-name>
//	<root>/metakeys/<node-name>
//	<root>/datakey
//	<root>/bkp.lock
//
// It is the default "destination" for a single-machine setup, and the
// reference shape any networked destination backend should match.
type FilesystemBackend struct {
	root   string
	node   string
	lock   *destLock
	logger *slog.Logger
}

// NewFilesystemBackend opens (but does not initialize) a destination rooted
// at root, for the given node name.
func NewFilesystemBackend(root, node string, opts ...Option) (*FilesystemBackend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	lock, err := newDestLock(root)
	if err != nil {
		return nil, err
	}
	return &FilesystemBackend{root: root, node: node, lock: lock, logger: o.logger}, nil
}

func (f *FilesystemBackend) metaDir() string     { return filepath.Join(f.root, "metadata") }
func (f *FilesystemBackend) blockDir() string     { return filepath.Join(f.root, "blocks") }
func (f *FilesystemBackend) headsDir() string     { return filepath.Join(f.root, "heads") }
func (f *FilesystemBackend) metakeysDir() string  { return filepath.Join(f.root, "metakeys") }
func (f *FilesystemBackend) datakeyPath() string  { return filepath.Join(f.root, "datakey") }

func shardedPath(dir string, tag object.IdentityTag) string {
	hexTag := hex.EncodeToString(tag[:])
	return filepath.Join(dir, hexTag[:2], hexTag)
}

func (f *FilesystemBackend) Initialized() (bool, error) {
	_, err := os.Stat(f.metaDir())
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errs.Wrap(errs.BackendError, err, "stat metadata directory")
}

func (f *FilesystemBackend) EnsureLayout() error {
	for _, dir := range []string{f.metaDir(), f.blockDir(), f.headsDir(), f.metakeysDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.Wrap(errs.BackendError, err, "create directory %s", dir)
		}
	}
	return nil
}

func (f *FilesystemBackend) ListMetaTags() ([]object.IdentityTag, error) {
	var out []object.IdentityTag
	shards, err := os.ReadDir(f.metaDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.BackendError, err, "list metadata shards")
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(f.metaDir(), shard.Name()))
		if err != nil {
			return nil, errs.Wrap(errs.BackendError, err, "list metadata shard %s", shard.Name())
		}
		for _, entry := range entries {
			raw, err := hex.DecodeString(entry.Name())
			if err != nil || len(raw) != len(object.IdentityTag{}) {
				continue
			}
			var tag object.IdentityTag
			copy(tag[:], raw)
			out = append(out, tag)
		}
	}
	return out, nil
}

func (f *FilesystemBackend) ReadMeta(tag object.IdentityTag) ([]byte, error) {
	return readBlob(shardedPath(f.metaDir(), tag), "metadata object")
}

func (f *FilesystemBackend) WriteMeta(tag object.IdentityTag, ciphertext []byte) error {
	return writeBlobIfAbsent(shardedPath(f.metaDir(), tag), ciphertext)
}

func (f *FilesystemBackend) ReadBlock(tag object.IdentityTag) ([]byte, error) {
	return readBlob(shardedPath(f.blockDir(), tag), "block")
}

func (f *FilesystemBackend) WriteBlock(tag object.IdentityTag, ciphertext []byte) error {
	return writeBlobIfAbsent(shardedPath(f.blockDir(), tag), ciphertext)
}

func (f *FilesystemBackend) HeadTag() (*object.IdentityTag, error) {
	path := filepath.Join(f.headsDir(), f.node)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.BackendError, err, "read head for %s", f.node)
	}
	hexTag, err := hex.DecodeString(string(raw))
	if err != nil || len(hexTag) != len(object.IdentityTag{}) {
		return nil, errs.New(errs.IntegrityError, "head file for %s is malformed", f.node)
	}
	var tag object.IdentityTag
	copy(tag[:], hexTag)
	return &tag, nil
}

func (f *FilesystemBackend) SetHeadTag(tag object.IdentityTag) error {
	if err := os.MkdirAll(f.headsDir(), 0755); err != nil {
		return errs.Wrap(errs.BackendError, err, "create heads directory")
	}
	path := filepath.Join(f.headsDir(), f.node)
	return atomicWrite(path, []byte(hex.EncodeToString(tag[:])), 0644)
}

func (f *FilesystemBackend) ReadDataKeyEnvelope() ([]byte, error) {
	return readBlobOrNil(f.datakeyPath())
}

func (f *FilesystemBackend) WriteDataKeyEnvelope(envelope []byte) error {
	return atomicWrite(f.datakeyPath(), envelope, 0600)
}

func (f *FilesystemBackend) ReadMetaKeyEnvelope(node string) ([]byte, error) {
	return readBlobOrNil(filepath.Join(f.metakeysDir(), node))
}

func (f *FilesystemBackend) WriteMetaKeyEnvelope(node string, envelope []byte) error {
	if err := os.MkdirAll(f.metakeysDir(), 0755); err != nil {
		return errs.Wrap(errs.BackendError, err, "create metakeys directory")
	}
	return atomicWrite(filepath.Join(f.metakeysDir(), node), envelope, 0600)
}

func (f *FilesystemBackend) Lock(fn func() error) error {
	err := f.lock.withLock(fn)
	if errs.Is(err, errs.LockContention) {
		f.logger.Warn("coldtrail: destination lock contended", "root", f.root, "node", f.node, "error", err)
	}
	return err
}

func readBlob(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, err, "%s not found", what)
		}
		return nil, errs.Wrap(errs.BackendError, err, "read %s", what)
	}
	return data, nil
}

func readBlobOrNil(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.BackendError, err, "read %s", path)
	}
	return data, nil
}

// writeBlobIfAbsent implements the content-addressed write short-circuit:
// if the destination file already exists, the write is a silent no-op,
// since the existing bytes are guaranteed identical by the tag's contract.
func writeBlobIfAbsent(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Wrap(errs.BackendError, err, "create shard directory")
	}
	return atomicWrite(path, data, 0644)
}

// atomicWrite writes data to path via a temp file + rename, so a reader
// never observes a partially-written file.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return errs.Wrap(errs.BackendError, err, "create temp file for %s", path)
	}
	defer t.Cleanup()

	if err := t.Chmod(perm); err != nil {
		return errs.Wrap(errs.BackendError, err, "chmod temp file for %s", path)
	}
	if _, err := t.Write(data); err != nil {
		return errs.Wrap(errs.BackendError, err, "write temp file for %s", path)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return errs.Wrap(errs.BackendError, err, "commit %s", path)
	}
	return nil
}
