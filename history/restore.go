// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"os"
	"path/filepath"
	"time"

	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/object"
)

func timeFromUnix(seconds uint64) time.Time {
	return time.Unix(int64(seconds), 0)
}

// Restore materializes obj at destPath: a File is written as the
// concatenation of its decrypted blocks in order, a Tree is created as a
// directory and recursed into, a Symlink is recreated pointing at its
// stored target. Snapshots aren't restorable directly; restore their Root
// instead.
//
// If overwrite is false, Restore refuses to clobber an existing destPath.
func (e *Engine) Restore(obj object.Object, destPath string, overwrite bool) error {
	return e.restore(obj, destPath, overwrite, maxTraversalDepth)
}

func (e *Engine) restore(obj object.Object, destPath string, overwrite bool, depth int) error {
	if depth <= 0 {
		return errs.New(errs.IntegrityError, "restore exceeded maximum depth")
	}

	switch v := obj.(type) {
	case object.Tree:
		if err := mkdirForRestore(destPath, v.Meta, overwrite); err != nil {
			return err
		}
		for _, childTag := range v.Children {
			child, err := e.backend.ReadMeta(childTag)
			if err != nil {
				return err
			}
			name := object.Name(child)
			if name == nil {
				return errs.New(errs.IntegrityError, "tree child resolves to an object with no name")
			}
			if err := e.restore(child, filepath.Join(destPath, string(name)), overwrite, depth-1); err != nil {
				return err
			}
		}
		return applyFSMetadata(destPath, v.Meta)

	case object.File:
		return e.restoreFile(v, destPath, overwrite)

	case object.Symlink:
		if err := refuseExisting(destPath, overwrite); err != nil {
			return err
		}
		if err := os.Symlink(string(v.Target), destPath); err != nil {
			return errs.Wrap(errs.BackendError, err, "symlink %s", destPath)
		}
		return nil

	case object.Snapshot:
		return errs.New(errs.InvalidArgument, "cannot restore a Snapshot directly; restore its Root")

	default:
		return errs.New(errs.IntegrityError, "unexpected object kind during restore")
	}
}

func (e *Engine) restoreFile(f object.File, destPath string, overwrite bool) error {
	if err := refuseExisting(destPath, overwrite); err != nil {
		return err
	}

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(f.Meta.Mode))
	if err != nil {
		return errs.Wrap(errs.BackendError, err, "create %s", destPath)
	}
	defer out.Close()

	for _, blockTag := range f.Blocks {
		data, err := e.backend.ReadBlock(blockTag)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return errs.Wrap(errs.BackendError, err, "write %s", destPath)
		}
	}

	if err := out.Close(); err != nil {
		return errs.Wrap(errs.BackendError, err, "close %s", destPath)
	}
	return applyFSMetadata(destPath, f.Meta)
}

func mkdirForRestore(destPath string, meta object.FSMetadata, overwrite bool) error {
	if info, err := os.Lstat(destPath); err == nil {
		if !info.IsDir() {
			if !overwrite {
				return errs.New(errs.InvalidArgument, "%s already exists", destPath)
			}
			if err := os.RemoveAll(destPath); err != nil {
				return errs.Wrap(errs.BackendError, err, "remove %s", destPath)
			}
		} else {
			return nil
		}
	}
	if err := os.MkdirAll(destPath, os.FileMode(meta.Mode)|0700); err != nil {
		return errs.Wrap(errs.BackendError, err, "mkdir %s", destPath)
	}
	return nil
}

func refuseExisting(destPath string, overwrite bool) error {
	if overwrite {
		return nil
	}
	if _, err := os.Lstat(destPath); err == nil {
		return errs.New(errs.InvalidArgument, "%s already exists", destPath)
	}
	return nil
}

func applyFSMetadata(path string, meta object.FSMetadata) error {
	if err := os.Chmod(path, os.FileMode(meta.Mode)); err != nil {
		return errs.Wrap(errs.BackendError, err, "chmod %s", path)
	}
	mtime := timeFromUnix(meta.Mtime)
	atime := timeFromUnix(meta.Atime)
	if err := os.Chtimes(path, atime, mtime); err != nil {
		return errs.Wrap(errs.BackendError, err, "chtimes %s", path)
	}
	return nil
}
