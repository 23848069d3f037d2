// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/coldtrail/coldtrail/chunk"
	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/object"
)

// storePath turns a single filesystem entry (regular file, directory, or
// symlink) into a metadata object tree and returns its tag. Directories
// recurse; the caller is responsible for passing a path rooted outside any
// other path it also stores, since storePath does not deduplicate against
// concurrent invocations itself (write_meta's idempotence handles that at
// the content level).
func (e *Engine) storePath(path string) (object.IdentityTag, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return object.IdentityTag{}, errs.Wrap(errs.BackendError, err, "stat %s", path)
	}
	name := filepath.Base(path)
	meta := fsMetadataOf(info)

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return object.IdentityTag{}, errs.Wrap(errs.BackendError, err, "readlink %s", path)
		}
		return e.backend.WriteMeta(object.Symlink{
			Name:   []byte(name),
			Meta:   meta,
			Target: []byte(target),
		})

	case info.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return object.IdentityTag{}, errs.Wrap(errs.BackendError, err, "readdir %s", path)
		}
		// Directory iteration order isn't guaranteed stable by the OS;
		// sorting keeps child-tag order (and therefore the Tree's
		// encoding and tag) reproducible across runs over unchanged
		// content.
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		children := make([]object.IdentityTag, 0, len(entries))
		for _, entry := range entries {
			childTag, err := e.storePath(filepath.Join(path, entry.Name()))
			if err != nil {
				return object.IdentityTag{}, err
			}
			children = append(children, childTag)
		}
		return e.backend.WriteMeta(object.Tree{
			Name:     []byte(name),
			Meta:     meta,
			Children: children,
		})

	case info.Mode().IsRegular():
		f, err := os.Open(path)
		if err != nil {
			return object.IdentityTag{}, errs.Wrap(errs.BackendError, err, "open %s", path)
		}
		defer f.Close()

		var blocks []object.IdentityTag
		c := chunk.New(f)
		for {
			data, err := c.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return object.IdentityTag{}, errs.Wrap(errs.BackendError, err, "chunk %s", path)
			}
			tag, err := e.backend.WriteBlock(data)
			if err != nil {
				return object.IdentityTag{}, err
			}
			blocks = append(blocks, tag)
		}
		return e.backend.WriteMeta(object.File{
			Name:   []byte(name),
			Meta:   meta,
			Blocks: blocks,
		})

	default:
		return object.IdentityTag{}, errs.New(errs.InvalidArgument, "unsupported file type at %s", path)
	}
}

// fsMetadataOf records the entry's modification time in both Mtime and
// Atime; the file's access time is not read.
func fsMetadataOf(info fs.FileInfo) object.FSMetadata {
	uid, gid := uint32(0), uint32(0)
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		uid, gid = st.Uid, st.Gid
	}
	return object.FSMetadata{
		Mtime: object.ClampTime(info.ModTime().Unix()),
		Atime: object.ClampTime(info.ModTime().Unix()),
		UID:   uid,
		GID:   gid,
		Mode:  uint16(info.Mode().Perm()),
	}
}
