// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/object"
	"github.com/coldtrail/coldtrail/store"
)

// Snapshot returns the current head Snapshot, or (nil, nil) if the node has
// no head yet.
func (e *Engine) Snapshot() (*object.Snapshot, error) {
	return e.backend.GetHead()
}

// GetPath resolves path against the current snapshot's root Tree,
// descending one path component at a time. found is false when the path
// doesn't exist (including when there is no snapshot at all); it is never
// combined with a non-nil error.
func (e *Engine) GetPath(path string) (obj object.Object, found bool, err error) {
	parts, err := canonicalComponents(path)
	if err != nil {
		return nil, false, err
	}

	snap, err := e.backend.GetHead()
	if err != nil {
		return nil, false, err
	}
	if snap == nil {
		return nil, false, nil
	}

	current := snap.Root
	for _, part := range parts {
		node, err := e.backend.ReadMeta(current)
		if err != nil {
			return nil, false, err
		}
		tree, ok := node.(object.Tree)
		if !ok {
			return nil, false, errs.New(errs.IntegrityError, "path component %q is not inside a Tree", part)
		}

		next, ok, err := findChild(e.backend, tree, part)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		current = next
	}

	obj, err = e.backend.ReadMeta(current)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// findChild locates the child of tree named name, returning its tag.
func findChild(backend store.Backend, tree object.Tree, name string) (object.IdentityTag, bool, error) {
	for _, childTag := range tree.Children {
		child, err := backend.ReadMeta(childTag)
		if err != nil {
			return object.IdentityTag{}, false, err
		}
		switch c := child.(type) {
		case object.Tree:
			if string(c.Name) == name {
				return childTag, true, nil
			}
		case object.File:
			if string(c.Name) == name {
				return childTag, true, nil
			}
		case object.Symlink:
			if string(c.Name) == name {
				return childTag, true, nil
			}
		default:
			return object.IdentityTag{}, false, errs.New(errs.IntegrityError, "unexpected object kind as tree child")
		}
	}
	return object.IdentityTag{}, false, nil
}
