// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"path/filepath"
	"sort"

	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/object"
)

// pathUpdate is a freshly-stored object together with the canonical path it
// was stored at.
type pathUpdate struct {
	parts []string
	tag   object.IdentityTag
}

// UpdatePaths stores fresh copies of each given filesystem path and
// rebuilds the snapshot's root Tree so that those paths point at the new
// copies while everything else is reused unchanged. It returns the new
// root Tree's tag; the caller commits it via NewSnapshot.
func (e *Engine) UpdatePaths(paths []string) (object.IdentityTag, error) {
	canon := make([][]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return object.IdentityTag{}, errs.Wrap(errs.InvalidArgument, err, "resolve %s", p)
		}
		parts, err := canonicalComponents(abs)
		if err != nil {
			return object.IdentityTag{}, err
		}
		canon = append(canon, parts)
	}

	// Shallowest first, so a parent is visited (and potentially pruned)
	// before any of its descendants.
	sort.Slice(canon, func(i, j int) bool { return len(canon[i]) < len(canon[j]) })

	var retained [][]string
	for _, parts := range canon {
		redundant := false
		for _, kept := range retained {
			if isUnder(kept, parts) {
				redundant = true
				break
			}
		}
		if !redundant {
			retained = append(retained, parts)
		}
	}

	updates := make([]pathUpdate, 0, len(retained))
	for _, parts := range retained {
		tag, err := e.storePath(joinPath(parts))
		if err != nil {
			return object.IdentityTag{}, err
		}
		updates = append(updates, pathUpdate{parts: parts, tag: tag})
	}

	return e.updateTree(nil, updates, maxTraversalDepth)
}

// updateTree rebuilds the Tree rooted at nodePath, reusing the prior
// snapshot's subtrees wherever nothing beneath nodePath changed.
func (e *Engine) updateTree(nodePath []string, updates []pathUpdate, depth int) (object.IdentityTag, error) {
	if depth <= 0 {
		return object.IdentityTag{}, errs.New(errs.IntegrityError, "tree rebuild exceeded maximum depth")
	}

	for _, u := range updates {
		if equalParts(u.parts, nodePath) {
			return u.tag, nil
		}
	}

	old, found, err := e.GetPath(joinPath(nodePath))
	if err != nil {
		return object.IdentityTag{}, err
	}
	if !found {
		return e.buildTreeSkeleton(nodePath, updates, depth-1)
	}

	anyBelow := false
	for _, u := range updates {
		if isUnder(nodePath, u.parts) {
			anyBelow = true
			break
		}
	}
	if !anyBelow {
		return object.IdentityOf(old), nil
	}

	tree, ok := old.(object.Tree)
	if !ok {
		return object.IdentityTag{}, errs.New(errs.IntegrityError, "update path %q is not a Tree", joinPath(nodePath))
	}

	newChildren := make([]object.IdentityTag, 0, len(tree.Children))
	existing := map[string]bool{}
	for _, childTag := range tree.Children {
		childObj, err := e.backend.ReadMeta(childTag)
		if err != nil {
			return object.IdentityTag{}, err
		}
		name := object.Name(childObj)
		if name == nil {
			return object.IdentityTag{}, errs.New(errs.IntegrityError, "tree child resolves to an object with no name")
		}
		existing[string(name)] = true
		childPath := append(append([]string{}, nodePath...), string(name))
		newTag, err := e.updateTree(childPath, updates, depth-1)
		if err != nil {
			return object.IdentityTag{}, err
		}
		newChildren = append(newChildren, newTag)
	}

	// Updated paths whose next component isn't an existing child are new
	// entries under this Tree; they are appended after the existing children.
	for _, u := range updates {
		if len(u.parts) <= len(nodePath) || !isUnder(nodePath, u.parts) || existing[u.parts[len(nodePath)]] {
			continue
		}
		part := u.parts[len(nodePath)]
		existing[part] = true
		newTag, err := e.updateTree(append(append([]string{}, nodePath...), part), updates, depth-1)
		if err != nil {
			return object.IdentityTag{}, err
		}
		newChildren = append(newChildren, newTag)
	}

	return e.backend.WriteMeta(object.Tree{
		Name:     tree.Name,
		Meta:     tree.Meta,
		Children: newChildren,
	})
}

// buildTreeSkeleton constructs the intermediary directories that didn't
// exist before the update, so a brand-new deep path has somewhere to live.
func (e *Engine) buildTreeSkeleton(root []string, updates []pathUpdate, depth int) (object.IdentityTag, error) {
	if depth <= 0 {
		return object.IdentityTag{}, errs.New(errs.IntegrityError, "tree rebuild exceeded maximum depth")
	}

	// Group updates rooted at this path by their next path component, so
	// siblings under an as-yet-uncreated directory are only recursed into
	// once each.
	nextComponent := map[string]bool{}
	var children []object.IdentityTag
	for _, u := range updates {
		if !isUnder(root, u.parts) {
			continue
		}
		if len(u.parts) == len(root) {
			// root itself is one of the updated paths; it was already
			// handled by the exact-match branch of updateTree.
			continue
		}
		if len(u.parts) == len(root)+1 {
			children = append(children, u.tag)
			continue
		}
		part := u.parts[len(root)]
		if nextComponent[part] {
			continue
		}
		nextComponent[part] = true

		childPath := append(append([]string{}, root...), part)
		childTag, err := e.updateTree(childPath, updates, depth-1)
		if err != nil {
			return object.IdentityTag{}, err
		}
		children = append(children, childTag)
	}

	name := ""
	if len(root) > 0 {
		name = root[len(root)-1]
	}

	return e.backend.WriteMeta(object.Tree{
		Name:     []byte(name),
		Meta:     object.DefaultFSMetadata(0),
		Children: children,
	})
}

func equalParts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
