// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"encoding/hex"

	"github.com/coldtrail/coldtrail/object"
)

// NewSnapshot writes a Snapshot over root, chaining it to the current head
// (if any) as its parent, and commits it by advancing the head pointer.
// The head update happens under the destination's exclusive lock, inside
// Backend.SetHead.
func (e *Engine) NewSnapshot(root object.IdentityTag, createTime uint64) (object.IdentityTag, error) {
	head, err := e.backend.GetHead()
	if err != nil {
		return object.IdentityTag{}, err
	}

	var parent *object.IdentityTag
	if head != nil {
		parentTag := object.IdentityOf(*head)
		parent = &parentTag
	}

	tag, err := e.backend.WriteMeta(object.Snapshot{
		CreateTime: createTime,
		Root:       root,
		Parent:     parent,
	})
	if err != nil {
		return object.IdentityTag{}, err
	}

	if err := e.backend.SetHead(tag); err != nil {
		return object.IdentityTag{}, err
	}

	logArgs := []any{"tag", hex.EncodeToString(tag[:]), "create_time", createTime}
	if parent != nil {
		logArgs = append(logArgs, "parent", hex.EncodeToString(parent[:]))
	}
	e.logger.Info("coldtrail: snapshot committed", logArgs...)
	return tag, nil
}

// Commit is the common case: update the given filesystem paths and commit
// the resulting root as a new Snapshot in one call.
func (e *Engine) Commit(paths []string, createTime uint64) (object.IdentityTag, error) {
	root, err := e.UpdatePaths(paths)
	if err != nil {
		return object.IdentityTag{}, err
	}
	return e.NewSnapshot(root, createTime)
}
