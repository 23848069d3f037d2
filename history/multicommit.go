// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"github.com/coldtrail/coldtrail/object"
	"github.com/coldtrail/coldtrail/store"
)

// GroupTarget names one member of a target group: a destination backend
// reachable under Name, for reporting purposes only (coldtrail doesn't
// schedule or rank targets by reliability or cost itself).
type GroupTarget struct {
	Name    string
	Backend store.Backend
}

// CommitResult is one target's outcome from MultiCommit.
type CommitResult struct {
	Name string
	Tag  object.IdentityTag
	Err  error
}

// MultiCommit stores paths and commits the resulting Snapshot independently
// against every target in the group, sequentially. Each target keeps its
// own snapshot chain (head, parent pointers); content-addressing guarantees
// that storing identical file content against two destinations yields
// identical block and tree tags, so the committed Snapshots' Root fields
// agree across targets even though each target wrote them independently.
//
// A failure on one target is reported in its CommitResult and does not
// prevent MultiCommit from attempting the remaining targets or roll back
// targets that already succeeded.
func MultiCommit(targets []GroupTarget, paths []string, createTime uint64) []CommitResult {
	results := make([]CommitResult, 0, len(targets))
	for _, t := range targets {
		tag, err := New(t.Backend).Commit(paths, createTime)
		results = append(results, CommitResult{Name: t.Name, Tag: tag, Err: err})
	}
	return results
}
