// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"time"

	"github.com/coldtrail/coldtrail/errs"
	"github.com/coldtrail/coldtrail/object"
)

// IntegrityTestMode gates how deep an integrity check looks: whether block
// bytes are fetched at all, and whether fetched bytes are rehashed and
// compared against their tag.
type IntegrityTestMode int

const (
	Quick IntegrityTestMode = iota
	Normal
	Slow
	Exhaustive
)

func (m IntegrityTestMode) checkBlocks() bool { return m >= Slow }
func (m IntegrityTestMode) checkHashes() bool { return m == Exhaustive }

// Check walks the snapshot chain from the head, following parent pointers,
// recursively verifying every reachable Tree/File/Symlink. It returns false
// on the first structural or (depending on mode) content failure; any
// backend error is returned as an error, never folded into a false result.
func (e *Engine) Check(mode IntegrityTestMode) (ok bool, err error) {
	start := time.Now()
	count := 0
	defer func() {
		e.logger.Info("coldtrail: integrity check complete",
			"mode", int(mode), "objects", count, "ok", ok, "duration", time.Since(start))
	}()

	head, err := e.backend.GetHead()
	if err != nil {
		return false, err
	}
	if head == nil {
		return true, nil
	}

	snap := head
	for {
		good, err := e.checkTree(mode, snap.Root, maxTraversalDepth, &count)
		if err != nil {
			return false, err
		}
		if !good {
			return false, nil
		}

		if snap.Parent == nil {
			return true, nil
		}
		obj, err := e.backend.ReadMeta(*snap.Parent)
		if err != nil {
			return false, err
		}
		parent, pok := obj.(object.Snapshot)
		if !pok {
			return false, nil
		}
		count++
		snap = &parent
	}
}

func (e *Engine) checkTree(mode IntegrityTestMode, tag object.IdentityTag, depth int, count *int) (bool, error) {
	if depth <= 0 {
		return false, errs.New(errs.IntegrityError, "tree traversal exceeded maximum depth")
	}

	obj, err := e.backend.ReadMeta(tag)
	if err != nil {
		return false, err
	}
	*count++
	tree, ok := obj.(object.Tree)
	if !ok {
		return false, nil
	}

	for _, child := range tree.Children {
		ok, err := e.checkFile(mode, child, depth-1, count)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) checkFile(mode IntegrityTestMode, tag object.IdentityTag, depth int, count *int) (bool, error) {
	obj, err := e.backend.ReadMeta(tag)
	if err != nil {
		return false, err
	}
	*count++

	switch v := obj.(type) {
	case object.File:
		for _, blk := range v.Blocks {
			ok, err := e.checkBlock(mode, blk, count)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case object.Symlink:
		return true, nil
	case object.Tree:
		return e.checkTree(mode, tag, depth, count)
	default:
		return false, nil
	}
}

func (e *Engine) checkBlock(mode IntegrityTestMode, tag object.IdentityTag, count *int) (bool, error) {
	if !mode.checkBlocks() {
		return true, nil
	}

	data, err := e.backend.ReadBlock(tag)
	if err != nil {
		return false, err
	}
	*count++

	if mode.checkHashes() {
		if object.Hash(data) != tag {
			return false, nil
		}
	}
	return true, nil
}
