// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package interop dumps decoded coldtrail objects to msgpack for
// cross-tool fixtures (other implementations verifying they decode the
// same Snapshot/Tree/File/Symlink structure coldtrail does). It is never
// used for the canonical on-disk encoding, which spec.md pins to a
// specific custom binary layout so identity tags stay stable; msgpack
// here is purely an interop/debugging convenience format.
package interop

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/coldtrail/coldtrail/object"
)

// fsMetadata mirrors object.FSMetadata with msgpack struct tags.
type fsMetadata struct {
	Mtime uint64 `msgpack:"mtime"`
	Atime uint64 `msgpack:"atime"`
	UID   uint32 `msgpack:"uid"`
	GID   uint32 `msgpack:"gid"`
	Mode  uint16 `msgpack:"mode"`
}

// dump is the on-the-wire interop shape for any of the four object kinds.
// Only the fields belonging to the kind named by Kind are set.
type dump struct {
	Kind string `msgpack:"kind"`

	CreateTime uint64 `msgpack:"create_time,omitempty"`
	Root       []byte `msgpack:"root,omitempty"`
	Parent     []byte `msgpack:"parent,omitempty"`

	Name     []byte     `msgpack:"name,omitempty"`
	Meta     fsMetadata `msgpack:"meta,omitempty"`
	Children [][]byte   `msgpack:"children,omitempty"`
	Blocks   [][]byte   `msgpack:"blocks,omitempty"`
	Target   []byte     `msgpack:"target,omitempty"`
}

// Encode renders obj as an interop msgpack fixture.
func Encode(obj object.Object) ([]byte, error) {
	var d dump
	switch v := obj.(type) {
	case object.Snapshot:
		d.Kind = "snapshot"
		d.CreateTime = v.CreateTime
		d.Root = v.Root[:]
		if v.Parent != nil {
			d.Parent = v.Parent[:]
		}
	case object.Tree:
		d.Kind = "tree"
		d.Name = v.Name
		d.Meta = fsMetadata(v.Meta)
		d.Children = tagsToBytes(v.Children)
	case object.File:
		d.Kind = "file"
		d.Name = v.Name
		d.Meta = fsMetadata(v.Meta)
		d.Blocks = tagsToBytes(v.Blocks)
	case object.Symlink:
		d.Kind = "symlink"
		d.Name = v.Name
		d.Meta = fsMetadata(v.Meta)
		d.Target = v.Target
	default:
		return nil, fmt.Errorf("interop: unsupported object type %T", obj)
	}
	return msgpack.Marshal(d)
}

// Decode parses an interop msgpack fixture back into an object.Object.
func Decode(data []byte) (object.Object, error) {
	var d dump
	if err := msgpack.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("interop: decode: %w", err)
	}

	switch d.Kind {
	case "snapshot":
		root, err := bytesToTag(d.Root)
		if err != nil {
			return nil, fmt.Errorf("interop: snapshot root: %w", err)
		}
		snap := object.Snapshot{CreateTime: d.CreateTime, Root: root}
		if len(d.Parent) > 0 {
			parent, err := bytesToTag(d.Parent)
			if err != nil {
				return nil, fmt.Errorf("interop: snapshot parent: %w", err)
			}
			snap.Parent = &parent
		}
		return snap, nil

	case "tree":
		children, err := bytesToTags(d.Children)
		if err != nil {
			return nil, fmt.Errorf("interop: tree children: %w", err)
		}
		return object.Tree{Name: d.Name, Meta: object.FSMetadata(d.Meta), Children: children}, nil

	case "file":
		blocks, err := bytesToTags(d.Blocks)
		if err != nil {
			return nil, fmt.Errorf("interop: file blocks: %w", err)
		}
		return object.File{Name: d.Name, Meta: object.FSMetadata(d.Meta), Blocks: blocks}, nil

	case "symlink":
		return object.Symlink{Name: d.Name, Meta: object.FSMetadata(d.Meta), Target: d.Target}, nil

	default:
		return nil, fmt.Errorf("interop: unknown kind %q", d.Kind)
	}
}

func tagsToBytes(tags []object.IdentityTag) [][]byte {
	out := make([][]byte, len(tags))
	for i, t := range tags {
		tag := t
		out[i] = tag[:]
	}
	return out
}

func bytesToTags(raw [][]byte) ([]object.IdentityTag, error) {
	out := make([]object.IdentityTag, len(raw))
	for i, b := range raw {
		tag, err := bytesToTag(b)
		if err != nil {
			return nil, err
		}
		out[i] = tag
	}
	return out, nil
}

func bytesToTag(b []byte) (object.IdentityTag, error) {
	var tag object.IdentityTag
	if len(b) != len(tag) {
		return tag, fmt.Errorf("expected %d bytes, got %d", len(tag), len(b))
	}
	copy(tag[:], b)
	return tag, nil
}
