// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coldtrail/coldtrail/object"
)

func TestStorePathRegularFile(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello, world"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tag, err := e.storePath(path)
	if err != nil {
		t.Fatalf("storePath: %v", err)
	}

	obj, err := e.backend.ReadMeta(tag)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	file, ok := obj.(object.File)
	if !ok {
		t.Fatalf("expected a File, got %#v", obj)
	}
	if string(file.Name) != "hello.txt" {
		t.Fatalf("unexpected name %q", file.Name)
	}
	if len(file.Blocks) == 0 {
		t.Fatal("expected at least one block")
	}

	var content []byte
	for _, blk := range file.Blocks {
		data, err := e.backend.ReadBlock(blk)
		if err != nil {
			t.Fatalf("ReadBlock: %v", err)
		}
		content = append(content, data...)
	}
	if string(content) != "hello, world" {
		t.Fatalf("reassembled content = %q, want %q", content, "hello, world")
	}
}

func TestStorePathDirectoryIsReproducible(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	tag1, err := e.storePath(dir)
	if err != nil {
		t.Fatalf("storePath: %v", err)
	}
	tag2, err := e.storePath(dir)
	if err != nil {
		t.Fatalf("storePath (second pass): %v", err)
	}
	if tag1 != tag2 {
		t.Fatal("storing the same directory twice must yield the same tag regardless of readdir order")
	}

	obj, err := e.backend.ReadMeta(tag1)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	tree, ok := obj.(object.Tree)
	if !ok {
		t.Fatalf("expected a Tree, got %#v", obj)
	}
	if len(tree.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(tree.Children))
	}
}

func TestStorePathSymlink(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	tag, err := e.storePath(link)
	if err != nil {
		t.Fatalf("storePath: %v", err)
	}
	obj, err := e.backend.ReadMeta(tag)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	sym, ok := obj.(object.Symlink)
	if !ok {
		t.Fatalf("expected a Symlink, got %#v", obj)
	}
	if string(sym.Target) != target {
		t.Fatalf("unexpected symlink target %q", sym.Target)
	}
}
