// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/coldtrail/coldtrail/errs"
)

// Encode produces the canonical little-endian binary encoding of o. The
// object's IdentityTag is the SHA-256 of this encoding (computed by callers
// via Hash, not by Encode itself, since blocks share the same Hash helper
// without ever being "encoded").
func Encode(o Object) []byte {
	buf := &bytes.Buffer{}
	switch v := o.(type) {
	case Snapshot:
		buf.WriteByte(byte(KindSnapshot))
		_ = binary.Write(buf, binary.LittleEndian, v.CreateTime)
		buf.Write(v.Root[:])
		if v.Parent != nil {
			buf.WriteByte(1)
			buf.Write(v.Parent[:])
		} else {
			buf.WriteByte(0)
		}
	case Tree:
		buf.WriteByte(byte(KindTree))
		writeName(buf, v.Name)
		writeFSMetadata(buf, v.Meta)
		_ = binary.Write(buf, binary.LittleEndian, uint32(len(v.Children)))
		for _, c := range v.Children {
			buf.Write(c[:])
		}
	case Symlink:
		buf.WriteByte(byte(KindSymlink))
		writeName(buf, v.Name)
		writeFSMetadata(buf, v.Meta)
		_ = binary.Write(buf, binary.LittleEndian, uint32(len(v.Target)))
		buf.Write(v.Target)
	case File:
		buf.WriteByte(byte(KindFile))
		writeName(buf, v.Name)
		writeFSMetadata(buf, v.Meta)
		_ = binary.Write(buf, binary.LittleEndian, uint32(len(v.Blocks)))
		for _, b := range v.Blocks {
			buf.Write(b[:])
		}
	default:
		panic(fmt.Sprintf("object: unencodable type %T", o))
	}
	return buf.Bytes()
}

// IdentityOf returns the canonical identity tag of o: SHA-256 of its
// canonical encoding.
func IdentityOf(o Object) IdentityTag {
	return Hash(Encode(o))
}

func writeName(buf *bytes.Buffer, name []byte) {
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(name)))
	buf.Write(name)
}

func writeFSMetadata(buf *bytes.Buffer, m FSMetadata) {
	_ = binary.Write(buf, binary.LittleEndian, m.Mtime)
	_ = binary.Write(buf, binary.LittleEndian, m.Atime)
	_ = binary.Write(buf, binary.LittleEndian, m.UID)
	_ = binary.Write(buf, binary.LittleEndian, m.GID)
	_ = binary.Write(buf, binary.LittleEndian, m.Mode)
}

// Decode parses the canonical binary encoding produced by Encode. Unknown
// type bytes and truncated streams are reported as WrongFormat /
// IntegrityError respectively.
func Decode(data []byte) (Object, error) {
	r := bytes.NewReader(data)

	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, errs.Wrap(errs.IntegrityError, err, "decode object: empty stream")
	}

	switch Kind(kindByte) {
	case KindSnapshot:
		var createTime uint64
		if err := binary.Read(r, binary.LittleEndian, &createTime); err != nil {
			return nil, truncated(err)
		}
		var root IdentityTag
		if _, err := io.ReadFull(r, root[:]); err != nil {
			return nil, truncated(err)
		}
		hasParent, err := r.ReadByte()
		if err != nil {
			return nil, truncated(err)
		}
		var parent *IdentityTag
		if hasParent != 0 {
			var p IdentityTag
			if _, err := io.ReadFull(r, p[:]); err != nil {
				return nil, truncated(err)
			}
			parent = &p
		}
		return Snapshot{CreateTime: createTime, Root: root, Parent: parent}, nil

	case KindTree:
		name, err := readName(r)
		if err != nil {
			return nil, err
		}
		meta, err := readFSMetadata(r)
		if err != nil {
			return nil, err
		}
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, truncated(err)
		}
		var children []IdentityTag
		if n > 0 {
			children = make([]IdentityTag, n)
		}
		for i := range children {
			if _, err := io.ReadFull(r, children[i][:]); err != nil {
				return nil, truncated(err)
			}
		}
		return Tree{Name: name, Meta: meta, Children: children}, nil

	case KindSymlink:
		name, err := readName(r)
		if err != nil {
			return nil, err
		}
		meta, err := readFSMetadata(r)
		if err != nil {
			return nil, err
		}
		var tgtLen uint32
		if err := binary.Read(r, binary.LittleEndian, &tgtLen); err != nil {
			return nil, truncated(err)
		}
		target := make([]byte, tgtLen)
		if _, err := io.ReadFull(r, target); err != nil {
			return nil, truncated(err)
		}
		return Symlink{Name: name, Meta: meta, Target: target}, nil

	case KindFile:
		name, err := readName(r)
		if err != nil {
			return nil, err
		}
		meta, err := readFSMetadata(r)
		if err != nil {
			return nil, err
		}
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, truncated(err)
		}
		var blocks []IdentityTag
		if n > 0 {
			blocks = make([]IdentityTag, n)
		}
		for i := range blocks {
			if _, err := io.ReadFull(r, blocks[i][:]); err != nil {
				return nil, truncated(err)
			}
		}
		return File{Name: name, Meta: meta, Blocks: blocks}, nil

	default:
		return nil, errs.New(errs.WrongFormat, "decode object: unknown type byte 0x%02x", kindByte)
	}
}

func readName(r *bytes.Reader) ([]byte, error) {
	var l uint16
	if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
		return nil, truncated(err)
	}
	name := make([]byte, l)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, truncated(err)
	}
	return name, nil
}

func readFSMetadata(r *bytes.Reader) (FSMetadata, error) {
	var m FSMetadata
	if err := binary.Read(r, binary.LittleEndian, &m.Mtime); err != nil {
		return m, truncated(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.Atime); err != nil {
		return m, truncated(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.UID); err != nil {
		return m, truncated(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.GID); err != nil {
		return m, truncated(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.Mode); err != nil {
		return m, truncated(err)
	}
	return m, nil
}

func truncated(err error) error {
	return errs.Wrap(errs.IntegrityError, err, "decode object: truncated stream")
}

// ClampTime clamps a time before the Unix epoch to 0, per the canonical
// encoding's rule for FSMetadata and Snapshot.CreateTime.
func ClampTime(unixSeconds int64) uint64 {
	if unixSeconds < 0 {
		return 0
	}
	return uint64(unixSeconds)
}
