// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package chunk implements coldtrail's content-defined chunking algorithm.
//
// A Chunker turns a byte stream into a lazy, finite sequence of variable-size
// plaintext chunks. Boundaries are placed by a simple rolling checksum so
// that local edits to a file only disturb the chunks around the edit,
// keeping deduplication effective across versions of the same file.
//
// The window size, divisor, and initial sum below are part of the on-disk
// dedup contract: changing any of them changes which boundaries are chosen
// for the same input, and therefore breaks deduplication against data
// chunked under the old constants.
package chunk

import "io"

const (
	// Window is the width of the rolling sum in bytes.
	Window = 8196

	// Divisor is the modulus a boundary must hit.
	Divisor = 4096

	// InitialSum is the rolling sum's value at the start of every chunk.
	InitialSum = 1
)

// Chunker streams a byte source into chunks. It is not safe for concurrent
// use; streaming is sequential by contract (see spec §5).
type Chunker struct {
	r   io.Reader
	buf []byte
	sum uint32

	err  error
	done bool
}

// New wraps r in a Chunker. Errors encountered while reading are surfaced by
// Next and stop the sequence; there is no retry.
func New(r io.Reader) *Chunker {
	return &Chunker{r: r, sum: InitialSum}
}

// Next returns the next chunk, or (nil, io.EOF) once the stream is
// exhausted (including the final short chunk, if any, having already been
// returned). Any other non-nil error is a read failure from the underlying
// source and is terminal: the Chunker should not be used again.
func (c *Chunker) Next() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, io.EOF
	}

	one := make([]byte, 1)
	for {
		n, err := c.r.Read(one)
		if n == 1 {
			b := one[0]
			c.buf = append(c.buf, b)
			c.sum += uint32(b)

			if len(c.buf) >= Window {
				old := c.buf[len(c.buf)-Window]
				c.sum -= uint32(old)
			}

			if c.sum%Divisor == 0 {
				c.sum = InitialSum
				out := c.buf
				c.buf = nil
				return out, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				c.done = true
				if len(c.buf) > 0 {
					out := c.buf
					c.buf = nil
					return out, nil
				}
				return nil, io.EOF
			}
			c.err = err
			return nil, err
		}
	}
}

// All drains the Chunker into a slice of chunks. Convenience wrapper around
// Next for callers that don't need to stream (e.g. tests, small files).
func All(r io.Reader) ([][]byte, error) {
	c := New(r)
	var chunks [][]byte
	for {
		b, err := c.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, b)
	}
}
