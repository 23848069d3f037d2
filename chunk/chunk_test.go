// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// TestDedupScenario matches spec scenario S1: 5000 bytes of 0x01 first
// produce one 4095-byte chunk (sum 4095+1=4096 divisible by 4096) then one
// 905-byte final chunk at EOF.
func TestDedupScenario(t *testing.T) {
	input := bytes.Repeat([]byte{0x01}, 5000)
	chunks, err := All(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 4095 {
		t.Fatalf("expected first chunk length 4095, got %d", len(chunks[0]))
	}
	if len(chunks[1]) != 5000-4095 {
		t.Fatalf("expected second chunk length %d, got %d", 5000-4095, len(chunks[1]))
	}
}

func TestEmptyInput(t *testing.T) {
	chunks, err := All(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestSingleByteNoBoundary(t *testing.T) {
	chunks, err := All(bytes.NewReader([]byte{0x02}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || len(chunks[0]) != 1 {
		t.Fatalf("expected a single 1-byte chunk, got %v", chunks)
	}
}

func TestTotality(t *testing.T) {
	input := make([]byte, 50000)
	for i := range input {
		input[i] = byte(i * 7)
	}
	chunks, err := All(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	if !bytes.Equal(out, input) {
		t.Fatal("concatenated chunks do not reproduce the input")
	}
}

type errReader struct {
	data []byte
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestErrorSurfacesAndStops(t *testing.T) {
	sentinel := errors.New("boom")
	c := New(&errReader{data: []byte("partial"), err: sentinel})

	_, err := c.Next()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	// The Chunker must keep surfacing the error rather than silently
	// recovering or emitting a chunk for the partial buffer.
	_, err = c.Next()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error on second call, got %v", err)
	}
}

func TestBoundaryRule(t *testing.T) {
	// Construct an input where we know exactly where the sum crosses a
	// multiple of Divisor within the window, and verify the Chunker
	// actually breaks there and resets to InitialSum afterward.
	input := bytes.Repeat([]byte{0x01}, Divisor-InitialSum) // sum = Divisor after last byte
	input = append(input, 0x05, 0x06, 0x07)

	c := New(bytes.NewReader(input))
	first, err := c.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != Divisor-InitialSum {
		t.Fatalf("expected boundary at %d bytes, got %d", Divisor-InitialSum, len(first))
	}

	rest, err := c.Next()
	if err != io.EOF && err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(rest, []byte{0x05, 0x06, 0x07}) {
		t.Fatalf("unexpected remainder: %v", rest)
	}
}
