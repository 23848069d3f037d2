// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package history implements the snapshot chain: integrity checking, path
// resolution inside a snapshot, storing new filesystem content, the
// skeleton/incremental tree-rebuild algorithm used to record a new
// snapshot, commit, and restore.
//
// Following spec.md §9's re-architecture guidance, there is no
// ownership-bundling wrapper pairing a backend with a decoded object:
// Engine carries the backend, and every navigation method takes or returns
// plain object.Object values.
package history

import (
	"log/slog"

	"github.com/coldtrail/coldtrail/store"
)

// maxTraversalDepth bounds recursive descent through Trees by path-component
// count rather than by recursion count over tags. Tree DAGs can't cycle by
// construction (children are keyed by content hash), but a malformed or
// adversarial remote could return forged tags that do cycle; this bound
// turns that into an IntegrityError instead of unbounded recursion.
const maxTraversalDepth = 4096

// Option configures an Engine's optional, cross-cutting behavior.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

func defaultOptions() *options {
	return &options{logger: slog.Default()}
}

// WithLogger overrides the structured logger used to report integrity-check
// and snapshot-commit progress. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Engine runs the history algorithms against a single destination Backend
// for a single node.
type Engine struct {
	backend store.Backend
	logger  *slog.Logger
}

// New wraps backend in a history Engine.
func New(backend store.Backend, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Engine{backend: backend, logger: o.logger}
}
