// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import "log/slog"

// Option configures the optional, cross-cutting behavior shared by this
// package's long-lived components (FilesystemBackend, EncryptionAdapter).
type Option func(*options)

type options struct {
	logger *slog.Logger
}

func defaultOptions() *options {
	return &options{logger: slog.Default()}
}

// WithLogger overrides the structured logger used to report lock contention
// and decrypt failures. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
