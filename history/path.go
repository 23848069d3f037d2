// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"path/filepath"
	"strings"

	"github.com/coldtrail/coldtrail/errs"
)

// canonicalComponents splits an absolute path into its non-root components,
// rejecting current-dir/parent-dir components as a precondition violation
// per spec.md §4.5.2. "/" itself yields an empty slice.
func canonicalComponents(p string) ([]string, error) {
	for _, part := range strings.Split(p, string(filepath.Separator)) {
		if part == "." || part == ".." {
			return nil, errs.New(errs.InvalidArgument, "path %q is not canonical", p)
		}
	}
	clean := filepath.Clean(p)
	if !filepath.IsAbs(clean) {
		return nil, errs.New(errs.InvalidArgument, "path %q is not absolute", p)
	}
	if clean == string(filepath.Separator) {
		return nil, nil
	}

	trimmed := strings.TrimPrefix(clean, string(filepath.Separator))
	return strings.Split(trimmed, string(filepath.Separator)), nil
}

// isUnder reports whether child is components equal to or nested under
// parent.
func isUnder(parent, child []string) bool {
	if len(child) < len(parent) {
		return false
	}
	for i, c := range parent {
		if child[i] != c {
			return false
		}
	}
	return true
}

// joinPath renders canonical components back into a slash-separated
// absolute path string, for use as a map/lookup key.
func joinPath(parts []string) string {
	return "/" + strings.Join(parts, "/")
}
