// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"path/filepath"

	"github.com/nightlyone/lockfile"

	"github.com/coldtrail/coldtrail/errs"
)

// destLock guards bkp.lock at a destination's root. It is held across head
// reads/writes and across initialization; content-addressed writes to
// metadata/ and blocks/ don't need it, since they are idempotent and keyed
// by content.
type destLock struct {
	lf lockfile.Lockfile
}

func newDestLock(root string) (*destLock, error) {
	lf, err := lockfile.New(filepath.Join(root, "bkp.lock"))
	if err != nil {
		return nil, errs.Wrap(errs.BackendError, err, "construct lockfile")
	}
	return &destLock{lf: lf}, nil
}

// acquire makes a single O_CREAT|O_EXCL-style attempt to take the lock.
// There is no implicit wait or retry: a contended lock fails immediately
// with LockContention.
func (d *destLock) acquire() error {
	if err := d.lf.TryLock(); err != nil {
		return errs.Wrap(errs.LockContention, err, "acquire bkp.lock")
	}
	return nil
}

func (d *destLock) release() error {
	if err := d.lf.Unlock(); err != nil {
		return errs.Wrap(errs.BackendError, err, "release bkp.lock")
	}
	return nil
}

// withLock acquires the destination lock, runs fn, and releases it
// regardless of fn's outcome.
func (d *destLock) withLock(fn func() error) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.release()
	return fn()
}
