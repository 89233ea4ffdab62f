/*
NAME
  lock.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package orchestrator drives one forecast cycle end to end: acquiring
// its idempotency lock, downloading and decoding each URL, matching
// bands to configured variables, and appending frames to each
// variable's stream (spec §4.5). The lock file is the sole
// coordination primitive between concurrent workers; everything else a
// cycle touches is worker-local.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Lock is a held idempotency lock for one (model, cycle) pair.
type Lock struct {
	path string
}

// lockPath is <lockdir>/<model_id>_<YYYYMMDD>_<HH>.lock.
func lockPath(lockDir, modelID string, cycleTime time.Time) string {
	name := fmt.Sprintf("%s_%s_%02d.lock", modelID, cycleTime.Format("20060102"), cycleTime.Hour())
	return filepath.Join(lockDir, name)
}

// ErrLockHeld is returned by AcquireLock when another worker already
// holds the lock for this (model, cycle).
var ErrLockHeld = errors.New("orchestrator: lock already held")

// AcquireLock attempts to create the lock file for (modelID, cycleTime)
// using O_CREATE|O_EXCL for race-free creation across processes. Returns
// ErrLockHeld if the lock already exists.
func AcquireLock(lockDir, modelID string, cycleTime time.Time) (*Lock, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "orchestrator: creating lock directory")
	}

	path := lockPath(lockDir, modelID, cycleTime)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLockHeld
		}
		return nil, errors.Wrapf(err, "orchestrator: creating lock %s", path)
	}
	defer f.Close()

	fmt.Fprintln(f, time.Now().UTC().Format(time.RFC3339))
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "orchestrator: releasing lock %s", l.path)
	}
	return nil
}

// CleanStaleLocks removes lock files in lockDir older than maxAge. Meant
// to be called once at startup to recover from a worker that crashed
// without releasing its lock.
func CleanStaleLocks(lockDir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(lockDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "orchestrator: reading lock directory %s", lockDir)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lock" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(lockDir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
