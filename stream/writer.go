/*
NAME
  writer.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package stream implements the append-only .wepx stream file writer and
// the per-stream, per-cycle runtime state (frame counting, I/P-frame
// scheduling) that sits above the frame codec.
package stream

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Writer appends records to a single .wepx file, creating parent
// directories as needed. A Writer is intended for use by exactly one
// cycle worker for exactly one stream file (spec §4.2, §5): concurrent
// use from multiple goroutines on the same *Writer is not supported.
type Writer struct {
	path string
	f    *os.File
}

// Open prepares dir/streamID+".wepx" for appending. If fresh is true
// (this is the stream's frame 0), any existing file at that path is
// removed first, matching spec §4.2: "Deletes existing file only at
// I-frame-0 initialization of a fresh stream."
func Open(dir, streamID string, fresh bool) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "stream: creating directory %s", dir)
	}
	path := filepath.Join(dir, streamID+".wepx")

	if fresh {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stream: removing stale stream file %s", path)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "stream: opening %s", path)
	}
	return &Writer{path: path, f: f}, nil
}

// Path returns the stream file's path.
func (w *Writer) Path() string { return w.path }

// Append writes one fully-assembled record (as returned by
// wepx.MarshalRecord) to the stream file. The write is performed as a
// single os.File.Write call so that, combined with O_APPEND, the record
// is never interleaved with a write from another process.
func (w *Writer) Append(record []byte) error {
	n, err := w.f.Write(record)
	if err != nil {
		return errors.Wrapf(err, "stream: appending to %s", w.path)
	}
	if n != len(record) {
		return fmt.Errorf("stream: short write to %s (%d of %d bytes)", w.path, n, len(record))
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}
