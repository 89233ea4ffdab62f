/*
NAME
  tailserver.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package tailserver streams newly appended .wepx records to clients as
// they are written (spec §4.6). A client binds to a stream path; the
// server maps it to a file under root, tails that file from the
// beginning, and forwards each complete record with a small framing
// prefix identifying which stream it belongs to.
package tailserver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/wepx/wepx/codec/wepx"
	"github.com/wepx/wepx/logging"
)

// pollInterval is how long the tailer sleeps after an iteration that
// sent no new frames, matching the spec's "sleep briefly (~100ms)".
const pollInterval = 100 * time.Millisecond

// streamIDSentinel is the stream_id byte in the <stream_id: u8 =
// 0x00><frame_type: u8> prefix sent ahead of every record's raw payload
// bytes. It is a fixed sentinel rather than a per-connection index: one
// connection always tails exactly one stream, so the byte exists to
// give clients a stable framing marker rather than to multiplex.
const streamIDSentinel = 0x00

// Tail streams records appended to the file at path (relative to root,
// spec layout <root>/<model>/<ref_time>/<stream_id>.wepx) to w, starting
// from the beginning of the file and continuing until ctx is canceled
// or the client disconnects (a write to w returns an error).
//
// Tail uses fsnotify to wake promptly on file creation (the file may
// not exist yet when the client connects) and otherwise polls for new
// record boundaries, since fsnotify's write events do not guarantee a
// full record has landed.
func Tail(ctx context.Context, root, relPath string, w io.Writer, log logging.Logger) error {
	fullPath := filepath.Join(root, relPath)

	f, err := awaitFile(ctx, fullPath, log)
	if err != nil {
		return err
	}
	defer f.Close()

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		sentAny, err := drainRecords(f, &offset, w)
		if err != nil {
			return err
		}
		if !sentAny {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
		}
	}
}

// drainRecords reads every complete record currently available in f
// starting at *offset, writes each to w with its framing prefix, and
// advances *offset past them. On a short header or short payload (the
// writer is mid-append) it seeks back to *offset and returns normally,
// to be retried on the next iteration.
func drainRecords(f *os.File, offset *int64, w io.Writer) (bool, error) {
	sentAny := false
	for {
		if _, err := f.Seek(*offset, io.SeekStart); err != nil {
			return sentAny, err
		}

		frameType, payload, err := wepx.ReadRecord(f)
		switch {
		case err == nil:
			if err := writeFramed(w, frameType, payload); err != nil {
				return sentAny, err
			}
			*offset += int64(wepx.HeaderSize + len(payload))
			sentAny = true
		case err == io.EOF || err == wepx.ErrShortRead:
			return sentAny, nil
		default:
			return sentAny, err
		}
	}
}

func writeFramed(w io.Writer, frameType byte, payload []byte) error {
	prefix := [2]byte{streamIDSentinel, frameType}
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// awaitFile blocks until fullPath exists, using fsnotify to watch its
// parent directory for creation events and falling back to a slow poll
// in case the watch is established after the file already landed or
// fsnotify is unavailable on this platform.
func awaitFile(ctx context.Context, fullPath string, log logging.Logger) (*os.File, error) {
	if f, err := os.Open(fullPath); err == nil {
		return f, nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "tailserver: opening %s", fullPath)
	}

	dir := filepath.Dir(fullPath)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warning("fsnotify unavailable, falling back to polling", "error", err.Error())
		return pollForFile(ctx, fullPath)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		log.Debug("watching parent directory failed, falling back to polling", "dir", dir, "error", err.Error())
		return pollForFile(ctx, fullPath)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, errors.New("tailserver: canceled while waiting for file")
		case ev, ok := <-watcher.Events:
			if !ok {
				return pollForFile(ctx, fullPath)
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && ev.Name == fullPath {
				if f, err := os.Open(fullPath); err == nil {
					return f, nil
				}
			}
		case <-time.After(5 * time.Second):
			if f, err := os.Open(fullPath); err == nil {
				return f, nil
			}
		}
	}
}

func pollForFile(ctx context.Context, fullPath string) (*os.File, error) {
	for {
		if f, err := os.Open(fullPath); err == nil {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.New("tailserver: canceled while waiting for file")
		case <-time.After(pollInterval):
		}
	}
}
