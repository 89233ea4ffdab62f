/*
NAME
  state.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package stream

import (
	"time"

	"github.com/pkg/errors"

	"github.com/wepx/wepx/codec/wepx"
	"github.com/wepx/wepx/logging"
	"github.com/wepx/wepx/metrics"
)

// State is the per-stream, per-cycle runtime state owned exclusively by
// the worker handling one cycle (spec §3 "Cycle state", §5): it is never
// shared across goroutines or processes, and is discarded when the cycle
// completes.
//
//	Start → [receive first frame] → Initialized
//	Initialized → [frame_count % I_INTERVAL == 0, count > 0] → I-frame appended → Initialized
//	Initialized → [otherwise]        → P-frame appended → Initialized
//	Initialized → [cycle ends]       → Terminal (state discarded)
type State struct {
	ID  string // stream_id
	dir string // <out>/<model>/<ref_time_unix>

	w   *Writer
	enc *wepx.Encoder
	log logging.Logger

	meta       wepx.StreamMeta
	lastRaw    wepx.Grid
	frameCount uint64 // 1-indexed count of frames appended since (and excluding) frame 0

	// Meter, when set, receives a Sample for every frame successfully
	// appended (compressed record size vs. raw f32 raster size), for
	// the orchestrator to report compression ratio and bitrate per
	// stream.
	Meter *metrics.StreamMeter
}

// New returns a not-yet-initialized State for streamID, rooted at dir.
// The underlying stream file is created on the first call to Append.
func New(dir, streamID string, enc *wepx.Encoder, log logging.Logger) *State {
	return &State{ID: streamID, dir: dir, enc: enc, log: log}
}

// Initialized reports whether this stream has received its frame 0.
func (s *State) Initialized() bool { return s.w != nil }

// Meta returns the stream's frozen metadata. Valid only once Initialized.
func (s *State) Meta() wepx.StreamMeta { return s.meta }

// CodecError wraps a frame-encoding failure (spec's CodecArithmetic
// kind: unexpected shapes or scale underflow). It is fatal only to the
// stream it occurred on — the orchestrator abandons this stream and
// continues the cycle with its other streams.
type CodecError struct {
	StreamID string
	Err      error
}

func (e *CodecError) Error() string {
	return "stream " + e.StreamID + ": codec failure: " + e.Err.Error()
}
func (e *CodecError) Unwrap() error { return e.Err }

// WriteError wraps a filesystem failure opening or appending to a
// stream's backing file (spec's FSWrite kind). It is fatal to the whole
// cycle: the lock is released so the next tick retries from scratch.
type WriteError struct {
	StreamID string
	Err      error
}

func (e *WriteError) Error() string {
	return "stream " + e.StreamID + ": write failure: " + e.Err.Error()
}
func (e *WriteError) Unwrap() error { return e.Err }

// Append encodes and appends g as the next frame of this stream: an
// I-frame if this is frame 0 or a periodic refresh is due (spec §4.5:
// every IFrameInterval-th frame after frame 0), a P-frame otherwise.
func (s *State) Append(g wepx.Grid, validTime uint32, extent *[4]float64) error {
	if s.w == nil {
		return s.appendFirst(g, validTime, extent)
	}

	s.frameCount++
	if s.frameCount%wepx.IFrameInterval == 0 {
		return s.appendPeriodicI(g, validTime)
	}
	return s.appendP(g, validTime)
}

func (s *State) appendFirst(g wepx.Grid, validTime uint32, extent *[4]float64) error {
	w, err := Open(s.dir, s.ID, true)
	if err != nil {
		return &WriteError{StreamID: s.ID, Err: err}
	}

	rec, meta, _, err := s.enc.EncodeI(g, validTime, extent)
	if err != nil {
		w.Close()
		return &CodecError{StreamID: s.ID, Err: errors.Wrap(err, "encoding I-frame 0")}
	}
	if err := w.Append(rec); err != nil {
		w.Close()
		return &WriteError{StreamID: s.ID, Err: err}
	}

	s.w = w
	s.meta = meta
	s.lastRaw = g
	s.frameCount = 0
	s.record(len(rec), len(g.Data))
	s.log.Info("stream initialized", "stream_id", s.ID, "scale", meta.Scale, "alpha", meta.Alpha)
	return nil
}

func (s *State) appendPeriodicI(g wepx.Grid, validTime uint32) error {
	rec, _, err := s.enc.EncodeIPeriodic(g, s.meta, validTime)
	if err != nil {
		return &CodecError{StreamID: s.ID, Err: errors.Wrapf(err, "encoding periodic I-frame (count %d)", s.frameCount)}
	}
	if err := s.w.Append(rec); err != nil {
		return &WriteError{StreamID: s.ID, Err: err}
	}
	s.lastRaw = g
	s.record(len(rec), len(g.Data))
	s.log.Debug("appended periodic I-frame", "stream_id", s.ID, "frame_count", s.frameCount)
	return nil
}

func (s *State) appendP(g wepx.Grid, validTime uint32) error {
	rec, err := s.enc.EncodeP(g, s.lastRaw, s.meta, validTime)
	if err != nil {
		return &CodecError{StreamID: s.ID, Err: errors.Wrapf(err, "encoding P-frame (count %d)", s.frameCount)}
	}
	if err := s.w.Append(rec); err != nil {
		return &WriteError{StreamID: s.ID, Err: err}
	}
	s.lastRaw = g
	s.record(len(rec), len(g.Data))
	s.log.Debug("appended P-frame", "stream_id", s.ID, "frame_count", s.frameCount)
	return nil
}

// record reports a frame's compressed-vs-raw size to Meter, a no-op if
// no Meter is attached.
func (s *State) record(compressedBytes, numPixels int) {
	if s.Meter == nil {
		return
	}
	const bytesPerFloat32 = 4
	s.Meter.Record(metrics.Sample{
		CompressedBytes: compressedBytes,
		RawBytes:        numPixels * bytesPerFloat32,
		At:              time.Now(),
	})
}

// Close closes the underlying stream file, if open.
func (s *State) Close() error {
	if s.w == nil {
		return nil
	}
	return s.w.Close()
}
