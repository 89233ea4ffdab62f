/*
NAME
  encoder.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package wepx

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/wepx/wepx/logging"
)

// Grid is a 2D row-major raster of 32-bit floats with NaN marking
// no-data pixels.
type Grid struct {
	Width, Height int
	Data          []float32 // len(Data) == Width*Height
}

// Encoder turns Grids into .wepx frame records for one stream.
type Encoder struct {
	log logging.Logger
}

// NewEncoder returns an Encoder that logs through log.
func NewEncoder(log logging.Logger) *Encoder {
	return &Encoder{log: log}
}

// EncodeI produces the stream's first frame: a self-contained I-frame
// carrying the stream metadata chosen from g's value range, frozen for
// the lifetime of the stream. It returns the assembled record bytes, the
// frozen metadata, and the quantized (pre-diff) grid so the caller can
// retain it as encoder-side decode state if desired.
func (e *Encoder) EncodeI(g Grid, validTime uint32, extent *[4]float64) ([]byte, StreamMeta, []int32, error) {
	if len(g.Data) != g.Width*g.Height {
		return nil, StreamMeta{}, nil, fmt.Errorf("wepx: grid data length %d does not match %dx%d", len(g.Data), g.Width, g.Height)
	}

	min, max, anyValid := gridStats(g.Data)
	scale := chooseScale(min, max, anyValid)
	alpha := hasNaN(g.Data)

	meta := StreamMeta{
		Min:    min,
		Max:    max,
		Width:  uint32(g.Width),
		Height: uint32(g.Height),
		Scale:  scale,
		Alpha:  alpha,
		Extent: extent,
	}

	rec, q, err := e.encodeIWithMeta(g, meta, validTime)
	if err != nil {
		return nil, StreamMeta{}, nil, err
	}
	e.log.Debug("encoded I-frame", "width", g.Width, "height", g.Height, "scale", scale, "alpha", alpha)
	return rec, meta, q, nil
}

// EncodeIPeriodic produces a periodic I-frame refresh (spec §4.5:
// "emit I-frame every N frames"): a self-contained, non-delta frame that
// re-embeds the stream's already-frozen metadata unchanged (per
// invariant I1, scale, alpha, width and height never change after frame
// 0) rather than recomputing it from g's own value range.
func (e *Encoder) EncodeIPeriodic(g Grid, meta StreamMeta, validTime uint32) ([]byte, []int32, error) {
	if uint32(g.Width) != meta.Width || uint32(g.Height) != meta.Height {
		return nil, nil, fmt.Errorf("wepx: frame dimensions %dx%d do not match stream meta %dx%d",
			g.Width, g.Height, meta.Width, meta.Height)
	}
	rec, q, err := e.encodeIWithMeta(g, meta, validTime)
	if err != nil {
		return nil, nil, err
	}
	e.log.Debug("encoded periodic I-frame", "width", g.Width, "height", g.Height)
	return rec, q, nil
}

// encodeIWithMeta is the shared core of EncodeI and EncodeIPeriodic: it
// quantizes and spatially differences g against meta's frozen scale and
// alpha flag, compresses the body, and assembles a type-I record always
// carrying meta as its JSON block (invariant I5).
func (e *Encoder) encodeIWithMeta(g Grid, meta StreamMeta, validTime uint32) ([]byte, []int32, error) {
	filled, mask := prepareFrame(g.Data, meta.Alpha)
	q := quantizeGrid(filled, meta.Scale)
	diff := spatialDiffEncode(q, g.Width, g.Height)

	body, err := compressBody(mask, diff)
	if err != nil {
		return nil, nil, errors.Wrap(err, "wepx: compressing I-frame body")
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, nil, errors.Wrap(err, "wepx: marshaling stream meta")
	}

	payload := BuildPayload(validTime, metaJSON, body)
	rec := MarshalRecord(TypeI, payload)
	return rec, q, nil
}

// EncodeP produces a P-frame: the temporal delta of g against prev,
// spatially differenced, using the stream's frozen meta (scale, alpha,
// dimensions). prev must be the raw raster from the immediately
// preceding frame of this stream; per spec invariant I2, the encoder
// requantizes prev from scratch with the frozen scale rather than reuse
// a possibly-drifted accumulator.
func (e *Encoder) EncodeP(curr, prev Grid, meta StreamMeta, validTime uint32) ([]byte, error) {
	if curr.Width != prev.Width || curr.Height != prev.Height {
		return nil, fmt.Errorf("wepx: dimension mismatch between successive frames (%dx%d vs %dx%d)",
			curr.Width, curr.Height, prev.Width, prev.Height)
	}
	if uint32(curr.Width) != meta.Width || uint32(curr.Height) != meta.Height {
		return nil, fmt.Errorf("wepx: frame dimensions %dx%d do not match stream meta %dx%d",
			curr.Width, curr.Height, meta.Width, meta.Height)
	}

	currFilled, mask := prepareFrame(curr.Data, meta.Alpha)
	prevFilled, _ := prepareFrame(prev.Data, meta.Alpha)

	qCurr := quantizeGrid(currFilled, meta.Scale)
	qPrev := quantizeGrid(prevFilled, meta.Scale)

	tDiff := make([]int32, len(qCurr))
	for i := range qCurr {
		tDiff[i] = qCurr[i] - qPrev[i]
	}
	sDiff := spatialDiffEncode(tDiff, curr.Width, curr.Height)

	body, err := compressBody(mask, sDiff)
	if err != nil {
		return nil, errors.Wrap(err, "wepx: compressing P-frame body")
	}

	payload := BuildPayload(validTime, nil, body)
	rec := MarshalRecord(TypeP, payload)

	e.log.Debug("encoded P-frame", "width", curr.Width, "height", curr.Height)
	return rec, nil
}

// compressBody zlib-compresses the uncompressed frame body: an optional
// validity mask followed by the little-endian int32 diff grid.
func compressBody(mask []byte, diff []int32) ([]byte, error) {
	raw := make([]byte, 0, len(mask)+len(diff)*4)
	raw = append(raw, mask...)
	raw = append(raw, int32ToBytes(diff)...)

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, ZlibLevel)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
