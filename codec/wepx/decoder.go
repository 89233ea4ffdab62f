package wepx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
)

// Decoder reconstructs Grids from a sequence of records belonging to one
// stream. It caches the metadata from the last I-frame and the last
// decoded quantized grid, as required to decode subsequent P-frames
// (spec: "A decoder must cache meta from the last I-frame and apply it
// to subsequent P-frames until the next I-frame").
type Decoder struct {
	meta      StreamMeta
	haveMeta  bool
	lastQuant []int32
}

// NewDecoder returns an empty Decoder, ready to decode a stream starting
// from its first (I-)frame.
func NewDecoder() *Decoder { return &Decoder{} }

// Decoded is one decoded frame: the reconstructed grid (NaN restored
// where the validity mask, if any, marks a pixel invalid) and its valid
// time.
type Decoded struct {
	Grid      Grid
	ValidTime uint32
	FrameType byte
	Meta      StreamMeta // the meta in force for this frame (from the last I-frame)
}

// DecodeRecord decodes one record (as returned by ReadRecord) against the
// decoder's running state.
func (d *Decoder) DecodeRecord(frameType byte, payload []byte) (Decoded, error) {
	validTime, metaJSON, body, err := SplitPayload(payload)
	if err != nil {
		return Decoded{}, err
	}

	if frameType == TypeI {
		if len(metaJSON) == 0 {
			return Decoded{}, fmt.Errorf("wepx: I-frame missing meta block")
		}
		var meta StreamMeta
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return Decoded{}, fmt.Errorf("wepx: invalid meta JSON: %w", err)
		}
		d.meta = meta
		d.haveMeta = true
	} else if !d.haveMeta {
		return Decoded{}, fmt.Errorf("wepx: P-frame with no preceding I-frame")
	}

	meta := d.meta
	n := int(meta.Width) * int(meta.Height)

	raw, err := decompressBody(body)
	if err != nil {
		return Decoded{}, fmt.Errorf("wepx: decompressing body: %w", err)
	}

	var mask []byte
	diffBytes := raw
	if meta.Alpha {
		maskLen := (n + 7) / 8
		if len(raw) < maskLen {
			return Decoded{}, fmt.Errorf("wepx: body too short for validity mask")
		}
		mask = raw[:maskLen]
		diffBytes = raw[maskLen:]
	}

	diff := bytesToInt32(diffBytes)
	if len(diff) != n {
		return Decoded{}, fmt.Errorf("wepx: decoded diff length %d does not match %dx%d", len(diff), meta.Width, meta.Height)
	}

	spatial := spatialDiffDecode(diff, int(meta.Width), int(meta.Height))

	var quant []int32
	switch frameType {
	case TypeI:
		quant = spatial
	case TypeP:
		if d.lastQuant == nil || len(d.lastQuant) != n {
			return Decoded{}, fmt.Errorf("wepx: P-frame with no compatible prior quantized frame")
		}
		quant = make([]int32, n)
		for i := range quant {
			quant[i] = d.lastQuant[i] + spatial[i]
		}
	default:
		return Decoded{}, fmt.Errorf("wepx: unknown frame type 0x%02x", frameType)
	}
	d.lastQuant = quant

	data := make([]float32, n)
	for i, v := range quant {
		data[i] = float32(float64(v) / meta.Scale)
	}
	if meta.Alpha {
		for i := range data {
			bit := mask[i/8] & (1 << uint(7-i%8))
			if bit == 0 {
				data[i] = float32(math.NaN())
			}
		}
	}

	return Decoded{
		Grid:      Grid{Width: int(meta.Width), Height: int(meta.Height), Data: data},
		ValidTime: validTime,
		FrameType: frameType,
		Meta:      meta,
	}, nil
}

func decompressBody(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
