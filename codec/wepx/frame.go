/*
NAME
  frame.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package wepx implements the .wepx raster stream frame codec: a
// quantize/diff/compress encoder and a matching decoder producing I-frames
// (self-contained, metadata-carrying) and P-frames (temporal+spatial delta
// against the previous frame) for one stream.
package wepx

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame types, matching the single byte following the 4-byte length in
// every record header.
const (
	TypeI byte = 0x00
	TypeP byte = 0x01
)

// HeaderSize is the size in bytes of the length-prefixed record header:
// a 4-byte little-endian length followed by a 1-byte frame type.
const HeaderSize = 5

// ZlibLevel is the compression level used for every frame body, fixed so
// that encoders across the fleet produce byte-identical streams for
// byte-identical input.
const ZlibLevel = 8

// IFrameInterval is the number of frames (after frame 0, which is always
// an I-frame) between automatic I-frame refreshes.
const IFrameInterval = 8

// ErrShortRead is returned by ReadRecord when fewer bytes than a complete
// record are currently available; callers (notably the tail server) should
// back up their read cursor and retry once more bytes have been written.
var ErrShortRead = errShortRead{}

type errShortRead struct{}

func (errShortRead) Error() string { return "wepx: short read, incomplete record available" }

// MarshalRecord assembles a complete on-disk/on-wire record: a 5-byte
// header followed by the payload bytes.
func MarshalRecord(frameType byte, payload []byte) []byte {
	rec := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(rec[0:4], uint32(len(payload)))
	rec[4] = frameType
	copy(rec[HeaderSize:], payload)
	return rec
}

// ReadRecord reads a single record from r, returning its frame type and
// payload. It returns ErrShortRead if the header or payload could not be
// read in full (e.g. the writer has not finished appending it yet); other
// errors, including io.EOF on a clean boundary, are returned unwrapped.
func ReadRecord(r io.Reader) (frameType byte, payload []byte, err error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err == io.EOF {
		return 0, nil, io.EOF
	}
	if err != nil || n < HeaderSize {
		return 0, nil, ErrShortRead
	}

	length := binary.LittleEndian.Uint32(hdr[0:4])
	frameType = hdr[4]

	payload = make([]byte, length)
	n, err = io.ReadFull(r, payload)
	if err != nil || uint32(n) < length {
		return 0, nil, ErrShortRead
	}
	return frameType, payload, nil
}

// BuildPayload assembles the payload: valid_time, meta_len, optional meta
// JSON, then the compressed body.
func BuildPayload(validTime uint32, metaJSON []byte, body []byte) []byte {
	p := make([]byte, 0, 4+2+len(metaJSON)+len(body))
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], validTime)
	p = append(p, buf[:]...)

	var mlen [2]byte
	binary.LittleEndian.PutUint16(mlen[:], uint16(len(metaJSON)))
	p = append(p, mlen[:]...)
	p = append(p, metaJSON...)
	p = append(p, body...)
	return p
}

// SplitPayload parses a payload into its valid_time, raw meta JSON bytes
// (nil if absent) and the remaining compressed body.
func SplitPayload(payload []byte) (validTime uint32, metaJSON []byte, body []byte, err error) {
	if len(payload) < 6 {
		return 0, nil, nil, fmt.Errorf("wepx: payload too short (%d bytes)", len(payload))
	}
	validTime = binary.LittleEndian.Uint32(payload[0:4])
	metaLen := binary.LittleEndian.Uint16(payload[4:6])
	rest := payload[6:]
	if int(metaLen) > len(rest) {
		return 0, nil, nil, fmt.Errorf("wepx: meta_len %d exceeds remaining payload %d", metaLen, len(rest))
	}
	if metaLen > 0 {
		metaJSON = rest[:metaLen]
	}
	body = rest[metaLen:]
	return validTime, metaJSON, body, nil
}
