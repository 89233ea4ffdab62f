/*
NAME
  pipeline.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package raster

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/wepx/wepx/codec/wepx"
	"github.com/wepx/wepx/formula"
	"github.com/wepx/wepx/logging"
)

// VariableConfig is one entry of a model's variables[] list (spec §4.4):
// the GRIB element/level a band must match, the stream identity derived
// from a match, and an optional formula applied to the raw array before
// reprojection.
type VariableConfig struct {
	GribID     string
	GribLevel  string
	InternalID string
	Formula    string
}

// ExtractedVariable is one matched, reprojected, quantized-to-float32
// variable ready to be appended to its stream.
type ExtractedVariable struct {
	StreamID  string
	Grid      wepx.Grid
	RefTime   string
	ValidTime uint32
	Extent    [4]float64
}

// Pipeline matches GRIB bands against a model's variable configuration,
// applies each matched variable's formula, and reprojects the result to
// a regular WGS84 grid (spec §4.3 "Multi-band extraction").
type Pipeline struct {
	Reprojector Reprojector
	Transformer CoordTransformer
	Log         logging.Logger
}

// NewPipeline returns a Pipeline using rp to reproject and tf to sample
// dataset extents.
func NewPipeline(rp Reprojector, tf CoordTransformer, log logging.Logger) *Pipeline {
	return &Pipeline{Reprojector: rp, Transformer: tf, Log: log}
}

// Process takes an already opened r, matches each of r's bands against vars, and returns
// one ExtractedVariable per match. width is the target output width;
// output height is derived from the extent's aspect ratio. model
// selects the HRDPS extent override when set to "HRDPS".
func (p *Pipeline) Process(r Raster, vars []VariableConfig, width int, model string) ([]ExtractedVariable, error) {
	geographic := IsGeographic(r.Projection())
	extent, err := ExtentInWGS84(r, p.Transformer, geographic, model)
	if err != nil {
		return nil, errors.Wrap(err, "raster: computing extent")
	}

	height := int(float64(width) / AspectRatio(extent))
	if height <= 0 {
		height = width
	}

	var out []ExtractedVariable
	for i, b := range r.Bands() {
		meta := b.Metadata()
		gribElement := strings.TrimSpace(meta["GRIB_ELEMENT"])
		gribShortName := strings.TrimSpace(meta["GRIB_SHORT_NAME"])

		match, ok := matchVariable(vars, gribElement, gribShortName)
		if !ok {
			continue
		}

		raw, err := b.ReadAsArray()
		if err != nil {
			p.logSkip("reading band failed, skipping band", i, match.InternalID, err)
			continue
		}

		if match.Formula != "" {
			raw, err = formula.Apply(match.Formula, raw)
			if err != nil {
				p.logSkip("formula evaluation failed, skipping band", i, match.InternalID, err)
				continue
			}
		}

		warped, err := p.Reprojector.ReprojectToWGS84(r, &arrayBand{base: b, data: raw}, width, height, extent, nodataValue)
		if err != nil {
			p.logSkip("reprojection failed, skipping band", i, match.InternalID, err)
			continue
		}

		refTime := firstField(meta["GRIB_REF_TIME"])
		validTimeStr := firstField(meta["GRIB_VALID_TIME"])
		validTime, _ := strconv.ParseUint(validTimeStr, 10, 32)

		streamID := match.InternalID + "_" + match.GribLevel

		out = append(out, ExtractedVariable{
			StreamID:  streamID,
			Grid:      wepx.Grid{Width: width, Height: height, Data: warped},
			RefTime:   refTime,
			ValidTime: uint32(validTime),
			Extent:    extent,
		})

		if p.Log != nil {
			p.Log.Info("matched grib band", "stream_id", streamID, "band", i, "ref_time", refTime, "valid_time", validTime)
		}
	}
	return out, nil
}

// logSkip records a single band's extraction failure (spec's
// FormulaFailure / BandMissing kinds): the band is abandoned but the
// rest of the file's bands still get a chance.
func (p *Pipeline) logSkip(msg string, band int, internalID string, err error) {
	if p.Log != nil {
		p.Log.Warning(msg, "band", band, "internal_id", internalID, "error", err.Error())
	}
}

// nodataValue is the sentinel written into reprojected pixels that fall
// outside the source dataset's coverage; the codec treats NaN as
// no-data (spec §4.1), so this must always be NaN rather than the
// original pipeline's float32 min-value sentinel.
var nodataValue = float32(math.NaN())

func matchVariable(vars []VariableConfig, gribElement, gribShortName string) (VariableConfig, bool) {
	for _, v := range vars {
		if gribElement != v.GribID {
			continue
		}
		if v.GribLevel != "" && v.GribLevel != gribShortName {
			continue
		}
		return v, true
	}
	return VariableConfig{}, false
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "0"
	}
	return fields[0]
}

// arrayBand adapts an already-read, possibly formula-transformed array
// back into a Band so it can be passed to a Reprojector without forcing
// the caller to re-read the source dataset.
type arrayBand struct {
	base Band
	data []float32
}

func (a *arrayBand) Metadata() map[string]string   { return a.base.Metadata() }
func (a *arrayBand) ReadAsArray() ([]float32, error) { return a.data, nil }
