/*
NAME
  cycle.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wepx/wepx/codec/wepx"
	"github.com/wepx/wepx/downloader"
	"github.com/wepx/wepx/logging"
	"github.com/wepx/wepx/metrics"
	"github.com/wepx/wepx/modelconfig"
	"github.com/wepx/wepx/raster"
	"github.com/wepx/wepx/stream"
)

// RasterOpener opens a downloaded GRIB file as a Raster. The caller
// supplies the concrete binding (GDAL, a pure-Go GRIB reader, or a test
// double); this package only sequences calls against the interface.
type RasterOpener func(path string) (raster.Raster, error)

// Cycle holds everything one (model, cycle_time) run needs.
type Cycle struct {
	Model        *modelconfig.Model
	CycleTime    time.Time
	LockDir      string
	OutputDir    string
	DownloadDir  string // scratch directory for downloaded GRIB files; defaults to <OutputDir>/_downloads
	ContactEmail string

	Downloader *downloader.Downloader
	OpenRaster RasterOpener
	Pipeline   *raster.Pipeline
	Log        logging.Logger

	// Metrics, when set, receives a per-stream compression/bitrate
	// meter for every stream this cycle appends to. Nil disables
	// metering.
	Metrics *metrics.Registry
}

// streamSet tracks per-variable stream.State for the lifetime of one
// cycle's run; it is never shared outside the goroutine running Run.
type streamSet map[string]*stream.State

// Run executes the full per-cycle pipeline (spec §4.5): acquire lock,
// build the URL list, download/decode/extract/append for each URL in
// order, release lock. Returns nil if the lock was already held
// elsewhere (that is not an error, merely a no-op for this worker).
func (c *Cycle) Run(ctx context.Context) error {
	lock, err := AcquireLock(c.LockDir, c.Model.ID, c.CycleTime)
	if err == ErrLockHeld {
		c.Log.Debug("lock held, skipping cycle", "model", c.Model.ID, "cycle", c.CycleTime)
		return nil
	}
	if err != nil {
		return err
	}
	defer lock.Release()

	urls, err := c.Model.GenerateURLs(c.CycleTime)
	if err != nil {
		return err
	}

	streams := make(streamSet)
	dead := make(map[string]bool)
	defer closeAll(streams)

	for _, u := range urls {
		if err := c.processURL(ctx, u, streams, dead); err != nil {
			c.Log.Error("write failure, aborting cycle for retry next tick", "model", c.Model.ID, "error", err.Error())
			return err
		}
	}
	c.reportMetrics(streams)
	return nil
}

// reportMetrics logs each stream's rolling compression ratio and
// bitrate once the cycle finishes, so an operator watching logs can
// judge whether the scale-bucket quantization is behaving as expected
// for a given variable (spec §4.11).
func (c *Cycle) reportMetrics(streams streamSet) {
	if c.Metrics == nil {
		return
	}
	for id, s := range streams {
		m := s.Meter
		if m == nil {
			continue
		}
		c.Log.Info("stream metrics",
			"model", c.Model.ID,
			"stream_id", id,
			"compression_ratio", m.CompressionRatio(),
			"bitrate_bps", m.BitrateBPS(),
		)
	}
}

func (c *Cycle) processURL(ctx context.Context, u modelconfig.RequestURL, streams streamSet, dead map[string]bool) error {
	opts := downloader.DefaultOptions()
	opts.Email = c.ContactEmail
	opts.OutputDir = c.downloadDir()

	path, err := c.Downloader.Download(ctx, u.URL, opts)
	if err != nil {
		c.Log.Warning("download failed, skipping url", "url", u.URL, "error", err.Error())
		return nil
	}

	r, err := c.OpenRaster(path)
	if err != nil {
		c.Log.Warning("opening raster failed, skipping url", "path", path, "error", err.Error())
		return nil
	}

	width, err := raster.BestWidthForWGS84(r, c.Pipeline.Transformer, raster.IsGeographic(r.Projection()))
	if err != nil {
		c.Log.Warning("computing best width failed, skipping url", "path", path, "error", err.Error())
		return nil
	}

	modelVars := u.Variables
	if len(modelVars) == 0 {
		modelVars = []modelconfig.Variable{u.Variable}
	}
	vars := make([]raster.VariableConfig, len(modelVars))
	for i, v := range modelVars {
		vars[i] = raster.VariableConfig{
			GribID:     v.GribID,
			GribLevel:  v.GribLevel,
			InternalID: v.InternalID,
			Formula:    v.Formula,
		}
	}

	extracted, err := c.Pipeline.Process(r, vars, width, c.Model.ID)
	if err != nil {
		c.Log.Warning("extraction failed, skipping url", "path", path, "error", err.Error())
		return nil
	}

	for _, ev := range extracted {
		if dead[ev.StreamID] {
			continue
		}
		if err := c.appendToStream(ev, streams); err != nil {
			var codecErr *stream.CodecError
			if errors.As(err, &codecErr) {
				c.Log.Error("codec failure, abandoning stream for this cycle", "stream_id", ev.StreamID, "error", err.Error())
				if s, ok := streams[ev.StreamID]; ok {
					s.Close()
					delete(streams, ev.StreamID)
				}
				dead[ev.StreamID] = true
				continue
			}
			return err
		}
	}
	return nil
}

func (c *Cycle) appendToStream(ev raster.ExtractedVariable, streams streamSet) error {
	s, ok := streams[ev.StreamID]
	if !ok {
		dir := filepath.Join(c.OutputDir, c.Model.ID, strconv.FormatInt(c.CycleTime.Unix(), 10))
		s = stream.New(dir, ev.StreamID, wepx.NewEncoder(c.Log), c.Log)
		if c.Metrics != nil {
			s.Meter = c.Metrics.Meter(ev.StreamID)
		}
		streams[ev.StreamID] = s
	}

	extent := ev.Extent
	return s.Append(ev.Grid, ev.ValidTime, &extent)
}

func (c *Cycle) downloadDir() string {
	if c.DownloadDir != "" {
		return c.DownloadDir
	}
	return filepath.Join(c.OutputDir, "_downloads", c.Model.ID)
}

func closeAll(streams streamSet) {
	for _, s := range streams {
		s.Close()
	}
}
