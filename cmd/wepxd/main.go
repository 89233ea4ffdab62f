/*
DESCRIPTION
  wepxd is the run daemon: it loads weather model configs from a
  directory, wakes on a fixed tick, and for every model whose forecast
  cycle is ready, downloads and encodes that cycle's variables into
  .wepx streams under its output directory.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main is the wepxd run daemon entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wepx/wepx/downloader"
	"github.com/wepx/wepx/logging"
	"github.com/wepx/wepx/metrics"
	"github.com/wepx/wepx/modelconfig"
	"github.com/wepx/wepx/orchestrator"
	"github.com/wepx/wepx/raster"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "/var/log/wepxd/wepxd.log"
	logMaxSizeMB = 100
	logMaxBackup = 10
	logMaxAgeDays = 28
)

// Misc constants.
const (
	tickInterval     = 10 * time.Second
	maxWaitMinutes   = 30
	staleLockMaxAge  = 6 * time.Hour
	poolWidth        = 4
)

func main() {
	configDir := flag.String("config-dir", "./configs/models", "directory of model YAML configs")
	outputDir := flag.String("output-dir", "./forecast_streams", "root directory for .wepx stream output")
	lockDir := flag.String("lock-dir", "./locks", "directory for per-cycle idempotency lock files")
	contactEmail := flag.String("contact-email", "", "contact email sent in the downloader User-Agent")
	logToFile := flag.Bool("log-file", true, "also log to "+logPath)
	flag.Parse()

	logCfg := logging.Config{Level: logging.Info}
	if *logToFile {
		logCfg.FilePath = logPath
		logCfg.MaxSizeMB = logMaxSizeMB
		logCfg.MaxBackups = logMaxBackup
		logCfg.MaxAgeDays = logMaxAgeDays
	}
	log := logging.New(logCfg)
	log.Info("wepxd starting", "version", version)

	if n, err := orchestrator.CleanStaleLocks(*lockDir, staleLockMaxAge); err != nil {
		log.Warning("cleaning stale locks failed", "error", err.Error())
	} else if n > 0 {
		log.Info("removed stale locks", "count", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	pool := orchestrator.NewPool(poolWidth, log)
	dl := downloader.New(log)
	metricsReg := metrics.NewRegistry()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("wepxd stopped")
			return
		case <-ticker.C:
			runTick(ctx, *configDir, *outputDir, *lockDir, *contactEmail, dl, pool, metricsReg, log)
		}
	}
}

// runTick loads every model config and runs any cycle found READY.
// A model that fails to load is logged and skipped; one model's
// failure must never block the others.
func runTick(ctx context.Context, configDir, outputDir, lockDir, contactEmail string, dl *downloader.Downloader, pool *orchestrator.Pool, metricsReg *metrics.Registry, log logging.Logger) {
	models, err := modelconfig.LoadAll(configDir)
	if err != nil {
		log.Error("loading model configs failed", "error", err.Error())
		return
	}

	now := time.Now().UTC()
	var cycles []*orchestrator.Cycle
	for _, m := range models {
		result := m.CheckStatus(now, maxWaitMinutes)
		if result.Status != modelconfig.Ready {
			log.Debug("model not ready", "model", m.ID, "status", result.Status.String(), "detail", result.Detail)
			continue
		}

		cycles = append(cycles, &orchestrator.Cycle{
			Model:        m,
			CycleTime:    result.CycleTime,
			LockDir:      lockDir,
			OutputDir:    outputDir,
			ContactEmail: contactEmail,
			Downloader:   dl,
			OpenRaster:   openGRIB,
			Pipeline:     raster.NewPipeline(newReprojector(), newTransformer(), log),
			Log:          log,
			Metrics:      metricsReg,
		})
	}

	if len(cycles) == 0 {
		return
	}
	log.Info("running ready cycles", "count", len(cycles))
	pool.RunAll(ctx, cycles)
}

// openGRIB, newReprojector and newTransformer are the seams where a
// concrete GDAL/PROJ binding plugs in; none is vendored here, matching
// the module's boundary of owning the stream format and orchestration
// but not raster decoding itself.
func openGRIB(path string) (raster.Raster, error) {
	return nil, fmt.Errorf("wepxd: no raster backend configured for %s", path)
}

func newReprojector() raster.Reprojector { return unconfiguredReprojector{} }
func newTransformer() raster.CoordTransformer { return unconfiguredTransformer{} }

type unconfiguredReprojector struct{}

func (unconfiguredReprojector) ReprojectToWGS84(r raster.Raster, b raster.Band, outWidth, outHeight int, bbox [4]float64, nodata float32) ([]float32, error) {
	return nil, fmt.Errorf("wepxd: no reprojection backend configured")
}

type unconfiguredTransformer struct{}

func (unconfiguredTransformer) Transform(x, y float64) (float64, float64, error) {
	return 0, 0, fmt.Errorf("wepxd: no coordinate transform backend configured")
}
