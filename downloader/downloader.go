/*
NAME
  downloader.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package downloader fetches GRIB files over HTTP with retry and
// optional basic auth (spec §4.4 "download"), mirroring the polite
// contact-email User-Agent convention NOMADS and other public weather
// data mirrors expect.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/wepx/wepx/logging"
)

// Options configures a single download.
type Options struct {
	Email       string // appended to the User-Agent header, if set
	RetryDelay  time.Duration
	MaxRetries  int
	Username    string
	Password    string
	OutputPath  string // explicit output path; derived from url if empty
	OutputDir   string // base directory for a derived output path
}

// DefaultOptions returns the contract's documented defaults: 30s between
// retries, up to 30 retries after the first attempt.
func DefaultOptions() Options {
	return Options{RetryDelay: 30 * time.Second, MaxRetries: 30}
}

var nomadsForecastHour = regexp.MustCompile(`t(\d{2})z`)

// Downloader fetches URLs to local files with retry logic delegated to
// retryablehttp's exponential-backoff client, reconfigured with a fixed
// delay and bounded attempt count to match this package's contract.
type Downloader struct {
	log logging.Logger
}

// New returns a Downloader that logs through log.
func New(log logging.Logger) *Downloader {
	return &Downloader{log: log}
}

// Download fetches rawURL to disk, retrying transient failures up to
// opts.MaxRetries times with a fixed opts.RetryDelay between attempts.
// Returns the absolute path of the downloaded file, or an error if every
// attempt failed or the context was canceled.
func (d *Downloader) Download(ctx context.Context, rawURL string, opts Options) (string, error) {
	outputPath, err := resolveOutputPath(rawURL, opts)
	if err != nil {
		return "", err
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.MaxRetries
	client.RetryWaitMin = opts.RetryDelay
	client.RetryWaitMax = opts.RetryDelay
	client.Backoff = func(min, _ time.Duration, _ int, _ *http.Response) time.Duration { return min }
	client.Logger = nil
	client.CheckRetry = retryablehttp.DefaultRetryPolicy

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "downloader: building request")
	}
	if opts.Email != "" {
		req.Header.Set("User-Agent", fmt.Sprintf("wepx/1.0 (contact: %s)", opts.Email))
	}
	if opts.Username != "" && opts.Password != "" {
		req.SetBasicAuth(opts.Username, opts.Password)
	}

	d.log.Debug("starting download", "url", rawURL, "output", outputPath)

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "downloader: fetching %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("downloader: %s returned status %d", rawURL, resp.StatusCode)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrap(err, "downloader: creating output directory")
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return "", errors.Wrap(err, "downloader: creating output file")
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", errors.Wrap(err, "downloader: writing response body")
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return "", err
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("downloader: %s produced an empty file", rawURL)
	}

	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return "", err
	}
	d.log.Info("download complete", "url", rawURL, "path", abs, "bytes", info.Size())
	return abs, nil
}

// resolveOutputPath derives a filename when opts.OutputPath is unset,
// mirroring the upstream downloader's NOMADS-vs-generic branching: a
// nomads.ncep.noaa.gov CGI URL keeps its grib2 suffix and is organized
// under a forecast-hour subdirectory parsed out of the "tHHz" cycle
// marker; any other URL uses its "file" query parameter, or finally the
// last path segment.
func resolveOutputPath(rawURL string, opts Options) (string, error) {
	if opts.OutputPath != "" {
		return opts.OutputPath, nil
	}

	var name string
	if strings.Contains(rawURL, "nomads") {
		if m := nomadsForecastHour.FindStringSubmatch(rawURL); m != nil {
			tail := afterLastGrib2Marker(rawURL)
			name = filepath.Join(m[1], tail+".grib2")
		} else {
			name = afterLastGrib2Marker(rawURL) + ".grib2"
		}
	} else {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return "", errors.Wrapf(err, "downloader: parsing %s", rawURL)
		}
		if file := parsed.Query().Get("file"); file != "" {
			name = file
		} else {
			name = filepath.Base(parsed.Path)
			if name == "" || name == "." || name == "/" {
				name = "downloaded_file.dat"
			}
		}
	}

	if opts.OutputDir != "" {
		return filepath.Join(opts.OutputDir, name), nil
	}
	return name, nil
}

func afterLastGrib2Marker(rawURL string) string {
	const marker = ".grib2&"
	idx := strings.LastIndex(rawURL, marker)
	if idx == -1 {
		return rawURL
	}
	return rawURL[idx+len(marker):]
}
