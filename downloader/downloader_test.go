package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wepx/wepx/logging"
)

func testLogger() logging.Logger { return logging.New(logging.Config{Level: logging.Error}) }

func TestDownloadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("grib-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(testLogger())
	opts := Options{OutputPath: filepath.Join(dir, "out.grib2"), RetryDelay: time.Millisecond, MaxRetries: 1}

	path, err := d.Download(context.Background(), srv.URL, opts)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "grib-bytes" {
		t.Errorf("content = %q, want %q", data, "grib-bytes")
	}
}

func TestDownloadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := New(testLogger())
	opts := Options{OutputPath: filepath.Join(dir, "out.grib2"), RetryDelay: time.Millisecond, MaxRetries: 0}

	if _, err := d.Download(context.Background(), srv.URL, opts); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestResolveOutputPathFileParam(t *testing.T) {
	path, err := resolveOutputPath("https://example.org/cgi-bin/filter?file=hrrr.t00z.wrfsfcf01.grib2", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if path != "hrrr.t00z.wrfsfcf01.grib2" {
		t.Errorf("path = %q, want hrrr.t00z.wrfsfcf01.grib2", path)
	}
}

func TestResolveOutputPathNomads(t *testing.T) {
	path, err := resolveOutputPath("https://nomads.ncep.noaa.gov/cgi-bin/filter_hrrr.pl?t06z&file=hrrr.t06z.wrfsfcf01.grib2&dir=%2Fhrrr.20260730%2Fconus", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.ToSlash(path) != "06/dir=%2Fhrrr.20260730%2Fconus.grib2" {
		t.Errorf("path = %q", path)
	}
}

func TestResolveOutputPathFallback(t *testing.T) {
	path, err := resolveOutputPath("https://example.org/data/model.grib2", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if path != "model.grib2" {
		t.Errorf("path = %q, want model.grib2", path)
	}
}
