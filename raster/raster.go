/*
NAME
  raster.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package raster defines the contract this module expects of an external
// georeferenced-raster library (GDAL, a pure-Go GRIB/GeoTIFF reader, or a
// test double) and implements the bounding-box/resolution arithmetic and
// multi-band extraction pipeline that sits on top of that contract
// (spec §4.3, §4.5). Decoding and reprojecting the underlying file format
// is explicitly out of scope for this module; only the Raster/Band/
// CoordTransformer interfaces are required of the caller.
package raster

// Raster is a single open georeferenced dataset with one or more bands.
type Raster interface {
	Bands() []Band
	// GeoTransform returns the affine transform [originX, pixelW, 0,
	// originY, 0, pixelH] mapping pixel (col,row) to native CRS (x,y),
	// matching GDAL's GetGeoTransform convention.
	GeoTransform() [6]float64
	// Projection returns the dataset's spatial reference as WKT.
	Projection() string
	Size() (width, height int)
}

// Band is one raster band (e.g. one GRIB message) of a Raster.
type Band interface {
	// Metadata returns band-level key/value metadata. For GRIB sources
	// this includes at least GRIB_ELEMENT, GRIB_SHORT_NAME,
	// GRIB_REF_TIME and GRIB_VALID_TIME (spec §4.3).
	Metadata() map[string]string
	// ReadAsArray reads the band's pixel values as a row-major float32
	// array of length width*height.
	ReadAsArray() ([]float32, error)
}

// CoordTransformer converts a point from a Raster's native CRS (with
// traditional GIS, i.e. lon/lat or easting/northing, axis order forced)
// to WGS84 lon/lat.
type CoordTransformer interface {
	Transform(x, y float64) (lon, lat float64, err error)
}

// Reprojector reprojects a Band to a regular WGS84 grid of outWidth x
// outHeight pixels covering bbox, substituting nodata for any pixel that
// falls outside the source dataset's coverage. Pipeline.Process passes
// the extent from ExtentInWGS84 as bbox unchanged, so its axis order is
// [lonMin, latMin, lonMax, latMax] for HRDPS and [latMin, lonMin, latMax,
// lonMax] for every other model.
type Reprojector interface {
	ReprojectToWGS84(r Raster, b Band, outWidth, outHeight int, bbox [4]float64, nodata float32) ([]float32, error)
}

// IsGeographic reports whether proj (a WKT spatial reference) describes
// a geographic (lon/lat degrees) CRS rather than a projected (e.g.
// metres) one. This is a lightweight textual check, sufficient for the
// GEOGCS/PROJCS-root WKT that GDAL emits, and is the one piece of CRS
// introspection this module performs itself rather than delegating.
func IsGeographic(wkt string) bool {
	return hasPrefixFold(wkt, "GEOGCS") || hasPrefixFold(wkt, `GEOGCRS`)
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'a' <= a && a <= 'z' {
			a -= 'a' - 'A'
		}
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
