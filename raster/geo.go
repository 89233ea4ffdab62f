/*
NAME
  geo.go

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
)

// hrdpsExtent is the hardcoded bounding box used for the HRDPS model,
// for which sampling the dataset's own extent is unreliable near the
// poles. Order is [lonMin, latMin, lonMax, latMax].
var hrdpsExtent = [4]float64{-152.78, 27.22, -40.7, 70.6}

const sampleSteps = 10

// BestWidthForWGS84 estimates the output pixel width that preserves the
// native resolution of r once reprojected to WGS84 lon/lat, by sampling
// points along the dataset's edges through tf and comparing the
// resulting lon/lat bounding box width against the native pixel size
// (converted from metres to degrees at the sampled latitude, when r's
// native CRS is projected).
//
// Falls back to 3000 if r has zero width or height or a zero pixel width
// in its geotransform.
func BestWidthForWGS84(r Raster, tf CoordTransformer, geographic bool) (int, error) {
	gt := r.GeoTransform()
	nativeRes := gt[1]
	width, height := r.Size()
	if width == 0 || height == 0 || nativeRes == 0 {
		return 3000, nil
	}

	var lons, lats []float64
	for i := 0; i < sampleSteps; i++ {
		x := gt[0] + float64(i)*(gt[1]*float64(width))/float64(sampleSteps-1)
		for _, y := range [2]float64{gt[3], gt[3] + gt[5]*float64(height)} {
			lon, lat, err := tf.Transform(x, y)
			if err != nil {
				return 0, err
			}
			lons = append(lons, lon)
			lats = append(lats, lat)
		}
	}
	for i := 0; i < sampleSteps; i++ {
		y := gt[3] + float64(i)*(gt[5]*float64(height))/float64(sampleSteps-1)
		for _, x := range [2]float64{gt[0], gt[0] + gt[1]*float64(width)} {
			lon, lat, err := tf.Transform(x, y)
			if err != nil {
				return 0, err
			}
			lons = append(lons, lon)
			lats = append(lats, lat)
		}
	}

	minLon, maxLon := minMax(lons)
	minLat, maxLat := minMax(lats)
	bboxWidth := maxLon - minLon

	var targetResDeg float64
	if geographic {
		targetResDeg = nativeRes
	} else {
		safeLat := 0.0
		if !(minLat < 0 && 0 < maxLat) {
			safeLat = math.Min(math.Abs(minLat), math.Abs(maxLat))
		}
		metersPerDeg := 111320 * math.Cos(safeLat*math.Pi/180)
		targetResDeg = nativeRes / metersPerDeg
	}

	return int(math.Ceil(bboxWidth / targetResDeg)), nil
}

// ExtentInWGS84 returns the lon/lat bounding box of r. model selects the
// HRDPS hardcoded extent when set to "HRDPS". For a geographic source
// CRS the extent is read directly off the geotransform; for a projected
// CRS, tf reprojects sampled edge points.
//
// Non-HRDPS results are returned as [latMin, lonMin, latMax, lonMax] to
// match the upstream GRIB pipeline this module was ported from; callers
// combining extents across models must account for this axis-order
// inconsistency against the HRDPS [lonMin, latMin, lonMax, latMax] case.
func ExtentInWGS84(r Raster, tf CoordTransformer, geographic bool, model string) ([4]float64, error) {
	if model == "HRDPS" {
		return hrdpsExtent, nil
	}

	gt := r.GeoTransform()
	width, height := r.Size()

	if geographic {
		lonMax := gt[0]
		lonMin := gt[0] + float64(width)*gt[1]
		latMax := gt[3]
		latMin := gt[3] + float64(height)*gt[5]
		return [4]float64{
			math.Min(latMin, latMax),
			math.Min(lonMin, lonMax),
			math.Max(latMin, latMax),
			math.Max(lonMin, lonMax),
		}, nil
	}

	latMin, lonMax := math.Inf(1), math.Inf(-1)
	lonMin, latMax := math.Inf(1), math.Inf(-1)

	const sampleRate = 10
	for x := 0; x < width; x += sampleRate {
		for _, y := range [2]int{0, height - 1} {
			lon, lat, err := sampleEdge(tf, gt, x, y)
			if err != nil {
				return [4]float64{}, err
			}
			latMin, latMax = math.Min(latMin, lat), math.Max(latMax, lat)
			lonMin, lonMax = math.Min(lonMin, lon), math.Max(lonMax, lon)
		}
	}
	for y := 0; y < height; y += sampleRate {
		for _, x := range [2]int{0, width - 1} {
			lon, lat, err := sampleEdge(tf, gt, x, y)
			if err != nil {
				return [4]float64{}, err
			}
			latMin, latMax = math.Min(latMin, lat), math.Max(latMax, lat)
			lonMin, lonMax = math.Min(lonMin, lon), math.Max(lonMax, lon)
		}
	}

	return [4]float64{latMin, lonMin, latMax, lonMax}, nil
}

func sampleEdge(tf CoordTransformer, gt [6]float64, x, y int) (lon, lat float64, err error) {
	xGeo := gt[0] + float64(x)*gt[1]
	yGeo := gt[3] + float64(y)*gt[5]
	return tf.Transform(xGeo, yGeo)
}

// AspectRatio returns the width/height ratio of an extent expressed as
// [xMin, yMin, xMax, yMax], or 1.0 if the extent is degenerate.
func AspectRatio(extent [4]float64) float64 {
	width := extent[2] - extent[0]
	height := extent[3] - extent[1]
	if height != 0 {
		return width / height
	}
	return 1.0
}

func minMax(vs []float64) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
