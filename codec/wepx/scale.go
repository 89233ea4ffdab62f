package wepx

import "math"

// Fixed decimal scale buckets. Chosen so that integer deltas stay small
// for a given weather-variable family (CAPE, temperature, precipitation
// rate, ...); see spec §4.1 for the rationale.
const (
	scaleNoData   = 100.0
	scaleFlat     = 10000.0
	scaleWide     = 1.0
	scaleMedium   = 10.0
	scaleNarrow   = 100.0
	scaleTight    = 10000.0
	rangeWide     = 200.0
	rangeMedium   = 15.0
	rangeNarrow   = 5.0
)

// chooseScale implements spec §4.1's fixed-bucket scale selection given
// the value range (max-min) over non-NaN pixels, and whether any pixel
// was valid at all.
func chooseScale(min, max float64, anyValid bool) float64 {
	if !anyValid {
		return scaleNoData
	}
	r := max - min
	switch {
	case r == 0:
		return scaleFlat
	case r > rangeWide:
		return scaleWide
	case r > rangeMedium:
		return scaleMedium
	case r > rangeNarrow:
		return scaleNarrow
	default:
		return scaleTight
	}
}

// gridStats computes the min/max over the non-NaN elements of data, and
// reports whether any element was valid.
func gridStats(data []float32) (min, max float64, anyValid bool) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, v := range data {
		if isNaN32(v) {
			continue
		}
		f := float64(v)
		anyValid = true
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	if !anyValid {
		return 0, 0, false
	}
	return min, max, true
}

func isNaN32(v float32) bool { return v != v }
