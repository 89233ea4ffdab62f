package raster

import (
	"math"
	"testing"
)

type fakeRaster struct {
	gt         [6]float64
	width      int
	height     int
	projection string
	bands      []Band
}

func (f *fakeRaster) Bands() []Band              { return f.bands }
func (f *fakeRaster) GeoTransform() [6]float64   { return f.gt }
func (f *fakeRaster) Projection() string         { return f.projection }
func (f *fakeRaster) Size() (int, int)           { return f.width, f.height }

// identityTransformer treats the native CRS as already lon/lat.
type identityTransformer struct{}

func (identityTransformer) Transform(x, y float64) (float64, float64, error) { return x, y, nil }

func TestBestWidthForWGS84Geographic(t *testing.T) {
	r := &fakeRaster{
		gt:     [6]float64{-10, 0.1, 0, 50, -0.1, 0},
		width:  100,
		height: 100,
	}
	w, err := BestWidthForWGS84(r, identityTransformer{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if w <= 0 {
		t.Errorf("width = %d, want positive", w)
	}
}

func TestBestWidthForWGS84DegenerateFallsBack(t *testing.T) {
	r := &fakeRaster{gt: [6]float64{}, width: 0, height: 0}
	w, err := BestWidthForWGS84(r, identityTransformer{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if w != 3000 {
		t.Errorf("width = %d, want fallback 3000", w)
	}
}

func TestExtentInWGS84HRDPS(t *testing.T) {
	r := &fakeRaster{}
	extent, err := ExtentInWGS84(r, identityTransformer{}, true, "HRDPS")
	if err != nil {
		t.Fatal(err)
	}
	if extent != hrdpsExtent {
		t.Errorf("extent = %v, want hardcoded HRDPS extent", extent)
	}
}

func TestExtentInWGS84Geographic(t *testing.T) {
	r := &fakeRaster{
		gt:     [6]float64{-10, 0.1, 0, 50, -0.1, 0},
		width:  100,
		height: 100,
	}
	extent, err := ExtentInWGS84(r, identityTransformer{}, true, "")
	if err != nil {
		t.Fatal(err)
	}
	wantLonMin, wantLonMax := -10.0, 0.0
	wantLatMin, wantLatMax := 40.0, 50.0
	if extent[0] != wantLatMin || extent[1] != wantLonMin || extent[2] != wantLatMax || extent[3] != wantLonMax {
		t.Errorf("extent = %v, want [%v %v %v %v]", extent, wantLatMin, wantLonMin, wantLatMax, wantLonMax)
	}
}

func TestAspectRatio(t *testing.T) {
	r := AspectRatio([4]float64{0, 0, 10, 5})
	if r != 2 {
		t.Errorf("aspect ratio = %v, want 2", r)
	}
	if AspectRatio([4]float64{0, 0, 10, 0}) != 1.0 {
		t.Error("degenerate extent should return 1.0")
	}
}

func TestIsGeographic(t *testing.T) {
	if !IsGeographic(`GEOGCS["WGS 84", ...]`) {
		t.Error("expected GEOGCS WKT to be geographic")
	}
	if IsGeographic(`PROJCS["NAD83 / ...", ...]`) {
		t.Error("expected PROJCS WKT to not be geographic")
	}
}

func TestMinMax(t *testing.T) {
	min, max := minMax([]float64{3, 1, 2})
	if min != 1 || max != 3 {
		t.Errorf("got min=%v max=%v, want 1, 3", min, max)
	}
	min, max = minMax(nil)
	if !math.IsInf(min, 1) || !math.IsInf(max, -1) {
		t.Error("empty input should yield +Inf/-Inf sentinels")
	}
}
