package wepx

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wepx/wepx/logging"
)

func testLogger() logging.Logger { return logging.New(logging.Config{Level: logging.Error}) }

// Property 8 / spec §8.8: scale-bucket determinism.
func TestScaleBucketDeterminism(t *testing.T) {
	cases := []struct {
		rng  float64
		want float64
	}{
		{0, 10000},
		{3, 10000},
		{10, 100},
		{50, 10},
		{300, 1},
	}
	for _, c := range cases {
		got := chooseScale(10, 10+c.rng, true)
		if got != c.want {
			t.Errorf("chooseScale(range=%v) = %v, want %v", c.rng, got, c.want)
		}
	}
}

// Scenario S1: flat field.
func TestS1FlatField(t *testing.T) {
	w, h := 4, 4
	data := make([]float32, w*h)
	for i := range data {
		data[i] = 17.0
	}
	g := Grid{Width: w, Height: h, Data: data}

	enc := NewEncoder(testLogger())
	rec, meta, quant, err := enc.EncodeI(g, 1000, nil)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Scale != 10000 {
		t.Errorf("scale = %v, want 10000", meta.Scale)
	}
	if meta.Alpha {
		t.Errorf("alpha = true, want false")
	}

	// 17.0 * 10000 = 170000 for every pixel.
	for i, v := range quant {
		if v != 170000 {
			t.Fatalf("quant[%d] = %d, want 170000", i, v)
		}
	}
	diff := spatialDiffEncode(quant, w, h)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			v := diff[r*w+c]
			if c == 0 {
				if v != 170000 {
					t.Errorf("diff[%d][0] = %d, want 170000", r, v)
				}
			} else if v != 0 {
				t.Errorf("diff[%d][%d] = %d, want 0", r, c, v)
			}
		}
	}

	frameType, payload, err := ReadRecord(bytes.NewReader(rec))
	if err != nil {
		t.Fatal(err)
	}
	if frameType != TypeI {
		t.Fatalf("frameType = %#x, want I", frameType)
	}

	dec := NewDecoder()
	out, err := dec.DecodeRecord(frameType, payload)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Grid.Data {
		if math.Abs(float64(v)-17.0) > 1/meta.Scale {
			t.Errorf("decoded[%d] = %v, want ~17.0", i, v)
		}
	}
}

// Scenario S2: range bucket with a non-trivial min/max.
func TestS2RangeBucket(t *testing.T) {
	w, h := 4, 4
	data := make([]float32, w*h)
	for i := range data {
		// Spread values between 40 and 95.
		data[i] = float32(40 + (i%16)*55/15)
	}
	g := Grid{Width: w, Height: h, Data: data}

	enc := NewEncoder(testLogger())
	rec, meta, _, err := enc.EncodeI(g, 2000, nil)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Scale != 10 {
		t.Fatalf("scale = %v, want 10", meta.Scale)
	}

	frameType, payload, err := ReadRecord(bytes.NewReader(rec))
	if err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder()
	out, err := dec.DecodeRecord(frameType, payload)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Grid.Data {
		if math.Abs(float64(v-data[i])) > 0.1+1e-9 {
			t.Errorf("decoded[%d] = %v, want within 0.1 of %v", i, v, data[i])
		}
	}
}

// Scenario S3: NaN mask placement.
func TestS3NaNMask(t *testing.T) {
	w, h := 4, 4
	data := make([]float32, w*h)
	for i := range data {
		data[i] = float32(i)
	}
	data[0] = float32(math.NaN())  // (0,0)
	data[15] = float32(math.NaN()) // (3,3)
	g := Grid{Width: w, Height: h, Data: data}

	enc := NewEncoder(testLogger())
	_, meta, _, err := enc.EncodeI(g, 3000, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Alpha {
		t.Fatal("alpha = false, want true")
	}

	_, mask := maskAndFill(g.Data)
	if len(mask) != 2 {
		t.Fatalf("mask length = %d, want 2", len(mask))
	}
	if mask[0]&0x80 != 0 {
		t.Errorf("bit 0 of byte 0 = set, want cleared")
	}
	if mask[1]&0x01 != 0 {
		t.Errorf("last bit of byte 1 = set, want cleared")
	}
}

// Property 4: record framing survives concatenation and tolerates
// truncation of the final record.
func TestRecordFraming(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(MarshalRecord(TypeI, []byte("hello")))
	buf.Write(MarshalRecord(TypeP, []byte("world!!")))
	buf.Write(MarshalRecord(TypeP, []byte("x")))

	full := buf.Bytes()

	r := bytes.NewReader(full)
	var got [][]byte
	for {
		ft, payload, err := ReadRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		_ = ft
		got = append(got, payload)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}

	// Truncate the final record's payload; prior records still decode,
	// and the truncated one reports ErrShortRead.
	truncated := full[:len(full)-3]
	r2 := bytes.NewReader(truncated)
	var ok int
	for {
		_, _, err := ReadRecord(r2)
		if err == ErrShortRead || err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		ok++
	}
	if ok != 2 {
		t.Fatalf("decoded %d complete records before truncation, want 2", ok)
	}
}

// Property 2: I-frame round trip is lossy only up to 1/scale.
func TestRoundTripIFrame(t *testing.T) {
	w, h := 8, 6
	data := make([]float32, w*h)
	for i := range data {
		data[i] = float32(i) * 0.37
	}
	data[3] = float32(math.NaN())
	g := Grid{Width: w, Height: h, Data: data}

	enc := NewEncoder(testLogger())
	rec, meta, _, err := enc.EncodeI(g, 4000, nil)
	if err != nil {
		t.Fatal(err)
	}

	frameType, payload, err := ReadRecord(bytes.NewReader(rec))
	if err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder()
	out, err := dec.DecodeRecord(frameType, payload)
	if err != nil {
		t.Fatal(err)
	}

	for i, orig := range data {
		got := out.Grid.Data[i]
		if isNaN32(orig) {
			if !isNaN32(got) {
				t.Errorf("data[%d]: want NaN, got %v", i, got)
			}
			continue
		}
		if math.Abs(float64(got-orig)) > 1/meta.Scale+1e-9 {
			t.Errorf("data[%d]: got %v, want within %v of %v", i, got, 1/meta.Scale, orig)
		}
	}
}

// Property 3: P-frame equivalence in quantized space.
func TestPFrameEquivalence(t *testing.T) {
	w, h := 5, 5
	prevData := make([]float32, w*h)
	currData := make([]float32, w*h)
	for i := range prevData {
		prevData[i] = float32(i) * 0.1 // range < 5 -> scale 10000
		currData[i] = float32(i)*0.1 + 0.05
	}
	prev := Grid{Width: w, Height: h, Data: prevData}
	curr := Grid{Width: w, Height: h, Data: currData}

	enc := NewEncoder(testLogger())
	recI, meta, _, err := enc.EncodeI(prev, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	recP, err := enc.EncodeP(curr, prev, meta, 2)
	if err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder()
	ft, payload, err := ReadRecord(bytes.NewReader(recI))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dec.DecodeRecord(ft, payload); err != nil {
		t.Fatal(err)
	}
	ft, payload, err = ReadRecord(bytes.NewReader(recP))
	if err != nil {
		t.Fatal(err)
	}
	gotViaP, err := dec.DecodeRecord(ft, payload)
	if err != nil {
		t.Fatal(err)
	}

	recIcurr, metaCurr, _, err := enc.EncodeI(curr, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if metaCurr.Scale != meta.Scale {
		t.Fatalf("test setup invalid: scales differ (%v vs %v)", meta.Scale, metaCurr.Scale)
	}
	dec2 := NewDecoder()
	ft, payload, err = ReadRecord(bytes.NewReader(recIcurr))
	if err != nil {
		t.Fatal(err)
	}
	gotViaI, err := dec2.DecodeRecord(ft, payload)
	if err != nil {
		t.Fatal(err)
	}

	for i := range gotViaP.Grid.Data {
		a, b := gotViaP.Grid.Data[i], gotViaI.Grid.Data[i]
		if a != b {
			t.Errorf("pixel %d: via P-frame = %v, via direct I-frame = %v", i, a, b)
		}
	}
	// Min and Max record each stream's own frame 0 and so differ between
	// the two streams; every other meta field must match.
	if diff := cmp.Diff(gotViaP.Meta, gotViaI.Meta, cmpopts.IgnoreFields(StreamMeta{}, "Min", "Max")); diff != "" {
		t.Errorf("frozen meta diverged between P-frame and direct I-frame decode (-P +I):\n%s", diff)
	}
}
