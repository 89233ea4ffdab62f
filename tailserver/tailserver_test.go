package tailserver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wepx/wepx/codec/wepx"
	"github.com/wepx/wepx/logging"
)

func testLog() logging.Logger { return logging.New(logging.Config{Level: logging.Error}) }

func TestTailStreamsExistingRecords(t *testing.T) {
	dir := t.TempDir()
	relPath := filepath.Join("HRDPS", "123", "temp_2-HTGL.wepx")
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}

	rec1 := wepx.MarshalRecord(wepx.TypeI, []byte("payload-one"))
	if err := os.WriteFile(full, rec1, 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- Tail(ctx, dir, relPath, &out, testLog()) }()

	time.Sleep(300 * time.Millisecond)
	cancel()
	<-done

	if out.Len() < 2+len("payload-one") {
		t.Fatalf("got %d bytes, want at least %d", out.Len(), 2+len("payload-one"))
	}
	if out.Bytes()[0] != streamIDSentinel || out.Bytes()[1] != wepx.TypeI {
		t.Errorf("framing prefix = %v, want [0x00, 0x%02x]", out.Bytes()[:2], wepx.TypeI)
	}
	if string(out.Bytes()[2:]) != "payload-one" {
		t.Errorf("payload = %q, want payload-one", out.Bytes()[2:])
	}
}

// Scenario S6: a writer appends three records of distinct lengths
// before any client connects; a client that connects and tails from
// the start receives exactly three messages with those payload lengths
// in order.
func TestS6TailDeliversRecordsInOrder(t *testing.T) {
	dir := t.TempDir()
	relPath := "s6.wepx"
	full := filepath.Join(dir, relPath)

	payloads := [][]byte{
		bytes.Repeat([]byte("a"), 5),
		bytes.Repeat([]byte("b"), 12),
		bytes.Repeat([]byte("c"), 3),
	}
	var data bytes.Buffer
	for _, p := range payloads {
		data.Write(wepx.MarshalRecord(wepx.TypeI, p))
	}
	if err := os.WriteFile(full, data.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- Tail(ctx, dir, relPath, &out, testLog()) }()

	time.Sleep(300 * time.Millisecond)
	cancel()
	<-done

	got := out.Bytes()
	var gotLens []int
	for len(got) > 0 {
		if got[0] != streamIDSentinel {
			t.Fatalf("unexpected stream id byte %#x", got[0])
		}
		got = got[2:] // drop <stream_id><frame_type> prefix
		// Each payload here is recognizable by its distinct repeated byte;
		// consume until the next prefix would start a new record. Since
		// payload lengths are known up front, slice them off directly.
		n := len(payloads[len(gotLens)])
		if len(got) < n {
			t.Fatalf("short payload: have %d bytes, want %d", len(got), n)
		}
		if !bytes.Equal(got[:n], payloads[len(gotLens)]) {
			t.Fatalf("message %d payload = %q, want %q", len(gotLens), got[:n], payloads[len(gotLens)])
		}
		gotLens = append(gotLens, n)
		got = got[n:]
	}

	if len(gotLens) != len(payloads) {
		t.Fatalf("got %d messages, want %d", len(gotLens), len(payloads))
	}
	for i, p := range payloads {
		if gotLens[i] != len(p) {
			t.Errorf("message %d length = %d, want %d", i, gotLens[i], len(p))
		}
	}
}

func TestTailWaitsForFileCreation(t *testing.T) {
	dir := t.TempDir()
	relPath := "temp.wepx"
	full := filepath.Join(dir, relPath)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- Tail(ctx, dir, relPath, &out, testLog()) }()

	time.Sleep(200 * time.Millisecond)
	rec := wepx.MarshalRecord(wepx.TypeI, []byte("hello"))
	if err := os.WriteFile(full, rec, 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(500 * time.Millisecond)
	cancel()
	<-done

	if !bytes.Contains(out.Bytes(), []byte("hello")) {
		t.Errorf("expected tailed output to contain payload written after connect, got %q", out.Bytes())
	}
}
