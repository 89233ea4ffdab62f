package stream

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriterCreatesDirAndAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model", "123")
	w, err := Open(dir, "TMP_2-m-above-ground", true)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Append([]byte("record1")); err != nil {
		t.Fatal(err)
	}
	if err := w.Append([]byte("record2")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "record1record2" {
		t.Fatalf("file contents = %q, want %q", data, "record1record2")
	}
}

func TestWriterFreshRemovesExisting(t *testing.T) {
	dir := t.TempDir()
	w1, err := Open(dir, "s", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := w1.Append([]byte("old")); err != nil {
		t.Fatal(err)
	}
	w1.Close()

	w2, err := Open(dir, "s", true)
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Close()
	if err := w2.Append([]byte("new")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(w2.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Fatalf("file contents = %q, want %q (fresh should have truncated)", data, "new")
	}
}
