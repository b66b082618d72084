package artifacts

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	latest := []*Artifact{
		{FilePath: "src/Main.go", Content: "package main\n"},
		{FilePath: "src/helper.go", Content: "package main\nfunc helper() {}\n"},
	}

	data, err := Snapshot(latest)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	tr := tar.NewReader(gz)

	found := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar.Next: %v", err)
		}
		buf := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr, buf); err != nil {
			t.Fatalf("read tar entry: %v", err)
		}
		found[hdr.Name] = string(buf)
	}

	for _, a := range latest {
		if found[a.FilePath] != a.Content {
			t.Errorf("entry %q = %q, want %q", a.FilePath, found[a.FilePath], a.Content)
		}
	}
}

func TestSnapshot_Empty(t *testing.T) {
	data, err := Snapshot(nil)
	if err != nil {
		t.Fatalf("Snapshot(nil): %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty gzip stream even for zero artifacts")
	}
}
