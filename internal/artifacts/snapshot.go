package artifacts

import (
	"archive/tar"
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// Snapshot packages the latest-version artifacts of a job into a gzip'd tar
// stream, the shape a real SandboxPort.Deploy implementation ships to an
// external sandbox rather than a loose file list. Grounded on the teacher's
// use of github.com/klauspost/compress for archive handling
// (internal/actions/extract.go), reused here for the deploy direction
// instead of extraction.
func Snapshot(latest []*Artifact) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("snapshot: new gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	for _, a := range latest {
		content := []byte(a.Content)
		hdr := &tar.Header{
			Name: a.FilePath,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("snapshot: write header for %s: %w", a.FilePath, err)
		}
		if _, err := tw.Write(content); err != nil {
			return nil, fmt.Errorf("snapshot: write content for %s: %w", a.FilePath, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}
