package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiagnosticsWriter persists page markup and screenshots of cards that
// produced no or too few reviews.
type DiagnosticsWriter struct {
	dir string
}

func NewDiagnosticsWriter(dir string) *DiagnosticsWriter {
	return &DiagnosticsWriter{dir: dir}
}

// SnapshotName is the deterministic base name for a card snapshot.
func SnapshotName(srcRow, hit int, incomplete bool) string {
	name := fmt.Sprintf("debug_%d_%d", srcRow, hit)
	if incomplete {
		name += "_incomplete"
	}
	return name
}

// Save writes name.html and, when png is non-empty, name.png. It returns the
// base path written.
func (d *DiagnosticsWriter) Save(name, html string, png []byte) (string, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("diagnostics: create dir: %w", err)
	}

	base := filepath.Join(d.dir, name)
	if err := os.WriteFile(base+".html", []byte(html), 0644); err != nil {
		return "", fmt.Errorf("diagnostics: write html: %w", err)
	}
	if len(png) > 0 {
		if err := os.WriteFile(base+".png", png, 0644); err != nil {
			return base, fmt.Errorf("diagnostics: write png: %w", err)
		}
	}
	return base, nil
}
