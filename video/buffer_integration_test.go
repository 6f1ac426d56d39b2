//go:build integration
// +build integration

package video

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

// TestSaveAllRoundTrip writes all three planes and loads every output
// back, checking frame counts and extents survive the container. Needs a
// build with video codecs available.
func TestSaveAllRoundTrip(t *testing.T) {

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	buf, err := NewBuffer(testColorFrames(t, 4, 48, 64), 25)

	if err != nil {
		t.Fatal(err)
	}

	defer buf.Close()

	out := filepath.Join(t.TempDir(), "out.avi")

	if err := buf.SaveAll(out, log); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	paths := []string{
		out,
		SiblingPath(out, "binary"),
		SiblingPath(out, "edges"),
	}

	for _, path := range paths {
		loaded, err := Load(path, log)

		if err != nil {
			t.Fatalf("loading %s back failed: %v", path, err)
		}

		if loaded.Frames() != buf.Frames() {
			t.Errorf("%s: frames = %d, want %d",
				path, loaded.Frames(), buf.Frames())
		}

		if loaded.Rows() != buf.Rows() || loaded.Cols() != buf.Cols() {
			t.Errorf("%s: extent = %dx%d, want %dx%d",
				path, loaded.Rows(), loaded.Cols(), buf.Rows(), buf.Cols())
		}

		loaded.Close()
	}
}
