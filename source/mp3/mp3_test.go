package mp3

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(filepath.Join(dir, "missing.mp3")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.mp3")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(empty); err == nil {
		t.Error("expected decoder error for empty file")
	}
}
