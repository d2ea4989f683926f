package covers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCover(t *testing.T, dir, bookPath string) string {
	t.Helper()
	folder := filepath.Join(dir, filepath.FromSlash(bookPath))
	if err := os.MkdirAll(folder, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(folder, CoverFile)
	if err := os.WriteFile(path, []byte("fake image data"), 0644); err != nil {
		t.Fatalf("write cover: %v", err)
	}
	return path
}

func TestCoverPath_Found(t *testing.T) {
	dir := t.TempDir()
	want := writeCover(t, dir, "Frank Herbert/Dune (1)")

	got, err := NewLibrary(dir).CoverPath("Frank Herbert/Dune (1)")
	if err != nil {
		t.Fatalf("CoverPath failed: %v", err)
	}
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestCoverPath_Missing(t *testing.T) {
	lib := NewLibrary(t.TempDir())

	for _, bookPath := range []string{"", "Nobody/Nothing (2)"} {
		if _, err := lib.CoverPath(bookPath); !errors.Is(err, ErrNoCover) {
			t.Errorf("path %q: expected ErrNoCover, got %v", bookPath, err)
		}
	}
}

func TestCoverPath_RejectsEscape(t *testing.T) {
	root := t.TempDir()
	writeCover(t, root, "outside")
	lib := NewLibrary(filepath.Join(root, "library"))

	_, err := lib.CoverPath("../outside")
	if err == nil || errors.Is(err, ErrNoCover) {
		t.Errorf("expected escape error, got %v", err)
	}
}

func TestCoverPath_DirectoryIsNotCover(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "A", "B (3)", CoverFile), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLibrary(dir).CoverPath("A/B (3)"); !errors.Is(err, ErrNoCover) {
		t.Errorf("expected ErrNoCover, got %v", err)
	}
}
