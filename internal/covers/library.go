package covers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CoverFile is the name Calibre gives the cover image in each book folder.
const CoverFile = "cover.jpg"

// ErrNoCover is returned when a book folder has no cover image.
var ErrNoCover = errors.New("cover not found")

// Library locates files inside a Calibre library directory.
type Library struct {
	dir string
}

// NewLibrary returns a locator rooted at dir. The directory is not required
// to exist until a cover is requested.
func NewLibrary(dir string) *Library {
	return &Library{dir: filepath.Clean(dir)}
}

// Dir returns the library root.
func (l *Library) Dir() string {
	return l.dir
}

// CoverPath returns the cover image of the book stored under bookPath, a
// path relative to the library root as kept in books.path.
func (l *Library) CoverPath(bookPath string) (string, error) {
	if bookPath == "" {
		return "", ErrNoCover
	}
	folder := filepath.Join(l.dir, filepath.FromSlash(bookPath))
	if !l.contains(folder) {
		return "", fmt.Errorf("book path %q escapes the library", bookPath)
	}

	path := filepath.Join(folder, CoverFile)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCover
		}
		return "", fmt.Errorf("stat cover: %w", err)
	}
	if info.IsDir() {
		return "", ErrNoCover
	}
	return path, nil
}

func (l *Library) contains(path string) bool {
	rel, err := filepath.Rel(l.dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
