package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// textExtensions are the file types the directory source will serve.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".text": true,
}

// DirSource serves raw document text from a flat directory. Only text files
// are listed; everything else in the directory is ignored.
type DirSource struct {
	dir string
}

var _ DocumentSource = (*DirSource)(nil)

// NewDirSource creates a document source over a directory.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// List implements DocumentSource. Filenames are returned sorted.
func (s *DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if textExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetRawText implements DocumentSource.
func (s *DirSource) GetRawText(_ context.Context, filename string) (string, error) {
	// Reject path traversal out of the source directory.
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return "", err
	}
	return string(data), nil
}
