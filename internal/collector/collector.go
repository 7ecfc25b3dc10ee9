package collector

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/epubhtml/internal/book"
)

// Collect lists the chapter sources in dir: regular files whose name contains
// marker and whose extension matches ext (case-insensitive), sorted by name.
// A missing directory yields no files and no error.
func Collect(dir, marker, ext string) ([]book.SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []book.SourceFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.Contains(name, marker) {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		files = append(files, book.SourceFile{
			Path: filepath.Join(dir, name),
			Name: name,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}
