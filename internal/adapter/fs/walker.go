package fs

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"finrag/internal/port"
)

// Walker lists files under a root whose relative path matches an include
// pattern and no exclude pattern. Matching is case-insensitive, so "*.pdf"
// also picks up "REPORT.PDF".
type Walker struct {
	includes []string
	excludes []string
	descend  bool
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"*.pdf"}
	}
	w := &Walker{
		includes: lower(includes),
		excludes: lower(excludes),
	}
	for _, p := range w.includes {
		if strings.Contains(p, "/") {
			w.descend = true
		}
	}
	return w
}

func lower(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = strings.ToLower(filepath.ToSlash(p))
	}
	return out
}

// Walk returns matching regular files in lexical order with absolute paths.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel := strings.ToLower(filepath.ToSlash(relPath))

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !w.descend || w.shouldExclude(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if w.shouldInclude(rel) && !w.shouldExclude(rel) {
			info, err := d.Info()
			if err != nil {
				return err
			}
			files = append(files, port.FileInfo{
				Path:    path,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}

		return nil
	})

	return files, err
}

// Matches reports whether a path relative to the walk root would be listed.
func (w *Walker) Matches(rel string) bool {
	rel = strings.ToLower(filepath.ToSlash(rel))
	if !w.descend && strings.Contains(rel, "/") {
		return false
	}
	return w.shouldInclude(rel) && !w.shouldExclude(rel)
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

var _ port.FileWalker = (*Walker)(nil)
