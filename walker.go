package filedex

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPathWalker walks a root (file or directory) and returns every
// regular file beneath it, skipping anything matched by an ignore glob.
// Grounded on the pack's universal use of filepath.WalkDir for directory
// traversal (e.g. standardbeagle-lci's addWatches), with doublestar glob
// matching layered on top for ignore patterns — no pack repo wraps
// directory walking itself in a third-party library.
type DefaultPathWalker struct {
	IgnoreGlobs []string
}

func (w DefaultPathWalker) Walk(root FilePath) ([]FilePath, error) {
	info, err := os.Stat(string(root))
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if w.ignored(string(root)) {
			return nil, nil
		}
		return []FilePath{root}, nil
	}

	var out []FilePath
	err = filepath.WalkDir(string(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, FilePath(path))
		}
		return nil
	})
	return out, err
}

func (w DefaultPathWalker) ignored(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, g := range w.IgnoreGlobs {
		if ok, _ := doublestar.Match(g, slashed); ok {
			return true
		}
	}
	return false
}
