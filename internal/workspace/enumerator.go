package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Enumerator walks a workspace root and streams the relative paths of every
// file worth indexing, applying an exclusion filter along the way.
type Enumerator interface {
	Enumerate(ctx context.Context, root string, excludes []string) (<-chan string, error)
}

// WalkEnumerator is the default filesystem-backed Enumerator, grounded on
// the teacher's Indexer.FullIndex filepath.WalkDir loop.
type WalkEnumerator struct{}

// NewWalkEnumerator returns the default Enumerator.
func NewWalkEnumerator() *WalkEnumerator {
	return &WalkEnumerator{}
}

// Enumerate walks root in a background goroutine, sending workspace-relative
// paths on the returned channel until the walk completes or ctx is
// cancelled. The channel is closed when the walk is done.
func (e *WalkEnumerator) Enumerate(ctx context.Context, root string, excludes []string) (<-chan string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	filter := NewFileFilter(excludes...)
	out := make(chan string)

	go func() {
		defer close(out)

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}

			relPath, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			relPath = filepath.ToSlash(relPath)

			if d.IsDir() {
				if relPath == "." {
					return nil
				}
				if filter.ShouldExclude(relPath) {
					return filepath.SkipDir
				}
				return nil
			}

			if filter.ShouldExclude(relPath) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() == 0 {
				return nil
			}

			if isLikelyBinaryFile(path) {
				return nil
			}

			select {
			case out <- relPath:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}()

	return out, nil
}

// isLikelyBinaryFile sniffs the first bytes of path for a NUL byte, the
// same heuristic FileFilter.IsBinary applies to already-read content.
func isLikelyBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return IsBinary(buf[:n])
}

// ReadFile reads path's content as a string, skipping files that turn out
// to be binary despite passing the initial sniff (e.g. a NUL byte beyond
// the first 512 bytes).
func ReadFile(path string) (string, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if IsBinary(content) {
		return "", false, nil
	}
	return string(content), true, nil
}

// SplitPath returns a path's base name without extension and its
// extension, lowercased, for token-index seeding.
func SplitPath(path string) (base, ext string) {
	name := filepath.Base(path)
	ext = strings.TrimPrefix(filepath.Ext(name), ".")
	base = strings.TrimSuffix(name, filepath.Ext(name))
	return base, strings.ToLower(ext)
}
