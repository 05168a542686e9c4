// Package workspace enumerates a workspace's files and watches them for
// changes, filtering out paths the index has no business touching.
package workspace

import (
	"path/filepath"
	"strings"
)

// DefaultExcludePatterns is the built-in exclusion set unioned with any
// caller-supplied exclude_patterns (spec §4.5: "the configured exclusion
// globs unioned with a default exclusion set: version-control, dependency
// caches, build outputs, editor scratch").
var DefaultExcludePatterns = []string{
	// Version control
	".git/**", ".hg/**", ".svn/**",

	// Dependency caches
	"node_modules/**", "vendor/**", "venv/**", ".venv/**",
	"__pycache__/**", ".pytest_cache/**",
	".gradle/**", ".m2/**", ".npm/**", ".yarn/**",

	// Build outputs
	"target/**", "build/**", "dist/**", "out/**", "bin/**",

	// Editor scratch
	".idea/**", ".vscode/**", "*.swp", "*.swo", "*~", ".DS_Store",

	// Generated / lock files
	"*.min.js", "*.min.css", "*.map", "*.pb.go",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"go.sum", "poetry.lock", "Cargo.lock",

	// Binary/media
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico", "*.svg",
	"*.bmp", "*.tiff", "*.webp", "*.psd",
	"*.woff", "*.woff2", "*.ttf", "*.eot", "*.otf",
	"*.zip", "*.tar", "*.gz", "*.rar", "*.7z", "*.bz2", "*.xz",
	"*.jar", "*.war", "*.ear",
	"*.exe", "*.dll", "*.so", "*.dylib", "*.a", "*.lib",
	"*.class", "*.pyc", "*.pyo", "*.o", "*.obj",
	"*.pdf", "*.doc", "*.docx", "*.xls", "*.xlsx", "*.ppt", "*.pptx",
	"*.db", "*.sqlite", "*.sqlite3",
	"*.mp3", "*.mp4", "*.wav", "*.avi", "*.mov", "*.mkv",
}

// FileFilter determines which files should be considered for indexing.
type FileFilter struct {
	patterns []string
}

// NewFileFilter creates a FileFilter from the default patterns unioned with
// any caller-supplied extras.
func NewFileFilter(extra ...string) *FileFilter {
	patterns := make([]string, 0, len(DefaultExcludePatterns)+len(extra))
	patterns = append(patterns, DefaultExcludePatterns...)
	patterns = append(patterns, extra...)
	return &FileFilter{patterns: patterns}
}

// ShouldExclude returns true if relPath (workspace-root-relative) matches
// any exclusion pattern.
func (f *FileFilter) ShouldExclude(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range f.patterns {
		if matchPattern(pattern, relPath) {
			return true
		}
	}
	return false
}

// matchPattern matches a file path against a glob pattern, supporting **
// for directory matching and * for filename matching.
func matchPattern(pattern, path string) bool {
	if strings.HasPrefix(pattern, "**/") {
		rest := pattern[3:]
		if matchSimplePattern(rest, path) {
			return true
		}
		parts := strings.Split(path, "/")
		for i := range parts {
			subPath := strings.Join(parts[i:], "/")
			if matchSimplePattern(rest, subPath) {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(pattern, "/**") {
		dir := pattern[:len(pattern)-3]
		if path == dir || strings.HasPrefix(path, dir+"/") {
			return true
		}
		parts := strings.Split(path, "/")
		for i, part := range parts {
			if part == dir && i < len(parts)-1 {
				return true
			}
		}
		return false
	}

	return matchSimplePattern(pattern, path)
}

// matchSimplePattern matches a simple glob pattern (with * but not **).
func matchSimplePattern(pattern, name string) bool {
	if strings.HasPrefix(pattern, "*.") {
		ext := pattern[1:]
		return strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext))
	}

	if pattern == name {
		return true
	}

	if strings.HasPrefix(pattern, "*") {
		baseName := filepath.Base(name)
		suffix := pattern[1:]
		return strings.HasSuffix(strings.ToLower(baseName), strings.ToLower(suffix))
	}

	matched, _ := filepath.Match(pattern, name)
	if matched {
		return true
	}

	baseName := filepath.Base(name)
	matched, _ = filepath.Match(pattern, baseName)
	return matched
}

// IsBinary reports whether content looks binary, by checking for a NUL
// byte in the first 512 bytes — the heuristic git itself uses.
func IsBinary(content []byte) bool {
	checkLen := min(len(content), 512)
	for i := range checkLen {
		if content[i] == 0 {
			return true
		}
	}
	return false
}

// Extension returns a path's extension without the leading dot.
func Extension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
