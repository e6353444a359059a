// Package exclusions implements pattern-based filtering of scan results
// against a per-root ".rahzomignore" file.
package exclusions

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// fileName is the name of the exclusions file stored at the root of a sync
// tree (not inside the metadata directory, so it syncs like any other file).
const fileName = ".rahzomignore"

// compiledPattern is a single parsed exclusion pattern, expanded from a
// trailing-slash directory pattern into the one or two globs needed to match
// both the directory itself and everything beneath it.
type compiledPattern struct {
	// source is the original (trimmed) pattern as it appeared in the file,
	// retained for Patterns() and Diff().
	source string
	// globs are the doublestar patterns this source pattern expands to.
	globs []string
}

// Exclusions is a compiled set of exclusion patterns for one sync root.
type Exclusions struct {
	patterns []compiledPattern
}

// Empty returns an Exclusions value with no patterns. It is the zero value's
// equivalent and is always returned by Load when no ".rahzomignore" file is
// present.
func Empty() *Exclusions {
	return &Exclusions{}
}

// FromPatterns compiles a list of raw pattern lines into an Exclusions
// matcher. Blank lines and lines beginning with "#" are ignored. An invalid
// glob pattern fails the whole construction, identifying the offending
// pattern.
func FromPatterns(lines []string) (*Exclusions, error) {
	excl := &Exclusions{}
	for _, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		normalized := strings.ReplaceAll(trimmed, "\\", "/")

		var globs []string
		if strings.HasSuffix(normalized, "/") {
			base := strings.TrimSuffix(normalized, "/")
			globs = []string{base, base + "/**"}
		} else {
			globs = []string{normalized}
		}

		for _, g := range globs {
			if !doublestar.ValidatePattern(g) {
				return nil, errors.Errorf("invalid exclusion pattern: %q", trimmed)
			}
		}

		excl.patterns = append(excl.patterns, compiledPattern{source: trimmed, globs: globs})
	}
	return excl, nil
}

// Load reads "<root>/.rahzomignore" and compiles its patterns. A missing
// file yields an empty exclusion set, not an error.
func Load(root string) (*Exclusions, error) {
	file, err := os.Open(FilePath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, errors.Wrap(err, "unable to open exclusions file")
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to read exclusions file")
	}

	return FromPatterns(lines)
}

// FilePath returns the path to the exclusions file for the given root.
func FilePath(root string) string {
	return filepath.Join(root, fileName)
}

// IsExcluded reports whether relativePath (already relative to the scan
// root) should be filtered from scan results. isDir indicates whether the
// path names a directory.
//
// A path is excluded if it matches any compiled glob directly, if (for
// directories) the path with a trailing slash matches, or if any ancestor
// directory of the path matches a pattern — so that a single directory
// pattern excludes everything beneath it.
func (e *Exclusions) IsExcluded(relativePath string, isDir bool) bool {
	if e == nil || len(e.patterns) == 0 {
		return false
	}

	normalized := strings.ReplaceAll(relativePath, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "/")

	if e.matchesAny(normalized) {
		return true
	}

	if isDir && e.matchesAny(normalized+"/") {
		return true
	}

	// Check every ancestor directory (as a directory-style path) for a match,
	// so that "node_modules/" excludes "node_modules/lodash/index.js".
	current := normalized
	for {
		idx := strings.LastIndexByte(current, '/')
		if idx < 0 {
			break
		}
		current = current[:idx]
		if current == "" {
			break
		}
		if e.matchesAny(current + "/") {
			return true
		}
	}

	return false
}

// matchesAny reports whether candidate matches any compiled glob.
func (e *Exclusions) matchesAny(candidate string) bool {
	for _, p := range e.patterns {
		for _, glob := range p.globs {
			if ok, _ := doublestar.Match(glob, candidate); ok {
				return true
			}
		}
	}
	return false
}

// Patterns returns the raw (trimmed) pattern strings, in file order.
func (e *Exclusions) Patterns() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = p.source
	}
	return out
}

// Len returns the number of compiled patterns.
func (e *Exclusions) Len() int {
	if e == nil {
		return 0
	}
	return len(e.patterns)
}

// IsEmpty reports whether there are no patterns.
func (e *Exclusions) IsEmpty() bool {
	return e.Len() == 0
}

// Diff compares two exclusion sets (e.g. the left and right root's
// independent ".rahzomignore" files) and reports patterns unique to each
// side.
type Diff struct {
	OnlyLeft  []string
	OnlyRight []string
	IsSame    bool
}

// Diff compares the receiver (as "left") against other (as "right").
func (e *Exclusions) Diff(other *Exclusions) Diff {
	leftSet := map[string]bool{}
	for _, p := range e.Patterns() {
		leftSet[p] = true
	}
	rightSet := map[string]bool{}
	for _, p := range other.Patterns() {
		rightSet[p] = true
	}

	var onlyLeft, onlyRight []string
	for _, p := range e.Patterns() {
		if !rightSet[p] {
			onlyLeft = append(onlyLeft, p)
		}
	}
	for _, p := range other.Patterns() {
		if !leftSet[p] {
			onlyRight = append(onlyRight, p)
		}
	}

	return Diff{
		OnlyLeft:  onlyLeft,
		OnlyRight: onlyRight,
		IsSame:    len(onlyLeft) == 0 && len(onlyRight) == 0,
	}
}

// DefaultTemplate returns starter ".rahzomignore" content with common
// exclusion patterns and a short syntax comment, for callers (e.g. a "create
// exclusions file" UI action) that want to seed a new root.
func DefaultTemplate() string {
	return `# Rahzom exclusion patterns
# One pattern per line, supports glob syntax:
#   *       - matches any characters except path separator
#   **      - matches any characters including path separator
#   ?       - matches single character
#   [abc]   - matches character class
#   {a,b}   - matches alternatives
#   dir/    - trailing / matches dir itself and everything beneath it

# Temporary files
*.tmp
*.temp
~*
*~

# OS files
.DS_Store
Thumbs.db
desktop.ini
ehthumbs.db

# Version control
.git/
.svn/
.hg/

# Dependencies & build
node_modules/
__pycache__/
*.pyc
.cache/
target/
build/
dist/

# IDE
.idea/
.vscode/
*.swp
*.swo
`
}
