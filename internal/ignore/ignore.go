// Package ignore decides which paths are excluded from snapshots.
//
// Patterns are fnmatch-style globs (*, ?, [seq]). A pattern ending in a
// path separator matches directories; anything else matches files. The
// default list covers Python caches, virtual environments, build output,
// and editor/OS litter; projects append their own patterns after it.
package ignore

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultPatterns is the built-in exclusion list, evaluated before any
// project-supplied patterns.
var DefaultPatterns = []string{
	// Python
	"__pycache__/",
	"*.pyc",
	"*.pyo",
	"*.pyd",
	".Python",
	"*.py[cod]",
	"*$py.class",

	// Virtual environments
	"venv/",
	".venv/",
	"env/",
	".env/",
	"ENV/",

	// Git (legacy, if still present)
	".git/",

	// TPC internal
	".tpc/snapshots/",
	"TPC Builds/",

	// Build artifacts
	"build/",
	"dist/",
	"*.spec",
	"*.egg-info/",

	// IDE/Editor
	".idea/",
	".vscode/",
	"*.swp",
	"*.swo",
	"*~",

	// OS files
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",

	// Node (in case of mixed projects)
	"node_modules/",

	// Common large/generated files
	"*.log",
	"*.sqlite",
	"*.db",
}

// controlDir is the hidden per-project directory holding configuration
// and the snapshot store. It is always excluded, regardless of patterns:
// snapshotting the snapshot store would grow without bound, and restoring
// a stale project.json over the live one would lose settings.
const controlDir = ".tpc"

// rule is a single compiled pattern. Directory rules match if any path
// component matches the glob, or if the glob appears anywhere in the full
// relative path. File rules match the bare filename or the full path.
type rule struct {
	dir  bool
	name glob.Glob // component (dir) or filename (file) matcher
	full glob.Glob // full relative path matcher
}

// Matcher evaluates exclusion rules against paths inside a project root.
// It is pure: Match performs no I/O and is safe for repeated calls.
type Matcher struct {
	root  string
	rules []rule
}

// NewMatcher compiles the default pattern list plus custom patterns, in
// order. Patterns that fail to compile are dropped.
func NewMatcher(root string, custom []string) *Matcher {
	patterns := make([]string, 0, len(DefaultPatterns)+len(custom))
	patterns = append(patterns, DefaultPatterns...)
	patterns = append(patterns, custom...)

	m := &Matcher{root: root, rules: make([]rule, 0, len(patterns))}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		r, err := compileRule(p)
		if err != nil {
			continue
		}
		m.rules = append(m.rules, r)
	}
	return m
}

func compileRule(pattern string) (rule, error) {
	if trimmed, ok := dirPattern(pattern); ok {
		name, err := glob.Compile(trimmed)
		if err != nil {
			return rule{}, err
		}
		// The full-path rule matches the directory name appearing anywhere
		// in the relative path, so deeply nested ignored directories are
		// caught too.
		full, err := glob.Compile("*" + trimmed + "*")
		if err != nil {
			return rule{}, err
		}
		return rule{dir: true, name: name, full: full}, nil
	}

	name, err := glob.Compile(pattern)
	if err != nil {
		return rule{}, err
	}
	return rule{name: name, full: name}, nil
}

// dirPattern reports whether p is a directory pattern and returns it with
// the trailing separator removed.
func dirPattern(p string) (string, bool) {
	if strings.HasSuffix(p, "/") {
		return strings.TrimSuffix(p, "/"), true
	}
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return strings.TrimSuffix(p, string(filepath.Separator)), true
	}
	return p, false
}

// Match reports whether path must be excluded from a snapshot. The path
// may be absolute or relative to the matcher's root. Paths that cannot be
// expressed relative to the root are excluded.
func (m *Matcher) Match(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(m.root, path)
		if err != nil {
			return true
		}
		rel = r
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return true
	}

	// The control directory is never captured.
	if rel == controlDir || strings.HasPrefix(rel, controlDir+"/") {
		return true
	}

	parts := strings.Split(rel, "/")
	base := parts[len(parts)-1]

	for _, r := range m.rules {
		if r.dir {
			for _, part := range parts {
				if r.name.Match(part) {
					return true
				}
			}
			if r.full.Match(rel) {
				return true
			}
			continue
		}
		if r.name.Match(base) || r.full.Match(rel) {
			return true
		}
	}
	return false
}
