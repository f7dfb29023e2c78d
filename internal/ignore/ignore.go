// Package ignore provides glob-style exclude pattern matching for corpus
// paths. Patterns follow the familiar ignore-file syntax: `*` matches within
// a path segment, `**` crosses segments, a trailing `/` restricts the pattern
// to directories, a leading `/` anchors it to the corpus root, and a leading
// `!` negates an earlier match. Later patterns win over earlier ones.
package ignore

import (
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled exclude patterns and provides thread-safe matching.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	pattern  string
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
	anchored bool
}

// New creates a Matcher from the given patterns. Empty patterns and comment
// lines (leading #) are skipped.
func New(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		m.Add(p)
	}
	return m
}

// Add compiles a single pattern and appends it to the rule list.
func (m *Matcher) Add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := rule{pattern: pattern}

	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	// A pattern with an internal slash is root-relative: "docs/drafts"
	// means "/docs/drafts", not "**/docs/drafts".
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") && !strings.HasPrefix(pattern, "*") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + globToRegex(pattern) + "$")

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// Match reports whether the slash-separated relative path is excluded.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "./")

	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := false
	for _, r := range m.rules {
		if matchRule(path, isDir, r) {
			excluded = !r.negation
		}
	}
	return excluded
}

// matchRule checks a single rule. Directory-only patterns also match files
// inside the matched directory: for "drafts/", "drafts/note.md" matches.
func matchRule(path string, isDir bool, r rule) bool {
	parts := strings.Split(path, "/")
	basename := parts[len(parts)-1]

	if r.anchored {
		if r.regex.MatchString(path) {
			if r.dirOnly {
				return isDir
			}
			return true
		}
		if r.dirOnly {
			// A parent directory matching the pattern excludes everything
			// beneath it.
			for i := range parts[:len(parts)-1] {
				if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	if r.regex.MatchString(basename) || r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// globToRegex converts one glob pattern to a regular expression fragment.
func globToRegex(pattern string) string {
	var out strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// "**/" spans zero or more directories
					out.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				if i == 0 || pattern[i-1] == '/' {
					out.WriteString(".*")
					i += 2
					continue
				}
			}
			out.WriteString("[^/]*")
			i++
		case '?':
			out.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				out.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				out.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '.', '+', '^', '$', '(', ')', '{', '}', '|':
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}
