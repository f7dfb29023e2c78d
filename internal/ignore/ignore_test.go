package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_BasicPatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		want     bool
	}{
		{"exact basename", []string{"notes.txt"}, "notes.txt", false, true},
		{"basename anywhere", []string{"notes.txt"}, "a/b/notes.txt", false, true},
		{"no match", []string{"notes.txt"}, "other.txt", false, false},
		{"star extension", []string{"*.log"}, "app.log", false, true},
		{"star extension nested", []string{"*.log"}, "logs/app.log", false, true},
		{"star does not cross slash", []string{"a*.md"}, "a/b.md", false, false},
		{"question mark", []string{"doc?.md"}, "doc1.md", false, true},
		{"question mark no match", []string{"doc?.md"}, "doc12.md", false, false},
		{"character class", []string{"doc[0-9].md"}, "doc7.md", false, true},
		{"comment skipped", []string{"# just a comment"}, "anything", false, false},
		{"empty skipped", []string{"   "}, "anything", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.patterns...)
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_DoubleStar(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"leading doublestar", "**/drafts", "drafts", true, true},
		{"leading doublestar nested", "**/drafts", "a/b/drafts", true, true},
		{"doublestar dir contents", "**/.git/**", ".git/objects/ab", false, true},
		{"doublestar dir contents nested", "**/.git/**", "sub/.git/config", false, true},
		{"doublestar no match", "**/.git/**", "src/git.md", false, false},
		{"trailing doublestar", "build/**", "build/out/a.txt", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.pattern)
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_DirectoryOnly(t *testing.T) {
	m := New("drafts/")

	// Given a directory-only pattern
	// Then it matches the directory itself
	assert.True(t, m.Match("drafts", true))
	// And files inside it
	assert.True(t, m.Match("drafts/note.md", false))
	assert.True(t, m.Match("a/drafts/note.md", false))
	// But not a plain file with the same name
	assert.False(t, m.Match("drafts", false))
}

func TestMatcher_Anchored(t *testing.T) {
	m := New("/tmp.md")

	assert.True(t, m.Match("tmp.md", false))
	assert.False(t, m.Match("sub/tmp.md", false))

	// Internal slash anchors to the root too
	m2 := New("docs/drafts")
	assert.True(t, m2.Match("docs/drafts", true))
	assert.False(t, m2.Match("x/docs/drafts", true))
}

func TestMatcher_Negation(t *testing.T) {
	// Given an exclude with a later negation
	m := New("*.log", "!keep.log")

	// Then the negated path is not excluded
	assert.True(t, m.Match("app.log", false))
	assert.False(t, m.Match("keep.log", false))

	// And order matters: a later exclude wins over an earlier negation
	m2 := New("!keep.log", "*.log")
	assert.True(t, m2.Match("keep.log", false))
}

func TestMatcher_PathNormalization(t *testing.T) {
	m := New("*.tmp")

	assert.True(t, m.Match(`sub\file.tmp`, false))
	assert.True(t, m.Match("./file.tmp", false))
}

func TestMatcher_Empty(t *testing.T) {
	m := New()

	assert.False(t, m.Match("anything.md", false))
	assert.False(t, m.Match("any/dir", true))
}
