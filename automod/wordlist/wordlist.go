package wordlist

import (
	ahocorasick "github.com/BobuSumisu/aho-corasick"
)

// WordList is a named set of literal patterns, compiled once in to an Aho-Corasick automaton. A WordList is immutable, and safe for concurrent matching.
type WordList struct {
	name     string
	patterns []string
	trie     *ahocorasick.Trie
}

// NewWordList normalizes and compiles patterns. Empty and duplicate patterns are dropped.
func NewWordList(name string, patterns []string) *WordList {
	seen := make(map[string]bool, len(patterns))
	clean := make([]string, 0, len(patterns))
	for _, p := range patterns {
		n := Normalize(p)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		clean = append(clean, n)
	}
	wl := &WordList{name: name, patterns: clean}
	if len(clean) > 0 {
		wl.trie = ahocorasick.NewTrieBuilder().AddStrings(clean).Build()
	}
	return wl
}

func (wl *WordList) Name() string {
	return wl.name
}

// Patterns returns the normalized patterns. The slice must not be modified.
func (wl *WordList) Patterns() []string {
	return wl.patterns
}

func (wl *WordList) Len() int {
	return len(wl.patterns)
}

// Match reports whether any pattern occurs as a substring of text.
func (wl *WordList) Match(text string) bool {
	return wl.MatchNormalized(Normalize(text))
}

// MatchNormalized is Match for text which already went through Normalize.
func (wl *WordList) MatchNormalized(text string) bool {
	if wl.trie == nil || text == "" {
		return false
	}
	return wl.trie.MatchFirstString(text) != nil
}

// FindFirst returns the first pattern found in text, by position.
func (wl *WordList) FindFirst(text string) (string, bool) {
	if wl.trie == nil {
		return "", false
	}
	m := wl.trie.MatchFirstString(Normalize(text))
	if m == nil {
		return "", false
	}
	return m.MatchString(), true
}
