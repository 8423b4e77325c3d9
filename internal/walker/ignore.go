package walker

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreCacheSize bounds the number of compiled ignore files kept
// between runs
const DefaultIgnoreCacheSize = 4096

// decision is the opinion of one ignore file about a path
type decision int

const (
	undecided decision = iota
	excluded
	included // re-included by a "!" pattern
)

// pattern is a single ignore line. Negation is tracked here rather than by
// the matcher so that a nested file can re-include what a parent excluded.
type pattern struct {
	match  *ignore.GitIgnore
	negate bool
}

// ruleSet is the compiled content of one ignore file
type ruleSet []pattern

// compileRules compiles gitignore lines one by one
func compileRules(lines []string) ruleSet {
	var rs ruleSet
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		negate := false
		if strings.HasPrefix(line, "!") {
			negate = true
			line = line[1:]
		}

		rs = append(rs, pattern{
			match:  ignore.CompileIgnoreLines(line),
			negate: negate,
		})
	}
	return rs
}

// decide returns the opinion of the last matching line
func (rs ruleSet) decide(rel string) decision {
	d := undecided
	for _, p := range rs {
		if !p.match.MatchesPath(rel) {
			continue
		}
		if p.negate {
			d = included
		} else {
			d = excluded
		}
	}
	return d
}

// rule is an ignore file anchored at the directory that contains it
type rule struct {
	base  string
	rules ruleSet
}

// decide evaluates the rule for an absolute path
func (r rule) decide(path string, isDir bool) decision {
	rel, err := filepath.Rel(r.base, path)
	if err != nil {
		return undecided
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		// "dir/" patterns only match with the trailing slash
		rel += "/"
	}
	return r.rules.decide(rel)
}

// ignoredBy applies a stack of rules, nearest directory last. The nearest
// file with an opinion wins.
func ignoredBy(rules []rule, path string, isDir bool) bool {
	for i := len(rules) - 1; i >= 0; i-- {
		switch rules[i].decide(path, isDir) {
		case excluded:
			return true
		case included:
			return false
		}
	}
	return false
}

type compiledIgnore struct {
	modTime time.Time
	size    int64
	rules   ruleSet
}

// IgnoreCache keeps compiled ignore files across runs. Entries are keyed by
// file path and revalidated against the file's mtime and size, so an edited
// ignore file is recompiled on the next walk. Safe for concurrent walks.
type IgnoreCache struct {
	cache *lru.Cache[string, *compiledIgnore]
}

// NewIgnoreCache creates an LRU cache of compiled ignore files
func NewIgnoreCache(size int) (*IgnoreCache, error) {
	if size <= 0 {
		size = DefaultIgnoreCacheSize
	}
	c, err := lru.New[string, *compiledIgnore](size)
	if err != nil {
		return nil, err
	}
	return &IgnoreCache{cache: c}, nil
}

// load returns the compiled ignore file at path, or nil if the file does not
// exist, cannot be read or holds no patterns. A nil cache compiles every time.
func (c *IgnoreCache) load(path string) ruleSet {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		if c != nil {
			c.cache.Remove(path)
		}
		return nil
	}

	if c != nil {
		if cached, ok := c.cache.Get(path); ok &&
			cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
			return cached.rules
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	rules := compileRules(strings.Split(string(content), "\n"))

	if c != nil {
		c.cache.Add(path, &compiledIgnore{
			modTime: info.ModTime(),
			size:    info.Size(),
			rules:   rules,
		})
	}
	return rules
}

// Len returns the number of cached ignore files
func (c *IgnoreCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
