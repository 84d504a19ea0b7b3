// Package matcher compiles the requested filename patterns into a
// predicate that archive scans and manifest filters share.
//
// Two modes exist: literal mode compares candidates against the pattern
// strings verbatim, regex mode accepts a candidate when any compiled
// pattern matches it. If any pattern contains a path separator the
// matcher compares full entry paths; otherwise both candidate and
// pattern are reduced to their basename first.
package matcher

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is an immutable predicate over entry names. It is built once
// per run and shared read-only by every archive scan.
type Matcher struct {
	regexps   []*regexp.Regexp
	literals  []string
	exactPath bool
	regex     bool
}

// New builds a Matcher from the user-supplied patterns. In regex mode
// every pattern must compile; the first malformed pattern fails the
// whole build. Patterns must be non-empty as a set, enforced by the
// caller's argument validation.
func New(regex bool, patterns []string) (*Matcher, error) {
	m := &Matcher{
		regex:     regex,
		exactPath: anyContainsSeparator(patterns),
	}

	if !regex {
		m.literals = patterns
		return m, nil
	}

	m.regexps = make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", p, err)
		}
		m.regexps = append(m.regexps, re)
	}

	return m, nil
}

func anyContainsSeparator(patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(p, "/") {
			return true
		}
	}
	return false
}

// Match reports whether the given entry path satisfies the pattern set.
// When no pattern carries a path separator the candidate is reduced to
// its basename before comparison. An empty candidate (or one reducing
// to an empty basename, such as a bare directory entry) never matches.
func (m *Matcher) Match(path string) bool {
	if !m.exactPath {
		if i := strings.LastIndexByte(path, '/'); i >= 0 {
			path = path[i+1:]
		}
	}

	if path == "" {
		return false
	}

	if m.regex {
		for _, re := range m.regexps {
			if re.MatchString(path) {
				return true
			}
		}
		return false
	}

	for _, lit := range m.literals {
		if lit == path {
			return true
		}
	}
	return false
}

// Regex reports whether the matcher was built in regex mode. The
// scanner's success rule differs between the two modes.
func (m *Matcher) Regex() bool {
	return m.regex
}

// PatternCount returns the number of distinct literal patterns. It is
// zero in regex mode.
func (m *Matcher) PatternCount() int {
	seen := make(map[string]struct{}, len(m.literals))
	for _, lit := range m.literals {
		seen[lit] = struct{}{}
	}
	return len(seen)
}
