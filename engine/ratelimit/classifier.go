package ratelimit

import "strings"

type Class string

const (
	ClassDefault   Class = "default"
	ClassExpensive Class = "expensive"
)

// Classifier marks paths on the expensive allow-list. Entries match exactly
// or as a prefix ending on a path segment; a trailing `*` makes an entry a
// plain prefix.
type Classifier struct {
	exact    []string
	prefixes []string
}

func NewClassifier(expensive []string) *Classifier {
	c := &Classifier{}
	for _, p := range expensive {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			c.prefixes = append(c.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		if len(p) > 1 {
			p = strings.TrimSuffix(p, "/")
		}
		c.exact = append(c.exact, p)
	}
	return c
}

func (c *Classifier) Classify(path string) Class {
	for _, p := range c.prefixes {
		if strings.HasPrefix(path, p) {
			return ClassExpensive
		}
	}
	for _, p := range c.exact {
		if MatchSegmentPrefix(path, p) {
			return ClassExpensive
		}
	}
	return ClassDefault
}

// MatchSegmentPrefix reports whether path equals pattern or continues it
// after a `/`.
func MatchSegmentPrefix(path, pattern string) bool {
	if path == pattern {
		return true
	}
	return strings.HasPrefix(path, pattern) &&
		(strings.HasSuffix(pattern, "/") || path[len(pattern)] == '/')
}
