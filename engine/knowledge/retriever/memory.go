package retriever

import (
	"context"
	"strings"
	"sync"
	"unicode"
)

// Document is a passage stored in the in-process corpus.
type Document struct {
	Text        string
	ContentType string
	Tags        []string
}

type indexedDocument struct {
	Document
	terms map[string]struct{}
}

// MemoryBackend scores documents by term overlap with the query and hints.
// It backs standalone deployments and tests.
type MemoryBackend struct {
	mu     sync.RWMutex
	corpus map[string][]indexedDocument
}

func NewMemoryBackend(corpus map[string][]Document) *MemoryBackend {
	b := &MemoryBackend{corpus: make(map[string][]indexedDocument, len(corpus))}
	for ns, docs := range corpus {
		for _, d := range docs {
			b.Add(ns, d)
		}
	}
	return b
}

// Add appends a document to namespace ns.
func (b *MemoryBackend) Add(ns string, doc Document) {
	terms := make(map[string]struct{})
	for _, t := range tokenize(doc.Text) {
		terms[t] = struct{}{}
	}
	for _, tag := range doc.Tags {
		for _, t := range tokenize(tag) {
			terms[t] = struct{}{}
		}
	}
	b.mu.Lock()
	b.corpus[ns] = append(b.corpus[ns], indexedDocument{Document: doc, terms: terms})
	b.mu.Unlock()
}

// Search returns documents sharing at least one term with the query, scored
// by the fraction of query terms they contain.
func (b *MemoryBackend) Search(ctx context.Context, q Query) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTerms := uniqueTerms(q.Text, q.Hints)
	if len(queryTerms) == 0 {
		return nil, nil
	}
	b.mu.RLock()
	docs := b.corpus[q.Namespace]
	b.mu.RUnlock()
	var out []Chunk
	for _, d := range docs {
		hits := 0
		for _, t := range queryTerms {
			if _, ok := d.terms[t]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, Chunk{
			Text:        d.Text,
			Namespace:   q.Namespace,
			Score:       float64(hits) / float64(len(queryTerms)),
			ContentType: d.ContentType,
		})
	}
	return rankChunks(out, q.TopK), nil
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "how": {}, "what": {}, "should": {},
	"can": {}, "are": {}, "you": {}, "your": {}, "this": {}, "that": {}, "from": {},
	"into": {}, "when": {}, "does": {}, "my": {}, "is": {}, "to": {}, "of": {}, "in": {},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func uniqueTerms(text string, hints []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		for _, t := range tokenize(s) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	add(text)
	for _, h := range hints {
		add(h)
	}
	return out
}
