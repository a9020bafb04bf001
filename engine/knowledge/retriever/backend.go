package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/liftwise/coachgate/pkg/config"
)

const (
	BackendMemory = "memory"
	BackendHTTP   = "http"
)

// ErrRetrievalUnavailable marks a backend that could not answer a query.
var ErrRetrievalUnavailable = errors.New("knowledge: retrieval backend unavailable")

// Query asks one namespace for the chunks most relevant to Text.
type Query struct {
	Namespace string   `json:"namespace"`
	Text      string   `json:"text"`
	Hints     []string `json:"hints,omitempty"`
	TopK      int      `json:"top_k"`
}

// Chunk is one passage returned by a backend. Score is the backend relevance
// in [0,1]; higher is better.
type Chunk struct {
	Text        string         `json:"text"`
	Namespace   string         `json:"namespace"`
	Score       float64        `json:"score"`
	ContentType string         `json:"content_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Backend searches a single knowledge namespace.
type Backend interface {
	Search(ctx context.Context, q Query) ([]Chunk, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, q Query) ([]Chunk, error)

func (f BackendFunc) Search(ctx context.Context, q Query) ([]Chunk, error) {
	return f(ctx, q)
}

// rankChunks orders by score desc and keeps the input order for ties, then
// truncates to topK when topK is positive.
func rankChunks(chunks []Chunk, topK int) []Chunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks
}

// New builds the backend selected by cfg.Backend.
func New(cfg *config.KnowledgeConfig) (Backend, error) {
	if cfg == nil {
		return nil, errors.New("knowledge: config is required")
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryBackend(DefaultCorpus()), nil
	case BackendHTTP:
		return NewHTTPBackend(cfg)
	default:
		return nil, fmt.Errorf("knowledge: unknown backend %q", cfg.Backend)
	}
}
