// Package rag assembles retrieval context for AI endpoints, reusing cached
// context when the retrieval-relevant inputs repeat.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liftwise/coachgate/engine/cache"
	"github.com/liftwise/coachgate/engine/knowledge/namespace"
	"github.com/liftwise/coachgate/engine/knowledge/retriever"
	"github.com/liftwise/coachgate/engine/profile"
	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const maxChunksCeiling = 64

// ContextCache is the slice of the rag-context cache the orchestrator needs.
type ContextCache interface {
	Key(endpoint string, fields map[string]any, profileFingerprint string) string
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

var _ ContextCache = (*cache.RAGContextCache)(nil)

type Request struct {
	EndpointPath string
	Raw          []byte
	User         *profile.UserContext
	MaxChunks    int
	UseCache     bool
	CacheTTL     time.Duration
	Format       Format
}

// Result is the assembled context. Degraded marks a retrieval that failed
// for every selected namespace; Partial marks one that failed for some.
type Result struct {
	Context    string                `json:"context"`
	Chunks     []Chunk               `json:"chunks,omitempty"`
	Namespaces []namespace.Selection `json:"namespaces"`
	Descriptor namespace.Descriptor  `json:"descriptor"`
	Cached     bool                  `json:"cached"`
	Degraded   bool                  `json:"degraded"`
	Partial    bool                  `json:"partial"`
}

// entry is the cached form. Formatting happens on read so one entry serves
// every output format.
type entry struct {
	Chunks     []Chunk               `json:"chunks"`
	Namespaces []namespace.Selection `json:"namespaces"`
	Descriptor namespace.Descriptor  `json:"descriptor"`
	Partial    bool                  `json:"partial,omitempty"`
}

type Orchestrator struct {
	backend          retriever.Backend
	selector         *namespace.Selector
	cache            ContextCache
	transformers     *Registry
	maxConcurrency   int
	searchTimeout    time.Duration
	defaultMaxChunks int
	tracer           trace.Tracer
}

type Option func(*Orchestrator)

// WithTransformers replaces the built-in transformer registry.
func WithTransformers(r *Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.transformers = r
		}
	}
}

// New wires an orchestrator. A nil cache disables context caching.
func New(
	backend retriever.Backend,
	selector *namespace.Selector,
	contextCache ContextCache,
	cfg *config.KnowledgeConfig,
	opts ...Option,
) (*Orchestrator, error) {
	if backend == nil {
		return nil, errors.New("rag: retrieval backend is required")
	}
	if selector == nil {
		return nil, errors.New("rag: namespace selector is required")
	}
	if cfg == nil {
		def := config.Default().Knowledge
		cfg = &def
	}
	o := &Orchestrator{
		backend:          backend,
		selector:         selector,
		cache:            contextCache,
		transformers:     DefaultRegistry(),
		maxConcurrency:   max(1, cfg.MaxConcurrency),
		searchTimeout:    cfg.Timeout,
		defaultMaxChunks: max(1, cfg.DefaultMaxChunks),
		tracer:           otel.Tracer("coachgate.knowledge.rag"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) Transformers() *Registry {
	return o.transformers
}

// GetContext returns the retrieval context for req. Retrieval failures yield
// an empty degraded Result rather than an error; only an unparsable body or
// an unknown format is reported as an error.
func (o *Orchestrator) GetContext(ctx context.Context, req Request) (res *Result, err error) {
	transformer, endpoint := o.transformers.Lookup(req.EndpointPath)
	ctx, span := o.tracer.Start(ctx, "coachgate.knowledge.rag.get_context", trace.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if res != nil {
			span.SetAttributes(
				attribute.Bool("cached", res.Cached),
				attribute.Bool("degraded", res.Degraded),
				attribute.Int("chunks", len(res.Chunks)),
			)
		}
		span.End()
	}()
	log := logger.FromContext(ctx).With("endpoint", endpoint)

	if !req.Format.Valid() {
		recordRequest(ctx, endpoint, resultInvalid)
		return nil, fmt.Errorf("rag: unknown format %q", req.Format)
	}
	parsed, err := parseRequest(req.Raw)
	if err != nil {
		recordRequest(ctx, endpoint, resultInvalid)
		return nil, err
	}
	maxChunks := o.maxChunks(req.MaxChunks)

	var key string
	useCache := req.UseCache && o.cache != nil
	if useCache {
		fields := keyFields(parsed, transformer.KeyFields)
		key = o.cache.Key(normalizePath(req.EndpointPath), map[string]any{
			"fields":     fields,
			"max_chunks": maxChunks,
		}, req.User.RetrievalFingerprint())
		var cached entry
		hit, cerr := o.cache.Get(ctx, key, &cached)
		if cerr != nil {
			log.Warn("RAG context cache lookup failed, treating as miss", "error", cerr)
		}
		if hit {
			recordRequest(ctx, endpoint, resultHit)
			return render(&cached, req.Format, true), nil
		}
	}

	desc := namespace.Normalize(enrich(transformer.Transform(parsed, req.User), req.User))
	selections, selErr := o.selector.SelectDetailed(desc)
	if errors.Is(selErr, namespace.ErrInvalidDescriptor) {
		log.Debug("Descriptor matched no namespace, using default subset", "goal", desc.Goal, "hints", desc.Hints)
	}

	start := time.Now()
	results, failed := o.retrieve(ctx, desc, selections, maxChunks)
	recordRetrievalDuration(ctx, endpoint, time.Since(start))

	if failed == len(selections) {
		log.Warn("Knowledge retrieval unavailable, returning empty context", "namespaces", len(selections))
		recordRequest(ctx, endpoint, resultDegraded)
		return &Result{Namespaces: selections, Descriptor: desc, Degraded: true}, nil
	}
	e := &entry{
		Chunks:     mergeChunks(selections, results, maxChunks),
		Namespaces: selections,
		Descriptor: desc,
		Partial:    failed > 0,
	}
	if useCache {
		if serr := o.cache.Set(ctx, key, e, req.CacheTTL); serr != nil {
			log.Warn("RAG context cache write failed", "error", serr)
		}
	}
	if e.Partial {
		recordRequest(ctx, endpoint, resultPartial)
	} else {
		recordRequest(ctx, endpoint, resultMiss)
	}
	return render(e, req.Format, false), nil
}

func (o *Orchestrator) maxChunks(requested int) int {
	if requested <= 0 {
		return o.defaultMaxChunks
	}
	return min(requested, maxChunksCeiling)
}

// retrieve queries every selected namespace with bounded parallelism and
// returns the per-namespace results plus the count of failed namespaces.
func (o *Orchestrator) retrieve(
	ctx context.Context,
	desc namespace.Descriptor,
	selections []namespace.Selection,
	maxChunks int,
) ([][]retriever.Chunk, int) {
	results := make([][]retriever.Chunk, len(selections))
	errs := make([]error, len(selections))
	wmax := maxWeight(selections)
	hints := desc.Signals()
	text := desc.QueryText
	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, sel := range selections {
		g.Go(func() error {
			callCtx := ctx
			if o.searchTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, o.searchTimeout)
				defer cancel()
			}
			chunks, err := o.backend.Search(callCtx, retriever.Query{
				Namespace: sel.ID,
				Text:      text,
				Hints:     hints,
				TopK:      topKFor(maxChunks, sel.Weight, wmax),
			})
			results[i], errs[i] = chunks, err
			return nil
		})
	}
	_ = g.Wait()
	failed := 0
	log := logger.FromContext(ctx)
	for i, err := range errs {
		if err != nil {
			failed++
			results[i] = nil
			log.Debug("Namespace retrieval failed", "namespace", selections[i].ID, "error", err)
		}
	}
	return results, failed
}

func render(e *entry, format Format, cached bool) *Result {
	res := &Result{
		Namespaces: e.Namespaces,
		Descriptor: e.Descriptor,
		Cached:     cached,
		Partial:    e.Partial,
	}
	if format == FormatChunks {
		res.Chunks = e.Chunks
		if res.Chunks == nil {
			res.Chunks = []Chunk{}
		}
		return res
	}
	res.Context = formatText(e.Chunks)
	return res
}
