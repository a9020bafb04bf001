package retriever

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
	"github.com/sethvargo/go-retry"
)

const (
	searchPath         = "/v1/namespaces/{namespace}/search"
	apiKeyHeader       = "X-API-Key"
	defaultBackoffBase = 50 * time.Millisecond
	defaultBackoffMax  = 2 * time.Second
)

type searchRequest struct {
	Query string   `json:"query"`
	Hints []string `json:"hints,omitempty"`
	TopK  int      `json:"top_k"`
}

type searchResponse struct {
	Chunks []Chunk `json:"chunks"`
}

// HTTPBackend queries a remote knowledge service over JSON.
type HTTPBackend struct {
	client      *resty.Client
	maxRetries  uint64
	backoffBase time.Duration
}

type HTTPOption func(*HTTPBackend)

// WithBackoffBase sets the first retry delay.
func WithBackoffBase(d time.Duration) HTTPOption {
	return func(b *HTTPBackend) {
		if d > 0 {
			b.backoffBase = d
		}
	}
}

func NewHTTPBackend(cfg *config.KnowledgeConfig, opts ...HTTPOption) (*HTTPBackend, error) {
	if cfg == nil {
		return nil, errors.New("knowledge: http backend config is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("knowledge: http backend base_url is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("knowledge: base_url must use http or https, got %q", base)
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader(apiKeyHeader, cfg.APIKey)
	}
	b := &HTTPBackend{
		client:      client,
		maxRetries:  cfg.MaxRetries,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Search posts the query and retries transport errors and 5xx responses with
// exponential backoff. 4xx responses are not retried.
func (b *HTTPBackend) Search(ctx context.Context, q Query) ([]Chunk, error) {
	if strings.TrimSpace(q.Namespace) == "" {
		return nil, errors.New("knowledge: namespace is required")
	}
	backoff := retry.WithMaxRetries(
		b.maxRetries,
		retry.WithMaxDuration(defaultBackoffMax, retry.NewExponential(b.backoffBase)),
	)
	attempt := 0
	var out searchResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out = searchResponse{}
		resp, err := b.client.R().
			SetContext(ctx).
			SetPathParam("namespace", q.Namespace).
			SetBody(searchRequest{Query: q.Text, Hints: q.Hints, TopK: q.TopK}).
			SetResult(&out).
			Post(searchPath)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.FromContext(ctx).Debug("Retrieval request failed", "namespace", q.Namespace, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		status := resp.StatusCode()
		switch {
		case status >= http.StatusInternalServerError:
			logger.FromContext(ctx).Debug("Retrieval backend returned server error", "namespace", q.Namespace, "attempt", attempt, "status", status)
			return retry.RetryableError(fmt.Errorf("status %d", status))
		case status >= http.StatusBadRequest:
			return fmt.Errorf("status %d", status)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: namespace %s: %w", ErrRetrievalUnavailable, q.Namespace, err)
	}
	for i := range out.Chunks {
		if out.Chunks[i].Namespace == "" {
			out.Chunks[i].Namespace = q.Namespace
		}
	}
	return rankChunks(out.Chunks, q.TopK), nil
}
