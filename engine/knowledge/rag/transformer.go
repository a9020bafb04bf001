package rag

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/liftwise/coachgate/engine/knowledge/namespace"
	"github.com/liftwise/coachgate/engine/profile"
	"github.com/tidwall/gjson"
)

// GenericEndpoint labels requests served by the generic transformer.
const GenericEndpoint = "generic"

// ErrInvalidRequest marks a request body that is not a JSON document.
var ErrInvalidRequest = errors.New("rag: request body is not valid json")

// Transformer maps one endpoint's request shape to a descriptor. KeyFields are
// the gjson paths whose values identify a retrieval; they form the cache key.
// Transform must be pure.
type Transformer struct {
	KeyFields []string
	Transform func(req gjson.Result, user *profile.UserContext) namespace.Descriptor
}

// Registry maps endpoint paths to transformers. Unregistered paths use the
// generic transformer.
type Registry struct {
	mu      sync.RWMutex
	byPath  map[string]Transformer
	generic Transformer
}

func NewRegistry() *Registry {
	return &Registry{
		byPath:  make(map[string]Transformer),
		generic: genericTransformer,
	}
}

// DefaultRegistry holds the built-in fitness endpoint transformers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for path, t := range builtinTransformers() {
		if err := r.Register(path, t); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(path string, t Transformer) error {
	p := normalizePath(path)
	if p == "" {
		return errors.New("rag: transformer path is required")
	}
	if t.Transform == nil {
		return fmt.Errorf("rag: transformer for %s has no transform function", p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPath[p]; exists {
		return fmt.Errorf("rag: transformer for %s already registered", p)
	}
	r.byPath[p] = t
	return nil
}

// Lookup returns the transformer for path and the label used for metrics,
// which is the registered path or GenericEndpoint.
func (r *Registry) Lookup(path string) (Transformer, string) {
	p := normalizePath(path)
	r.mu.RLock()
	t, ok := r.byPath[p]
	r.mu.RUnlock()
	if !ok {
		return r.generic, GenericEndpoint
	}
	return t, p
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// parseRequest validates raw and returns its gjson view. An empty body reads
// as an empty object.
func parseRequest(raw []byte) (gjson.Result, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return gjson.Parse("{}"), nil
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, ErrInvalidRequest
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return gjson.Result{}, ErrInvalidRequest
	}
	return res, nil
}

// keyFields extracts the values at paths. Missing paths are omitted so that
// absent and null fields key identically.
func keyFields(req gjson.Result, paths []string) map[string]any {
	out := make(map[string]any, len(paths))
	for _, p := range paths {
		v := req.Get(p)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		out[p] = v.Value()
	}
	return out
}

// enrich fills profile-derived fields the transformer left empty.
func enrich(d namespace.Descriptor, user *profile.UserContext) namespace.Descriptor {
	if user == nil {
		return d
	}
	if d.ExperienceLevel == "" {
		d.ExperienceLevel = string(user.Level())
	}
	if len(d.ActiveConditions) == 0 {
		d.ActiveConditions = user.Conditions()
	}
	return d
}
