package namespace

import (
	"fmt"
	"slices"

	"github.com/liftwise/coachgate/pkg/config"
)

// ContentMask is a bit set of content types.
type ContentMask uint16

const (
	ContentTechnique ContentMask = 1 << iota
	ContentProgramming
	ContentProtocol
	ContentResearch
	ContentGuidance
	ContentNutrition
)

var contentTypeNames = map[string]ContentMask{
	"technique":   ContentTechnique,
	"programming": ContentProgramming,
	"protocol":    ContentProtocol,
	"research":    ContentResearch,
	"guidance":    ContentGuidance,
	"nutrition":   ContentNutrition,
}

// MaskOf converts content type names to a mask. Unknown names are ignored.
func MaskOf(types []string) ContentMask {
	var m ContentMask
	for _, t := range types {
		m |= contentTypeNames[NormalizeToken(t)]
	}
	return m
}

// Namespace is one partition of the knowledge corpus.
type Namespace struct {
	ID           string
	Goals        []string
	Hints        []string
	BaseWeight   float64
	ContentTypes ContentMask
	Default      bool
}

// Registry is the ordered namespace table. Order breaks weight ties.
type Registry struct {
	namespaces []Namespace
	index      map[string]int
}

func NewRegistry(namespaces []Namespace) (*Registry, error) {
	if len(namespaces) == 0 {
		return nil, fmt.Errorf("namespace registry cannot be empty")
	}
	r := &Registry{
		namespaces: make([]Namespace, 0, len(namespaces)),
		index:      make(map[string]int, len(namespaces)),
	}
	hasDefault := false
	for _, ns := range namespaces {
		ns.ID = NormalizeToken(ns.ID)
		if ns.ID == "" {
			return nil, fmt.Errorf("namespace id cannot be empty")
		}
		if _, dup := r.index[ns.ID]; dup {
			return nil, fmt.Errorf("duplicate namespace %q", ns.ID)
		}
		if ns.BaseWeight <= 0 {
			return nil, fmt.Errorf("namespace %q must have a positive base weight", ns.ID)
		}
		ns.Goals = normalizeList(ns.Goals)
		ns.Hints = normalizeList(ns.Hints)
		hasDefault = hasDefault || ns.Default
		r.index[ns.ID] = len(r.namespaces)
		r.namespaces = append(r.namespaces, ns)
	}
	if !hasDefault {
		return nil, fmt.Errorf("namespace registry needs at least one default namespace")
	}
	return r, nil
}

// RegistryFromConfig builds a registry from configuration, or returns the
// built-in registry when cfgs is empty.
func RegistryFromConfig(cfgs []config.NamespaceConfig) (*Registry, error) {
	if len(cfgs) == 0 {
		return DefaultRegistry(), nil
	}
	namespaces := make([]Namespace, len(cfgs))
	for i, c := range cfgs {
		namespaces[i] = Namespace{
			ID:           c.ID,
			Goals:        c.Goals,
			Hints:        c.Hints,
			BaseWeight:   c.BaseWeight,
			ContentTypes: MaskOf(c.ContentTypes),
			Default:      c.Default,
		}
	}
	return NewRegistry(namespaces)
}

func (r *Registry) Len() int {
	return len(r.namespaces)
}

func (r *Registry) Get(id string) (Namespace, bool) {
	i, ok := r.index[NormalizeToken(id)]
	if !ok {
		return Namespace{}, false
	}
	return r.namespaces[i], true
}

// IDs returns namespace ids in registry order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.namespaces))
	for i, ns := range r.namespaces {
		ids[i] = ns.ID
	}
	return ids
}

func (ns Namespace) hasGoal(goal string) bool {
	return goal != "" && slices.Contains(ns.Goals, goal)
}

func (ns Namespace) hintOverlap(signals []string) int {
	n := 0
	for _, s := range signals {
		if slices.Contains(ns.Hints, s) {
			n++
		}
	}
	return n
}
