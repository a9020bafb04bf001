// Package namespace selects the knowledge partitions worth querying for a
// request descriptor.
package namespace

import (
	"errors"
	"fmt"
	"sort"

	"github.com/liftwise/coachgate/pkg/config"
)

// ErrInvalidDescriptor marks a descriptor that matched no namespace. The
// selection returned alongside it is the default broad subset.
var ErrInvalidDescriptor = errors.New("namespace: descriptor matched no namespace")

// Selection is one chosen namespace and the weight of its contribution.
type Selection struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// Selector is pure and deterministic: equal descriptors yield equal,
// identically ordered selections.
type Selector struct {
	registry  *Registry
	max       int
	min       int
	step      int
	hintDecay float64
	hintBoost float64
}

func NewSelector(registry *Registry, cfg *config.SelectorConfig) (*Selector, error) {
	if registry == nil {
		return nil, fmt.Errorf("namespace registry cannot be nil")
	}
	if cfg == nil {
		def := config.Default().Selector
		cfg = &def
	}
	if cfg.MaxNamespaces < 1 || cfg.MinNamespaces < 1 || cfg.MinNamespaces > cfg.MaxNamespaces {
		return nil, fmt.Errorf("invalid namespace caps min=%d max=%d", cfg.MinNamespaces, cfg.MaxNamespaces)
	}
	return &Selector{
		registry:  registry,
		max:       cfg.MaxNamespaces,
		min:       cfg.MinNamespaces,
		step:      cfg.StepPerSignal,
		hintDecay: cfg.HintDecay,
		hintBoost: cfg.HintBoost,
	}, nil
}

func (s *Selector) Registry() *Registry {
	return s.registry
}

// Cap is the number of namespaces a descriptor may select. It shrinks as
// the descriptor gets more specific.
func (s *Selector) Cap(desc Descriptor) int {
	return s.capFor(Normalize(desc))
}

func (s *Selector) capFor(d Descriptor) int {
	c := s.max - d.Specificity()*s.step
	if c < s.min {
		return s.min
	}
	return c
}

// Select returns the weighted namespaces for desc. It never returns an
// empty list.
func (s *Selector) Select(desc Descriptor) []Selection {
	out, _ := s.SelectDetailed(desc)
	return out
}

// SelectDetailed is Select that also reports ErrInvalidDescriptor when the
// default subset was substituted.
func (s *Selector) SelectDetailed(desc Descriptor) ([]Selection, error) {
	d := Normalize(desc)
	goal := d.Goal
	if d.VirtualGoal != "" {
		goal = d.VirtualGoal
	}
	signals := d.Signals()
	mask := MaskOf(d.ContentTypes)

	type scored struct {
		Selection
		order int
	}
	var matched []scored
	for i, ns := range s.registry.namespaces {
		if mask != 0 && ns.ContentTypes&mask == 0 {
			continue
		}
		overlap := float64(ns.hintOverlap(signals))
		var w float64
		switch {
		case ns.hasGoal(goal):
			w = ns.BaseWeight * (1 + s.hintBoost*overlap)
		case overlap > 0:
			w = ns.BaseWeight * s.hintDecay * (1 + s.hintBoost*(overlap-1))
		default:
			continue
		}
		matched = append(matched, scored{Selection: Selection{ID: ns.ID, Weight: w}, order: i})
	}
	if len(matched) == 0 {
		return s.fallback(s.capFor(d)), ErrInvalidDescriptor
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Weight != matched[j].Weight {
			return matched[i].Weight > matched[j].Weight
		}
		return matched[i].order < matched[j].order
	})
	limit := min(s.capFor(d), len(matched))
	out := make([]Selection, limit)
	for i := range limit {
		out[i] = matched[i].Selection
	}
	return out, nil
}

// fallback is the default broad subset at base weight, in registry order,
// truncated to limit.
func (s *Selector) fallback(limit int) []Selection {
	out := make([]Selection, 0, limit)
	for _, ns := range s.registry.namespaces {
		if !ns.Default {
			continue
		}
		out = append(out, Selection{ID: ns.ID, Weight: ns.BaseWeight})
		if len(out) == limit {
			break
		}
	}
	return out
}
