package namespace

import (
	"slices"
	"strings"
)

// Virtual goals are routing tags, not user-facing goals. They steer
// selection to a dedicated namespace subset.
const (
	VirtualFatigueMonitoring    = "fatigue_monitoring"
	VirtualInjuryAnalysis       = "injury_analysis"
	VirtualDeloadRecommendation = "deload_recommendation"
	VirtualCardioAnalysis       = "cardio_analysis"
)

var virtualGoals = []string{
	VirtualFatigueMonitoring,
	VirtualInjuryAnalysis,
	VirtualDeloadRecommendation,
	VirtualCardioAnalysis,
}

func IsVirtualGoal(goal string) bool {
	return slices.Contains(virtualGoals, goal)
}

// Descriptor is the endpoint-agnostic summary of what a request is about.
type Descriptor struct {
	Goal             string   `json:"goal,omitempty"`
	VirtualGoal      string   `json:"virtual_goal,omitempty"`
	Hints            []string `json:"hints,omitempty"`
	ContentTypes     []string `json:"content_types,omitempty"`
	ExperienceLevel  string   `json:"experience_level,omitempty"`
	ActiveConditions []string `json:"active_conditions,omitempty"`
	QueryText        string   `json:"query_text,omitempty"`
}

// Normalize canonicalizes tokens and moves a virtual goal found in Goal to
// VirtualGoal. Normalize is idempotent.
func Normalize(d Descriptor) Descriptor {
	out := Descriptor{
		Goal:             NormalizeToken(d.Goal),
		VirtualGoal:      NormalizeToken(d.VirtualGoal),
		Hints:            normalizeList(d.Hints),
		ContentTypes:     normalizeList(d.ContentTypes),
		ExperienceLevel:  NormalizeToken(d.ExperienceLevel),
		ActiveConditions: normalizeList(d.ActiveConditions),
		QueryText:        strings.TrimSpace(d.QueryText),
	}
	if IsVirtualGoal(out.Goal) {
		if out.VirtualGoal == "" {
			out.VirtualGoal = out.Goal
		}
		out.Goal = ""
	}
	return out
}

// Signals returns the distinct hints and active conditions used for
// hint matching.
func (d Descriptor) Signals() []string {
	all := append(slices.Clone(d.Hints), d.ActiveConditions...)
	slices.Sort(all)
	return slices.Compact(all)
}

// Specificity counts the concrete signals in a normalized descriptor.
func (d Descriptor) Specificity() int {
	n := len(d.Hints) + len(d.ActiveConditions)
	if d.Goal != "" {
		n++
	}
	if d.VirtualGoal != "" {
		n++
	}
	return n
}

// NormalizeToken lowercases s and joins its words with `_`.
func NormalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), "_")
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = NormalizeToken(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
