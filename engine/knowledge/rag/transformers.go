package rag

import (
	"strings"

	"github.com/liftwise/coachgate/engine/knowledge/namespace"
	"github.com/liftwise/coachgate/engine/profile"
	"github.com/tidwall/gjson"
)

// stringsAt collects a string or an array of strings found at any of paths.
func stringsAt(req gjson.Result, paths ...string) []string {
	var out []string
	for _, p := range paths {
		v := req.Get(p)
		if !v.Exists() {
			continue
		}
		if v.IsArray() {
			for _, item := range v.Array() {
				if s := strings.TrimSpace(item.String()); s != "" {
					out = append(out, s)
				}
			}
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// firstString returns the first non-empty string among paths.
func firstString(req gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(req.Get(p).String()); s != "" {
			return s
		}
	}
	return ""
}

var genericTransformer = Transformer{
	KeyFields: []string{"goal", "hints", "content_types", "query", "question", "message", "text"},
	Transform: func(req gjson.Result, _ *profile.UserContext) namespace.Descriptor {
		return namespace.Descriptor{
			Goal:         firstString(req, "goal"),
			Hints:        stringsAt(req, "hints"),
			ContentTypes: stringsAt(req, "content_types"),
			QueryText:    firstString(req, "query", "question", "message", "text"),
		}
	},
}

func builtinTransformers() map[string]Transformer {
	return map[string]Transformer{
		"/api/v1/rag/context": genericTransformer,
		"/api/v1/ai/form-check": {
			KeyFields: []string{"exercise", "issues", "notes"},
			Transform: func(req gjson.Result, _ *profile.UserContext) namespace.Descriptor {
				hints := append(stringsAt(req, "exercise"), stringsAt(req, "issues")...)
				return namespace.Descriptor{
					Goal:         "technique",
					Hints:        append(hints, "form"),
					ContentTypes: []string{"technique", "protocol"},
					QueryText:    strings.TrimSpace(firstString(req, "exercise") + " " + firstString(req, "notes")),
				}
			},
		},
		"/api/v1/ai/injury-analysis": {
			KeyFields: []string{"body_part", "symptoms", "description"},
			Transform: func(req gjson.Result, user *profile.UserContext) namespace.Descriptor {
				hints := append(stringsAt(req, "body_part", "symptoms"), user.Conditions()...)
				return namespace.Descriptor{
					Goal:      namespace.VirtualInjuryAnalysis,
					Hints:     hints,
					QueryText: firstString(req, "description", "body_part"),
				}
			},
		},
		"/api/v1/ai/fatigue": {
			KeyFields: []string{"signals", "notes"},
			Transform: func(req gjson.Result, _ *profile.UserContext) namespace.Descriptor {
				return namespace.Descriptor{
					Goal:      namespace.VirtualFatigueMonitoring,
					Hints:     append(stringsAt(req, "signals"), "fatigue"),
					QueryText: firstString(req, "notes"),
				}
			},
		},
		"/api/v1/ai/deload": {
			KeyFields: []string{"signals", "weeks_since_deload"},
			Transform: func(req gjson.Result, _ *profile.UserContext) namespace.Descriptor {
				return namespace.Descriptor{
					Goal:      namespace.VirtualDeloadRecommendation,
					Hints:     append(stringsAt(req, "signals"), "deload"),
					QueryText: "deload volume fatigue",
				}
			},
		},
		"/api/v1/ai/cardio": {
			KeyFields: []string{"activity", "metrics", "question"},
			Transform: func(req gjson.Result, _ *profile.UserContext) namespace.Descriptor {
				return namespace.Descriptor{
					Goal:      namespace.VirtualCardioAnalysis,
					Hints:     stringsAt(req, "activity"),
					QueryText: firstString(req, "question", "activity"),
				}
			},
		},
		"/api/v1/ai/program": {
			KeyFields: []string{"goal", "focus", "days_per_week"},
			Transform: func(req gjson.Result, _ *profile.UserContext) namespace.Descriptor {
				goal := firstString(req, "goal")
				return namespace.Descriptor{
					Goal:         goal,
					Hints:        stringsAt(req, "focus"),
					ContentTypes: []string{"programming"},
					QueryText:    strings.Join(append([]string{goal}, stringsAt(req, "focus")...), " "),
				}
			},
		},
		"/api/v1/voice/command": {
			KeyFields: []string{"transcript"},
			Transform: func(req gjson.Result, _ *profile.UserContext) namespace.Descriptor {
				return namespace.Descriptor{QueryText: firstString(req, "transcript")}
			},
		},
	}
}
