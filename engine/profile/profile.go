// Package profile holds the per-user training context consumed by retrieval
// and cached by the user-context cache.
package profile

import (
	"slices"
	"strings"
	"time"

	"github.com/liftwise/coachgate/engine/core"
)

type ExperienceLevel string

const (
	LevelBeginner     ExperienceLevel = "beginner"
	LevelIntermediate ExperienceLevel = "intermediate"
	LevelAdvanced     ExperienceLevel = "advanced"
)

// UserContext is the subset of a user's state that shapes retrieval.
type UserContext struct {
	UserID           string          `json:"user_id"`
	ExperienceLevel  ExperienceLevel `json:"experience_level,omitempty"`
	ActiveConditions []string        `json:"active_conditions,omitempty"`
	Goals            []string        `json:"goals,omitempty"`
	Equipment        []string        `json:"equipment,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Conditions returns the active conditions lowercased, trimmed, de-duplicated
// and sorted.
func (u *UserContext) Conditions() []string {
	if u == nil {
		return nil
	}
	return normalizeSet(u.ActiveConditions)
}

// Level returns the experience level, or the empty string for a nil context.
func (u *UserContext) Level() ExperienceLevel {
	if u == nil {
		return ""
	}
	return ExperienceLevel(strings.ToLower(strings.TrimSpace(string(u.ExperienceLevel))))
}

// RetrievalFingerprint hashes the fields that change which chunks retrieval
// would return. Two users with the same level and conditions share it; the
// user id is deliberately excluded so cached context is reusable across them.
func (u *UserContext) RetrievalFingerprint() string {
	if u == nil {
		return ""
	}
	return core.Fingerprint(string(u.Level()), u.Conditions())
}

func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
