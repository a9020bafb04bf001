package ratelimit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/liftwise/coachgate/pkg/config"
)

const TierAdmin = "admin"

// Tier is one row of the static limit table.
type Tier struct {
	Name               string
	DefaultPerHour     int64
	ExpensivePerMinute int64
	Unlimited          bool
}

// Limit returns the limit and window that apply to class.
func (t Tier) Limit(class Class) (int64, time.Duration) {
	if class == ClassExpensive {
		return t.ExpensivePerMinute, time.Minute
	}
	return t.DefaultPerHour, time.Hour
}

// Tiers resolves tier names. Unknown or empty names resolve to the most
// restrictive limited tier, never to an unlimited one. Anonymous callers get
// the configured anonymous tier, defaulting to the most restrictive.
type Tiers struct {
	byName      map[string]Tier
	restrictive Tier
	anonymous   Tier
}

func NewTiers(table map[string]config.TierConfig, anonymous string) (*Tiers, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("tier table cannot be empty")
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	t := &Tiers{byName: make(map[string]Tier, len(table))}
	found := false
	for _, name := range names {
		tc := table[name]
		tier := Tier{
			Name:               strings.ToLower(name),
			DefaultPerHour:     tc.DefaultPerHour,
			ExpensivePerMinute: tc.ExpensivePerMinute,
			Unlimited:          tc.Unlimited,
		}
		t.byName[tier.Name] = tier
		if tier.Unlimited {
			continue
		}
		if !found || stricter(tier, t.restrictive) {
			t.restrictive = tier
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("at least one limited tier is required")
	}
	if anonymous != "" {
		tier, ok := t.byName[strings.ToLower(anonymous)]
		if !ok || tier.Unlimited {
			return nil, fmt.Errorf("anonymous tier %q must be a configured limited tier", anonymous)
		}
		t.anonymous = tier
	} else {
		t.anonymous = t.restrictive
	}
	return t, nil
}

func stricter(a, b Tier) bool {
	if a.ExpensivePerMinute != b.ExpensivePerMinute {
		return a.ExpensivePerMinute < b.ExpensivePerMinute
	}
	return a.DefaultPerHour < b.DefaultPerHour
}

// Resolve returns the tier named name, falling back to MostRestrictive.
func (t *Tiers) Resolve(name string) Tier {
	if tier, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tier
	}
	return t.restrictive
}

func (t *Tiers) MostRestrictive() Tier {
	return t.restrictive
}

// Anonymous is the tier applied to callers without a usable identity.
func (t *Tiers) Anonymous() Tier {
	return t.anonymous
}
