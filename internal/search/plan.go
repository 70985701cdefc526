// Package search plans and executes tiered multi-source lookups. One
// model call assigns each source a relevance tier; high and medium tiers
// run unconditionally, low and very_low run only when the mandatory tiers
// came back empty.
package search

import "github.com/famulus-ai/famulus/internal/models"

// Tier is the planner-assigned relevance of a source for one query.
type Tier string

const (
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierVeryLow Tier = "very_low"
)

// Mandatory reports whether the tier runs unconditionally.
func (t Tier) Mandatory() bool {
	return t == TierHigh || t == TierMedium
}

// rank orders tiers for result ranking, high first.
func (t Tier) rank() int {
	switch t {
	case TierHigh:
		return 0
	case TierMedium:
		return 1
	case TierLow:
		return 2
	default:
		return 3
	}
}

func normalizeTier(s string) Tier {
	switch Tier(s) {
	case TierHigh, TierMedium, TierLow, TierVeryLow:
		return Tier(s)
	}
	return TierVeryLow
}

// SourcePlan is the planner's verdict for one source, updated with the
// execution outcome.
type SourcePlan struct {
	Source   string   `json:"source"`
	Tier     Tier     `json:"tier"`
	Terms    []string `json:"terms"`
	Reason   string   `json:"reason,omitempty"`
	Executed bool     `json:"executed"`
	Hits     int      `json:"hits"`
}

// Plan is one planned search across all configured sources.
type Plan struct {
	Query   string        `json:"query"`
	Sources []*SourcePlan `json:"sources"`
}

// FallbackKind classifies a query that no store could answer.
type FallbackKind string

const (
	// FallbackGeneral means the model answered from general knowledge.
	FallbackGeneral FallbackKind = "general"
	// FallbackPersonal means the answer would need a stored fact the
	// user never provided.
	FallbackPersonal FallbackKind = "personal"
)

// Fallback is the empty-result answer path.
type Fallback struct {
	Kind   FallbackKind `json:"kind"`
	Answer string       `json:"answer"`
}

// Aggregated is the merged outcome of one planned search.
type Aggregated struct {
	Plan     *Plan               `json:"plan"`
	Items    []models.ScoredItem `json:"items"`
	Fallback *Fallback           `json:"fallback,omitempty"`
}
