package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/famulus-ai/famulus/internal/llm"
)

const planPrompt = `You are a search planner for a personal assistant. For the user's
query, rate the relevance of each data source and extract the search
terms that source should be queried with.

Sources:
%s

Tiers: "high" (almost certainly holds the answer), "medium" (plausibly
relevant), "low" (unlikely), "very_low" (almost certainly irrelevant).

Respond ONLY with JSON:
{"sources": [{"source": "<name>", "tier": "high|medium|low|very_low", "terms": ["..."], "reason": "<short>"}]}

Query: %q

JSON:`

type plannedSource struct {
	Source string   `json:"source"`
	Tier   string   `json:"tier"`
	Terms  []string `json:"terms"`
	Reason string   `json:"reason"`
}

type planResponse struct {
	Sources []plannedSource `json:"sources"`
}

// BuildPlan asks the model for a per-source tier and terms, in one call.
// A malformed response degrades to a plan that queries every source at
// medium tier with the raw query words; planning never fails a search.
func (c *Coordinator) BuildPlan(ctx context.Context, query string) *Plan {
	var descriptions strings.Builder
	for _, src := range c.sources {
		fmt.Fprintf(&descriptions, "- %s: %s\n", src.Name(), src.Description())
	}

	prompt := fmt.Sprintf(planPrompt, descriptions.String(), query)

	result, err := c.model.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("search planning failed, querying all sources",
			zap.Error(err))
		return c.fallbackPlan(query)
	}

	var resp planResponse
	if err := llm.DecodeJSON(result.Response, &resp); err != nil {
		c.logger.Warn("search plan unparseable, querying all sources",
			zap.Error(err))
		return c.fallbackPlan(query)
	}

	byName := make(map[string]plannedSource, len(resp.Sources))
	for _, ps := range resp.Sources {
		byName[ps.Source] = ps
	}

	// Every configured source gets an entry; sources the model omitted
	// or invented fall to very_low.
	plan := &Plan{Query: query}
	for _, src := range c.sources {
		ps, ok := byName[src.Name()]
		if !ok {
			plan.Sources = append(plan.Sources, &SourcePlan{
				Source: src.Name(),
				Tier:   TierVeryLow,
				Terms:  queryTerms(query),
				Reason: "not rated by planner",
			})
			continue
		}
		terms := ps.Terms
		if len(terms) == 0 {
			terms = queryTerms(query)
		}
		plan.Sources = append(plan.Sources, &SourcePlan{
			Source: src.Name(),
			Tier:   normalizeTier(ps.Tier),
			Terms:  terms,
			Reason: ps.Reason,
		})
	}
	return plan
}

func (c *Coordinator) fallbackPlan(query string) *Plan {
	plan := &Plan{Query: query}
	for _, src := range c.sources {
		plan.Sources = append(plan.Sources, &SourcePlan{
			Source: src.Name(),
			Tier:   TierMedium,
			Terms:  queryTerms(query),
			Reason: "planner unavailable",
		})
	}
	return plan
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "my": true, "me": true, "i": true, "do": true,
	"what": true, "whats": true, "when": true, "where": true,
	"who": true, "how": true, "did": true, "have": true, "of": true,
	"to": true, "in": true, "on": true, "for": true,
}

// queryTerms splits a query into search words, dropping stop words.
func queryTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, "?!.,;:'\"")
		if w == "" || stopWords[w] {
			continue
		}
		terms = append(terms, w)
	}
	if len(terms) == 0 {
		terms = strings.Fields(strings.ToLower(query))
	}
	return terms
}
