package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/famulus-ai/famulus/internal/audit"
	"github.com/famulus-ai/famulus/internal/llm"
	"github.com/famulus-ai/famulus/internal/models"
)

const defaultPerSourceLimit = 5

// Coordinator plans one search across the configured sources, applies
// the conditional-tier gate, and merges the results.
type Coordinator struct {
	model   llm.Completer
	sources []Source
	auditor *audit.Log
	logger  *zap.Logger
	limit   int
}

// NewCoordinator creates a search coordinator. auditor may be nil.
func NewCoordinator(model llm.Completer, sources []Source, auditor *audit.Log, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		model:   model,
		sources: sources,
		auditor: auditor,
		logger:  logger,
		limit:   defaultPerSourceLimit,
	}
}

// Search plans and executes one query. Per-source backend errors count
// as empty results and never abort the plan; an empty merged set falls
// back to a direct answer or a request for the missing fact.
func (c *Coordinator) Search(ctx context.Context, conversationID, userID, query string) (*Aggregated, error) {
	plan := c.BuildPlan(ctx, query)

	var mandatory, conditional []*SourcePlan
	for _, sp := range plan.Sources {
		if sp.Tier.Mandatory() {
			mandatory = append(mandatory, sp)
		} else {
			conditional = append(conditional, sp)
		}
	}

	results := c.execute(ctx, userID, mandatory)

	mandatoryHits := 0
	for _, items := range results {
		mandatoryHits += len(items)
	}

	// The gate: any non-empty mandatory result skips the whole
	// conditional tier.
	if mandatoryHits > 0 {
		for _, sp := range conditional {
			sp.Executed = false
			reason := "mandatory tier returned results"
			c.logger.Debug("skipping conditional source",
				zap.String("source", sp.Source),
				zap.String("tier", string(sp.Tier)),
				zap.String("conversation_id", conversationID))
			if c.auditor != nil {
				if err := c.auditor.SearchSkip(ctx, conversationID, sp.Source, string(sp.Tier), reason); err != nil {
					c.logger.Warn("audit write failed", zap.Error(err))
				}
			}
		}
	} else {
		for source, items := range c.execute(ctx, userID, conditional) {
			results[source] = items
		}
	}

	merged := c.merge(plan, results)
	agg := &Aggregated{Plan: plan, Items: merged}

	if len(merged) == 0 {
		agg.Fallback = c.classifyEmpty(ctx, query)
	}
	return agg, nil
}

// execute fans the given source plans out concurrently and collects
// per-source results. Errors are logged and yield empty results.
func (c *Coordinator) execute(ctx context.Context, userID string, plans []*SourcePlan) map[string][]models.ScoredItem {
	byName := make(map[string]Source, len(c.sources))
	for _, src := range c.sources {
		byName[src.Name()] = src
	}

	results := make(map[string][]models.ScoredItem, len(plans))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, sp := range plans {
		src, ok := byName[sp.Source]
		if !ok {
			continue
		}
		sp.Executed = true

		wg.Add(1)
		go func(sp *SourcePlan, src Source) {
			defer wg.Done()

			items, err := src.Search(ctx, userID, sp.Terms, c.limit)
			if err != nil {
				c.logger.Warn("source search failed",
					zap.String("source", sp.Source),
					zap.Error(err))
				items = nil
			}

			mu.Lock()
			sp.Hits = len(items)
			results[sp.Source] = items
			mu.Unlock()
		}(sp, src)
	}

	wg.Wait()
	return results
}

// merge flattens, dedupes by source+identity, and ranks by tier then
// source-reported score.
func (c *Coordinator) merge(plan *Plan, results map[string][]models.ScoredItem) []models.ScoredItem {
	tierOf := make(map[string]Tier, len(plan.Sources))
	for _, sp := range plan.Sources {
		tierOf[sp.Source] = sp.Tier
	}

	seen := make(map[string]bool)
	var merged []models.ScoredItem
	for _, items := range results {
		for _, item := range items {
			key := item.Source + "/" + item.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		ri, rj := tierOf[merged[i].Source].rank(), tierOf[merged[j].Source].rank()
		if ri != rj {
			return ri < rj
		}
		return merged[i].Score > merged[j].Score
	})
	return merged
}

const emptyPrompt = `A personal assistant searched the user's stored data for the query
below and found nothing. Decide how to respond:

- If the query can be answered from general knowledge (definitions,
  common facts, arithmetic), answer it briefly.
- If the answer would require a personal fact the user never stored
  (their own plans, preferences, people they know), do NOT guess.

Respond ONLY with JSON:
{"kind": "general" or "personal", "answer": "<your answer, or empty for personal>"}

Query: %q

JSON:`

// classifyEmpty decides whether an unanswered query gets a general
// knowledge answer or a request for the missing fact.
func (c *Coordinator) classifyEmpty(ctx context.Context, query string) *Fallback {
	personal := &Fallback{
		Kind:   FallbackPersonal,
		Answer: "I don't have anything stored about that. If you tell me, I'll remember it for next time.",
	}

	result, err := c.model.Complete(ctx, fmt.Sprintf(emptyPrompt, query))
	if err != nil {
		c.logger.Warn("empty-result classification failed", zap.Error(err))
		return personal
	}

	var resp struct {
		Kind   string `json:"kind"`
		Answer string `json:"answer"`
	}
	if err := llm.DecodeJSON(result.Response, &resp); err != nil {
		return personal
	}

	if resp.Kind == string(FallbackGeneral) && strings.TrimSpace(resp.Answer) != "" {
		return &Fallback{Kind: FallbackGeneral, Answer: resp.Answer}
	}
	return personal
}
