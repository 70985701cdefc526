// Package enrich asks optional follow-up questions to round out a
// partially specified operation. It never blocks on truly required
// fields; those are the tools' own validation to enforce.
package enrich

import (
	"fmt"
	"strings"

	"github.com/famulus-ai/famulus/internal/convo"
	"github.com/famulus-ai/famulus/internal/models"
)

// Shape hints the expected answer shape for field extraction.
type Shape string

const (
	ShapeString     Shape = "string"
	ShapeStringList Shape = "string_list"
	ShapeDatePhrase Shape = "date_phrase"
)

// Rule is one static field-enrichment rule. At most one rule exists per
// (field, operation type) pair; the rule set validates this at load.
type Rule struct {
	Field    string
	Ops      []models.Intent
	Priority func(collected models.Fields) convo.Priority
	Question string
	Examples []string
	Shape    Shape
}

// AppliesTo reports whether the rule covers an operation type.
func (r *Rule) AppliesTo(op models.Intent) bool {
	for _, o := range r.Ops {
		if o == op {
			return true
		}
	}
	return false
}

// RuleSet is an ordered, immutable collection of rules. Declaration order
// is the tie-break between equal priorities.
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet validates and wraps a rule list.
func NewRuleSet(rules []*Rule) (*RuleSet, error) {
	seen := make(map[string]bool)
	for _, rule := range rules {
		if rule.Field == "" {
			return nil, fmt.Errorf("rule with empty field name")
		}
		if rule.Priority == nil {
			return nil, fmt.Errorf("rule %q has no priority function", rule.Field)
		}
		for _, op := range rule.Ops {
			key := rule.Field + "/" + string(op)
			if seen[key] {
				return nil, fmt.Errorf("duplicate rule for field %q and operation %q", rule.Field, op)
			}
			seen[key] = true
		}
	}
	return &RuleSet{rules: rules}, nil
}

// RulesFor returns the rules applicable to an operation type, in
// declaration order.
func (rs *RuleSet) RulesFor(op models.Intent) []*Rule {
	var out []*Rule
	for _, rule := range rs.rules {
		if rule.AppliesTo(op) {
			out = append(out, rule)
		}
	}
	return out
}

// Find returns the rule for a field under an operation type.
func (rs *RuleSet) Find(op models.Intent, field string) (*Rule, bool) {
	for _, rule := range rs.rules {
		if rule.Field == field && rule.AppliesTo(op) {
			return rule, true
		}
	}
	return nil, false
}

func always(p convo.Priority) func(models.Fields) convo.Priority {
	return func(models.Fields) convo.Priority { return p }
}

// DefaultRules returns the built-in enrichment rule table.
func DefaultRules() *RuleSet {
	rules := []*Rule{
		{
			Field:    "due_at",
			Ops:      []models.Intent{models.IntentCreateReminder},
			Priority: always(convo.PriorityHigh),
			Question: "When should I remind you?",
			Examples: []string{"tomorrow 9am", "in two hours", "next Friday"},
			Shape:    ShapeDatePhrase,
		},
		{
			Field: "people",
			Ops:   []models.Intent{models.IntentCreateReminder},
			Priority: func(collected models.Fields) convo.Priority {
				// Only worth asking when the title suggests a person is involved.
				title := strings.ToLower(collected["title"].AsString())
				for _, cue := range []string{"call", "meet", "with", "visit", "email"} {
					if strings.Contains(title, cue) {
						return convo.PriorityMedium
					}
				}
				return convo.PriorityLow
			},
			Question: "Who is this about?",
			Examples: []string{"Alex", "Alex and Sam"},
			Shape:    ShapeStringList,
		},
		{
			Field:    "location",
			Ops:      []models.Intent{models.IntentCreateReminder},
			Priority: always(convo.PriorityLow),
			Question: "Is there a place tied to this?",
			Examples: []string{"office", "dentist on 5th street"},
			Shape:    ShapeString,
		},
		{
			Field:    "list_name",
			Ops:      []models.Intent{models.IntentListAdd},
			Priority: always(convo.PriorityMedium),
			Question: "Which list should that go on?",
			Examples: []string{"groceries", "hardware store"},
			Shape:    ShapeString,
		},
		{
			Field:    "quantity",
			Ops:      []models.Intent{models.IntentListAdd},
			Priority: always(convo.PriorityLow),
			Question: "How many?",
			Examples: []string{"2", "a dozen"},
			Shape:    ShapeString,
		},
		{
			Field:    "tags",
			Ops:      []models.Intent{models.IntentStoreFact},
			Priority: always(convo.PriorityMedium),
			Question: "Any tags I should file that under?",
			Examples: []string{"family", "work, travel"},
			Shape:    ShapeStringList,
		},
	}

	rs, err := NewRuleSet(rules)
	if err != nil {
		// The built-in table is static; a duplicate is a programming error.
		panic(err)
	}
	return rs
}
