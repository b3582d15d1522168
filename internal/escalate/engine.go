// Package escalate decides when a conversation leaves the bot and goes to
// a human. Tenant rules are compiled once at config load into a RuleSet;
// evaluation is pure and allocation-light so it can run on every turn.
//
// A session moves local -> ai_assisted -> escalated. Escalated is terminal
// until an explicit reset: once a session is handed to a human the bot
// only acknowledges, it never resumes answering.
package escalate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/config"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Input is the per-turn evaluation context. Field names double as the
// expr environment, so rule expressions read naturally:
//
//	lead_score >= 4 && sentiment == "frustrated"
type Input struct {
	Intent      string `expr:"intent"`
	Sentiment   string `expr:"sentiment"`
	LeadScore   int    `expr:"lead_score"`
	TurnCount   int    `expr:"turn_count"`
	AngryStreak int    `expr:"angry_streak"`
	Message     string `expr:"message"`
}

// Decision is the outcome of evaluating one turn against a rule set.
// Rule is nil when no rule fired.
type Decision struct {
	Escalate bool
	Rule     *models.RuleEntry
	Reason   string
}

type compiledRule struct {
	entry    models.RuleEntry
	keywords []string // lowercased
	program  *vm.Program
}

// RuleSet is a tenant's compiled escalation rules, ordered by descending
// priority with declaration order breaking ties. Immutable after Compile.
type RuleSet struct {
	rules    []compiledRule
	maxTurns int
	streak   int
}

// Compile validates and compiles the tenant's rules. A tenant with no
// rules gets the built-in ceiling defaults only. Compilation failure of
// any expression fails the whole set so a broken rule file is rejected at
// load time, not discovered mid-conversation.
func Compile(entries []models.RuleEntry, cascade config.CascadeConfig) (*RuleSet, error) {
	rs := &RuleSet{
		maxTurns: cascade.MaxTurns,
		streak:   cascade.AngryStreak,
	}
	for i, e := range entries {
		cr := compiledRule{entry: e}
		for _, kw := range e.Keywords {
			cr.keywords = append(cr.keywords, strings.ToLower(kw))
		}
		if e.Expr != "" {
			program, err := expr.Compile(e.Expr, expr.Env(Input{}), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("rule %q (index %d): compile expression: %w", e.Name, i, err)
			}
			cr.program = program
		}
		rs.rules = append(rs.rules, cr)
	}
	sort.SliceStable(rs.rules, func(i, j int) bool {
		return rs.rules[i].entry.Priority.Rank() > rs.rules[j].entry.Priority.Rank()
	})
	return rs, nil
}

// Evaluate returns the first matching rule's decision. Tenant rules run
// first; the built-in ceilings (legal threat, manager demand, anger
// streak, turn count) apply regardless so no tenant config can disable
// the hard floors.
func (rs *RuleSet) Evaluate(in Input) Decision {
	lower := strings.ToLower(in.Message)

	for i := range rs.rules {
		r := &rs.rules[i]
		if rs.matches(r, in, lower) {
			return Decision{Escalate: true, Rule: &r.entry, Reason: r.entry.Name}
		}
	}

	switch models.Intent(in.Intent) {
	case models.IntentLegalThreat:
		return Decision{Escalate: true, Rule: &builtinLegal, Reason: builtinLegal.Name}
	case models.IntentEscalationDemand:
		return Decision{Escalate: true, Rule: &builtinDemand, Reason: builtinDemand.Name}
	}
	if in.Sentiment == string(models.SentimentAngry) && in.AngryStreak >= rs.streak {
		return Decision{Escalate: true, Rule: &builtinAnger, Reason: builtinAnger.Name}
	}
	if rs.maxTurns > 0 && in.TurnCount >= rs.maxTurns {
		return Decision{Escalate: true, Rule: &builtinTurns, Reason: builtinTurns.Name}
	}
	return Decision{}
}

// matches applies every predicate the rule declares; all declared
// predicates must hold. A rule with no predicates never fires.
func (rs *RuleSet) matches(r *compiledRule, in Input, lowerMsg string) bool {
	declared := false

	if len(r.keywords) > 0 {
		declared = true
		hit := false
		for _, kw := range r.keywords {
			if strings.Contains(lowerMsg, kw) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if r.entry.Sentiment != "" {
		declared = true
		if models.Sentiment(in.Sentiment).Severity() < r.entry.Sentiment.Severity() {
			return false
		}
		if r.entry.SentimentStreak > 0 && in.AngryStreak < r.entry.SentimentStreak {
			return false
		}
	}
	if r.entry.TurnCeiling > 0 {
		declared = true
		if in.TurnCount < r.entry.TurnCeiling {
			return false
		}
	}
	if r.entry.LeadCeiling > 0 {
		declared = true
		if in.LeadScore < r.entry.LeadCeiling {
			return false
		}
	}
	if r.entry.Category != "" {
		declared = true
		if in.Intent != r.entry.Category {
			return false
		}
	}
	if r.program != nil {
		declared = true
		out, err := expr.Run(r.program, in)
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		if !ok {
			return false
		}
	}
	return declared
}

var (
	builtinLegal = models.RuleEntry{
		Name:         "legal_threat",
		Priority:     models.PriorityCritical,
		AutoEscalate: true,
		Category:     string(models.IntentLegalThreat),
	}
	builtinDemand = models.RuleEntry{
		Name:         "human_requested",
		Priority:     models.PriorityHigh,
		AutoEscalate: true,
		Category:     string(models.IntentEscalationDemand),
	}
	builtinAnger = models.RuleEntry{
		Name:         "angry_customer",
		Priority:     models.PriorityHigh,
		AutoEscalate: true,
	}
	builtinTurns = models.RuleEntry{
		Name:         "conversation_too_long",
		Priority:     models.PriorityMedium,
		AutoEscalate: true,
	}
)
