// Package lead scores buying interest on a 1 to 5 scale. Scores are
// monotonic within a session: the returned value is never lower than the
// session's current score, so a casual follow-up question cannot demote a
// hot lead.
package lead

import (
	"regexp"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

type band struct {
	level int
	res   []*regexp.Regexp
}

// Scorer holds the compiled trigger bands and history patterns.
type Scorer struct {
	bands     []band
	pricingRe *regexp.Regexp
	bookingRe *regexp.Regexp
	companyRe []*regexp.Regexp
}

// New compiles the scorer's trigger tables.
func New() *Scorer {
	compile := func(exprs ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(exprs))
		for _, e := range exprs {
			out = append(out, regexp.MustCompile(`(?i)`+e))
		}
		return out
	}
	return &Scorer{
		// Highest band first so scanning can stop at the first hit.
		bands: []band{
			{5, compile(`\bbuy\b`, `\bköp(a)?\b`, `\bready to\b`, `\bsign up\b`,
				`\bskriva (på|kontrakt)\b`, `\bstart(a)? nu\b`, `\bsubscribe\b`)},
			{4, compile(`\bboka\b`, `\bschedule\b`, `\bcallback\b`, `\bkontakta mig\b`,
				`\bvisning\b`, `\bdemo\b`, `\boffert\b`, `\bquote\b`)},
			{3, compile(`\bwe (are|need)\b`, `\bvi (behöver|söker)\b`, `\blooking for\b`,
				`\bflytta in\b`, `\bledig(a)? (lägenhet|lokal)\b`)},
			{2, compile(`\bimplement(era|ation)\b`, `\bsetup\b`, `\bkomma igång\b`,
				`\bansök(a|an)\b`, `\bkö(a|plats)?\b.*\blägenhet\b`)},
			{1, compile(`\bhow does it work\b`, `\bvad.*kostar\b`, `\bpricing\b`,
				`\binformation\b`, `\bhur fungerar\b`)},
		},
		pricingRe: regexp.MustCompile(`(?i)\bpris\b|\bprice\b|\bpricing\b|\bkostar\b|\bhyra\b`),
		bookingRe: regexp.MustCompile(`(?i)\bboka\b|\bbook\b|\bvisning\b`),
		companyRe: compile(`\bwe are\b`, `\bvi är\b`, `\bour company\b`, `\bvårt företag\b`, `\bföretag\b`),
	}
}

// Score computes the lead score for one message and returns the new
// session score plus whether this turn crossed the tenant's threshold.
// Pure; the caller commits the session update.
func (s *Scorer) Score(message string, history []models.TurnRecord, sessionScore, threshold int) (score int, crossed bool) {
	computed := 0
	for _, b := range s.bands {
		if matchAny(b.res, message) {
			computed = b.level
			break
		}
	}

	userTurns := lastUserTurns(history, 5)
	pricing := 0
	for _, t := range userTurns {
		if s.pricingRe.MatchString(t) {
			pricing++
		}
	}
	if pricing >= 2 && computed < 3 {
		computed = 3
	}
	recent := userTurns
	if len(recent) > 3 {
		recent = recent[:3]
	}
	for _, t := range recent {
		if s.bookingRe.MatchString(t) && computed < 4 {
			computed = 4
		}
	}
	if matchAny(s.companyRe, message) && computed < 3 {
		computed = 3
	}

	// The scale is 1 to 5: even a message with no buying signal reports
	// the minimum, never 0.
	score = max(sessionScore, computed)
	if score < 1 {
		score = 1
	}
	if score > 5 {
		score = 5
	}
	crossed = score >= threshold && sessionScore < threshold
	return score, crossed
}

func matchAny(res []*regexp.Regexp, text string) bool {
	for _, r := range res {
		if r.MatchString(text) {
			return true
		}
	}
	return false
}

// lastUserTurns returns up to n user turn texts, most recent first.
func lastUserTurns(history []models.TurnRecord, n int) []string {
	out := make([]string, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role == models.RoleUser {
			out = append(out, history[i].Text)
		}
	}
	return out
}
