// Package patterns implements the zero-cost first layer of the cascade:
// a prioritized, compiled table of rules that catches greetings, direct
// contact/hours asks, and critical emergencies without any external I/O.
//
// Only very explicit, simple inputs should match here. Anything that needs
// judgment (availability questions, applications, multi-part asks) must
// fall through to the rest of the cascade.
package patterns

import (
	"regexp"
	"strings"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

type rule struct {
	category   models.Intent
	re         *regexp.Regexp
	response   string
	confidence float64
	leadHint   int
}

// Matcher evaluates its rule table top to bottom; the first rule whose
// pattern matches the normalized input wins. Patterns are compiled once at
// construction, never per call.
type Matcher struct {
	rules []rule
}

// NewMatcher compiles the built-in rule table. Responses are templates
// with {placeholder} fields resolved against the tenant profile by the
// orchestrator before the reply leaves the pipeline.
func NewMatcher() *Matcher {
	return &Matcher{rules: []rule{
		// Critical emergencies come first: these must win over any
		// social pattern regardless of phrasing.
		{
			category:   models.IntentFaultReport,
			re:         regexp.MustCompile(`(akut|brinner|brand|gasläcka|översvämning|vattenläcka)`),
			response:   "Akut läge! Ring 112 först vid fara för liv. Ring sedan jour på {phone}. Vad har hänt?",
			confidence: 0.95,
			leadHint:   5,
		},
		{
			category:   models.IntentFaultReport,
			re:         regexp.MustCompile(`(utelåst|låst ute|tappat .{0,20}nyckel|nyckel.{0,10}borta|glömde .{0,20}nyckel)`),
			response:   "Utelåst? Ring jour {phone} nu. Vilken adress?",
			confidence: 0.9,
			leadHint:   4,
		},
		{
			category:   models.IntentGreeting,
			re:         regexp.MustCompile(`^(hej|tjena|hallå|god dag|hello|hi|hey|godmorgon|godkväll)[\s!?.]*$`),
			response:   "Hej! {company_name} här. Jag hjälper med frågor om fastigheter, felanmälan och förvaltning. Vad kan jag hjälpa med?",
			confidence: 0.9,
			leadHint:   1,
		},
		{
			category:   models.IntentGratitude,
			re:         regexp.MustCompile(`^(tack|tackar|tack så mycket|thanks|thank you)[\s!?.]*$`),
			response:   "Varsågod! Fler frågor - bara fråga.",
			confidence: 0.9,
			leadHint:   1,
		},
		{
			category:   models.IntentGoodbye,
			re:         regexp.MustCompile(`^(hejdå|adjö|vi ses|bye|goodbye)[\s!?.]*$`),
			response:   "Ha en bra dag!",
			confidence: 0.9,
			leadHint:   1,
		},
		{
			category:   models.IntentContactInfo,
			re:         regexp.MustCompile(`^(kontakt|kontaktuppgifter|telefon|telefonnummer|nummer|ring|mejl|e-post|email|adress)[\s!?.]*$`),
			response:   "Ring oss på {phone} eller mejla {email}. Vi finns i {locations}.",
			confidence: 0.85,
			leadHint:   1,
		},
		{
			category:   models.IntentHours,
			re:         regexp.MustCompile(`^(öppettider|när är ni öppna|öppet|opening hours)[\s!?.]*$`),
			response:   "{business_hours}. Akuta ärenden dygnet runt: ring jour på {phone}.",
			confidence: 0.9,
			leadHint:   1,
		},
		{
			category:   models.IntentFaultReport,
			re:         regexp.MustCompile(`^hur (gör|fungerar) (jag|man) en felanmälan[\s!?.]*$`),
			response:   "Felanmälan: ring {phone} eller använd formuläret på hemsidan. För akuta ärenden, ring jour.",
			confidence: 0.9,
			leadHint:   2,
		},
	}}
}

// Match returns the first matching rule's result, or nil when nothing
// matches. Unmatched text is a normal outcome, never an error.
func (m *Matcher) Match(text string) *models.MatchResult {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	for _, r := range m.rules {
		if r.re.MatchString(normalized) {
			return &models.MatchResult{
				Category:      r.category,
				Response:      r.response,
				Confidence:    r.confidence,
				LeadScoreHint: r.leadHint,
			}
		}
	}
	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

// Normalize lowercases the input and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.ToLower(text), " "))
}
