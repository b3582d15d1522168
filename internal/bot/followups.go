package bot

import (
	"regexp"
	"strings"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/knowledge"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

// followupTable maps intents to quick-reply suggestions. Templates are
// resolved against the tenant profile before they reach the widget.
var followupTable = map[models.Intent][]string{
	models.IntentGreeting: {
		"Jag vill göra en felanmälan",
		"Vad har ni för lediga objekt?",
		"Vilka är era öppettider?",
	},
	models.IntentPricingQuestion: {
		"Boka en visning",
		"Vad ingår i hyran?",
		"Kontakta mig på {email}",
	},
	models.IntentHowItWorks: {
		"Hur gör jag en felanmälan?",
		"Vad kostar det?",
	},
	models.IntentBookingRequest: {
		"Ring mig för att boka tid",
		"Vilka tider passar?",
	},
	models.IntentHours: {
		"Jag har ett akut ärende",
		"Jag vill bli kontaktad",
	},
	models.IntentGeneralInfo: {
		"Berätta om era tjänster",
		"Hur kontaktar jag er?",
	},
}

// highLeadFollowup nudges hot leads toward a booking.
const highLeadFollowup = "Boka ett samtal med oss"

// appendFollowups fills the remaining followup slots from the intent
// table, capped at limit.
func appendFollowups(existing []string, intent models.Intent, leadScore int, profile *models.TenantProfile, limit int) []string {
	if limit <= 0 || len(existing) >= limit {
		return truncate(existing, limit)
	}

	out := existing
	if leadScore >= 4 && !contains(out, highLeadFollowup) {
		out = append(out, highLeadFollowup)
	}
	for _, f := range followupTable[intent] {
		if len(out) >= limit {
			break
		}
		resolved := knowledge.Resolve(f, profile)
		if !contains(out, resolved) {
			out = append(out, resolved)
		}
	}
	return truncate(out, limit)
}

func truncate(s []string, limit int) []string {
	if limit >= 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(\+46|0)[\s\-]?7[\s\-]?\d([\s\-]?\d){7}`)
	nameRe  = regexp.MustCompile(`(?i)(?:jag heter|mitt namn är|my name is)\s+([A-ZÅÄÖ][a-zåäöé]+(?:\s+[A-ZÅÄÖ][a-zåäöé]+)?)`)
)

// extractFacts pulls contact details volunteered in the message so a
// later fault report or escalation carries them without asking again.
func extractFacts(text string) map[string]string {
	facts := make(map[string]string)
	if m := emailRe.FindString(text); m != "" {
		facts["email"] = m
	}
	if m := phoneRe.FindString(text); m != "" {
		facts["phone"] = strings.Map(func(r rune) rune {
			if r == ' ' || r == '-' {
				return -1
			}
			return r
		}, m)
	}
	if m := nameRe.FindStringSubmatch(text); m != nil {
		facts["name"] = m[1]
	}
	if len(facts) == 0 {
		return nil
	}
	return facts
}
