// Package prompt composes the system prompt for remote model calls. The
// prompt carries the tenant's business profile, any grounding snippets
// from the knowledge catalog, and the facts collected so far, so the
// model answers as the tenant's support agent instead of a generic chat
// assistant.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

// maxHistoryTurns is how many trailing turns ride along with the request.
const maxHistoryTurns = 10

// Composer builds GenerateRequests for the remote model.
type Composer struct{}

// New creates a prompt composer.
func New() *Composer {
	return &Composer{}
}

// Compose builds the remote model request. grounding holds
// placeholder-resolved catalog answers considered relevant; with no
// grounding the prompt instructs the model to defer to the company's
// contact channels rather than invent facts.
func (c *Composer) Compose(profile *models.TenantProfile, session *models.Session, grounding []string, msg *models.IncomingMessage) *models.GenerateRequest {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the customer support assistant for %s", profile.Name)
	if profile.Industry != "" {
		fmt.Fprintf(&b, ", a %s business", profile.Industry)
	}
	b.WriteString(".\n")
	writeField(&b, "Services", profile.Services)
	writeField(&b, "Locations", profile.Locations)
	writeField(&b, "Business hours", profile.BusinessHours)
	writeField(&b, "Pricing", profile.Pricing)
	writeField(&b, "Phone", profile.Phone)
	writeField(&b, "Email", profile.Email)
	writeField(&b, "Website", profile.Website)
	writeField(&b, "Typical response time", profile.ResponseTime)
	if profile.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s.\n", profile.Tone)
	}

	if len(grounding) > 0 {
		b.WriteString("\nRelevant knowledge base entries:\n")
		for _, g := range grounding {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		b.WriteString("\nAnswer using the knowledge base entries above when they apply.\n")
	} else {
		b.WriteString("\nNo knowledge base entry matches this question. ")
		b.WriteString("Do not invent policies, prices, or facts. ")
		fmt.Fprintf(&b, "If unsure, refer the customer to %s or %s.\n", profile.Phone, profile.Email)
	}

	if len(session.KnownFacts) > 0 {
		b.WriteString("\nKnown about this customer:\n")
		keys := make([]string, 0, len(session.KnownFacts))
		for k := range session.KnownFacts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, session.KnownFacts[k])
		}
	}

	b.WriteString("\nReply in the customer's language. Keep answers short and concrete. ")
	b.WriteString("Never promise actions you cannot take; offer to connect the customer with a colleague instead.")

	history := msg.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	return &models.GenerateRequest{
		System:  b.String(),
		Message: msg.Text,
		History: history,
	}
}

func writeField(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}
