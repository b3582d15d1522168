// Package validate checks inbound chat messages before any session state
// is touched. A rejected message never increments the turn counter.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?|directions?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?|context)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`),
	regexp.MustCompile(`(?i)new\s+instructions?:\s*`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system\s+)?(prompt|instructions?)`),
	regexp.MustCompile(`(?i)glöm\s+(alla\s+)?(tidigare|dina)\s+instruktioner`),
	regexp.MustCompile(`(?i)ignorera\s+(alla\s+)?(tidigare|dina)\s+instruktioner`),
}

// Validator enforces the inbound message constraints.
type Validator struct {
	maxChars int
}

// New creates a validator with the given message size limit.
func New(maxChars int) *Validator {
	return &Validator{maxChars: maxChars}
}

// Check returns a *models.ValidationError when the message must be
// rejected, nil when the message may enter the cascade.
func (v *Validator) Check(msg *models.IncomingMessage) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return models.NewValidationError("message is empty")
	}
	if utf8.RuneCountInString(text) > v.maxChars {
		return models.NewValidationError("message exceeds %d characters", v.maxChars)
	}
	if msg.SessionID == "" {
		return models.NewValidationError("session_id is required")
	}
	if msg.TenantID == "" {
		return models.NewValidationError("tenant_id is required")
	}
	return nil
}

// Injection reports whether the message looks like a prompt injection
// attempt. Flagged messages are not rejected; the caller answers with
// the tenant's contact reply and keeps them away from the remote model.
func (v *Validator) Injection(text string) bool {
	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
