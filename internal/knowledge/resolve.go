package knowledge

import (
	"strings"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

// Resolve substitutes {placeholder} tokens in text with values from the
// tenant profile. Unknown or empty placeholders collapse to the empty
// string so no braces ever leak into a reply.
func Resolve(text string, profile *models.TenantProfile) string {
	if profile == nil || !strings.Contains(text, "{") {
		return text
	}
	values := profile.Placeholders()

	var b strings.Builder
	b.Grow(len(text))
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			b.WriteString(text)
			break
		}
		closing := strings.IndexByte(text[open:], '}')
		if closing < 0 {
			b.WriteString(text)
			break
		}
		closing += open
		b.WriteString(text[:open])
		key := text[open+1 : closing]
		if v, ok := values[key]; ok {
			b.WriteString(v)
		}
		text = text[closing+1:]
	}
	return b.String()
}
