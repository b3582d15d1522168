// Package classify assigns an intent and a sentiment to each incoming
// message. Intent scoring runs weighted regex tables over the message plus
// a recency-weighted window of the conversation history; sentiment is an
// independent keyword pass smoothed against the session's previous level.
package classify

import (
	"regexp"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

// historyWindow is how many trailing turns contribute to intent scoring.
const historyWindow = 5

// recencyWeights discount older turns. Index 0 is the most recent turn.
var recencyWeights = [historyWindow]float64{1.0, 0.8, 0.6, 0.4, 0.2}

type intentRule struct {
	intent models.Intent
	re     *regexp.Regexp
	weight float64
}

// Classifier holds the compiled intent and sentiment tables. All tables
// are compiled once at construction and read-only afterwards.
type Classifier struct {
	intents   []intentRule
	angry     []*regexp.Regexp
	frustrate []*regexp.Regexp
	positive  []*regexp.Regexp
}

// Result is one classification outcome.
type Result struct {
	Intent     models.Intent
	Confidence float64
	Sentiment  models.Sentiment
}

// New compiles the classifier tables.
func New() *Classifier {
	c := &Classifier{}
	add := func(intent models.Intent, weight float64, exprs ...string) {
		for _, e := range exprs {
			c.intents = append(c.intents, intentRule{
				intent: intent,
				re:     regexp.MustCompile(`(?i)` + e),
				weight: weight,
			})
		}
	}

	add(models.IntentGreeting, 1.0,
		`^\s*(hej|hejsan|hallå|god\s?(morgon|kväll)|hello|hi|hey)\b`)
	add(models.IntentGratitude, 1.0,
		`\btack(ar| så mycket)?\b`, `\bthank(s| you)\b`)
	add(models.IntentGoodbye, 1.0,
		`\bhej\s?då\b`, `\bha det bra\b`, `\b(good)?bye\b`)
	add(models.IntentContactInfo, 1.0,
		`\bkontakt(a|uppgifter)?\b`, `\btelefonnummer\b`, `\bnå er\b`,
		`\bcontact\b`, `\bphone number\b`, `\be-?mail\b.*\b(er|you)\b`)
	add(models.IntentHours, 1.0,
		`\böppettider\b`, `\böppet\b`, `\bnär.*(öppnar|stänger)\b`,
		`\b(opening|office) hours\b`, `\bwhen are you open\b`)
	add(models.IntentPricingQuestion, 1.0,
		`\bpris(er|ning|lista)?\b`, `\bkostar\b`, `\bkostnad\b`, `\bavgift\b`,
		`\bhyra\b.*\bkostar\b`, `\bhow much\b`, `\bpric(e|ing)\b`)
	add(models.IntentHowItWorks, 1.0,
		`\bfungerar\b`, `\bhur gör (jag|man)\b`, `\bhow does it work\b`,
		`\bhow do (i|you)\b`, `\bvad (gör|kan) ni\b`)
	add(models.IntentBookingRequest, 1.0,
		`\bboka\b`, `\bbokning\b`, `\bmöte\b`, `\bvisning\b`,
		`\b(book|schedule) (a )?(meeting|call|viewing)\b`, `\bcallback\b`)
	add(models.IntentFaultReport, 1.0,
		`\bfelanmäl(an|a)?\b`, `\btrasig\b`, `\bfungerar inte\b`, `\bläck(er|a|age)\b`,
		`\bstopp i avloppet\b`, `\bström(men)?\b.*\b(borta|gått)\b`,
		`\bbroken\b`, `\bleak(ing)?\b`, `\bdoesn'?t work\b`, `\bnot working\b`)
	add(models.IntentRefundRequest, 1.0,
		`\båterbetal(a|ning)\b`, `\bpengar(na)? tillbaka\b`, `\bavsluta\b.*\b(avtal|kontrakt)\b`,
		`\brefund\b`, `\bcancel\b.*\b(contract|lease)\b`)
	add(models.IntentComplaint, 1.0,
		`\bklagomål\b`, `\bklaga\b`, `\bdålig(t)?\b`, `\bmissnöjd\b`, `\boacceptabelt\b`,
		`\bterrible\b`, `\bhorrible\b`, `\bdisappointed\b`, `\bcomplaint\b`)
	add(models.IntentGeneralInfo, 0.6,
		`\binformation\b`, `\bberätta (mer|om)\b`, `\btell me (more|about)\b`,
		`\bvilka tjänster\b`, `\bwhat services\b`)
	add(models.IntentEscalationDemand, 1.0,
		`\b(prata|tala) med (en )?(människa|person|chef|någon)\b`,
		`\b(talk|speak) to (a )?(human|person|manager|someone)\b`,
		`\bchef(en)?\b`, `\bmanager\b`, `\bansvarig\b`)
	add(models.IntentLegalThreat, 1.0,
		`\badvokat\b`, `\bjurist\b`, `\bstäm(ma|mer|ning)\b`, `\banmäl(a|er)\b.*\b(er|hyresnämnden|arn)\b`,
		`\bhyresnämnden\b`, `\bkonsumentverket\b`, `\blawyer\b`, `\blegal action\b`, `\bsue\b`)

	compile := func(exprs ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(exprs))
		for _, e := range exprs {
			out = append(out, regexp.MustCompile(`(?i)`+e))
		}
		return out
	}
	c.angry = compile(
		`\bidiot(er|s)?\b`, `\bstupid\b`, `\buseless\b`, `\bvärdelös(t|a)?\b`,
		`\bvidrig(t)?\b`, `\bskäms\b`, `\bhorribel\b`, `\bnever\b.*\bagain\b`,
		`\bförbannad\b`, `\bjävla\b`, `\baldrig mer\b`)
	c.frustrate = compile(
		`\bimpossible\b`, `\bomöjligt\b`, `\bcan'?t\b`, `\bcannot\b`,
		`\bhow many times\b`, `\bhur många gånger\b`, `\bfortfarande\b.*\binte\b`,
		`\binte fungerar\b`, `\bkaos\b`, `\btrött på\b`, `\bfed up\b`, `\bvänta(t)? i\b`)
	c.positive = compile(
		`\bgreat\b`, `\bamazing\b`, `\bawesome\b`, `\bperfect\b`, `\bhelpful\b`,
		`\btack(sam)?\b`, `\bbra\b`, `\butmärkt\b`, `\btoppen\b`, `\bkanon\b`, `\blove\b`)
	return c
}

// Classify scores the message against the intent tables (with trailing
// history lightly weighted in) and runs the sentiment pass. lastSentiment
// is the session's previous level; worsening is clamped to one step per
// turn so a single hot word cannot jump a calm session straight to angry.
func (c *Classifier) Classify(message string, history []models.TurnRecord, lastSentiment models.Sentiment) Result {
	scores := make(map[models.Intent]float64)

	score := func(text string, weight float64) {
		for _, r := range c.intents {
			if r.re.MatchString(text) {
				scores[r.intent] += r.weight * weight
			}
		}
	}
	score(message, 1.0)

	// Most recent user turns first, discounted by recency.
	n := 0
	for i := len(history) - 1; i >= 0 && n < historyWindow; i-- {
		if history[i].Role != models.RoleUser {
			continue
		}
		score(history[i].Text, recencyWeights[n]*0.5)
		n++
	}

	intent, confidence := c.rank(scores)
	raw := c.detectSentiment(message)
	return Result{
		Intent:     intent,
		Confidence: confidence,
		Sentiment:  smooth(lastSentiment, raw),
	}
}

// rank picks the winner and derives confidence from its margin over the
// runner-up. A clear winner approaches 1; a dead heat approaches 0.5.
// Candidates are visited in table declaration order so ties always
// resolve to the same intent.
func (c *Classifier) rank(scores map[models.Intent]float64) (models.Intent, float64) {
	if len(scores) == 0 {
		return models.IntentUnknown, 0.3
	}
	var best, second float64
	winner := models.IntentUnknown
	seen := make(map[models.Intent]bool, len(scores))
	for _, r := range c.intents {
		if seen[r.intent] {
			continue
		}
		seen[r.intent] = true
		s, ok := scores[r.intent]
		if !ok {
			continue
		}
		switch {
		case s > best:
			second = best
			best = s
			winner = r.intent
		case s > second:
			second = s
		}
	}
	margin := (best - second) / best
	confidence := 0.5 + 0.5*margin
	if best >= 2 && confidence < 0.9 {
		confidence = 0.9
	}
	return winner, confidence
}

func (c *Classifier) detectSentiment(message string) models.Sentiment {
	match := func(res []*regexp.Regexp) bool {
		for _, r := range res {
			if r.MatchString(message) {
				return true
			}
		}
		return false
	}
	switch {
	case match(c.angry):
		return models.SentimentAngry
	case match(c.frustrate):
		return models.SentimentFrustrated
	case match(c.positive):
		return models.SentimentPositive
	default:
		return models.SentimentNeutral
	}
}

// smooth clamps worsening to one severity level per turn. Improvement is
// applied immediately.
func smooth(previous, current models.Sentiment) models.Sentiment {
	if previous == "" {
		return current
	}
	prev, cur := previous.Severity(), current.Severity()
	if cur > prev+1 {
		return models.SentimentFromSeverity(prev + 1)
	}
	return current
}
