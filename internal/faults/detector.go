// Package faults detects property fault reports in free-text messages:
// what kind of fault it is, how urgent it is, and which follow-up details
// still need collecting before a human can act on the report.
package faults

import (
	"regexp"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/patterns"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/google/uuid"
)

var urgencyPatterns = []struct {
	level models.Urgency
	res   []*regexp.Regexp
}{
	{models.UrgencyCritical, compile(
		`\b(vattenläcka|översvämning|brinner|eld|brand|gasläcka|strömavbrott|inbrott|skadegörelse)\b`,
		`\b(flood|fire|burst|emergency|danger)\b`,
		`\b(akut|kritiskt|livsfarligt)\b`,
	)},
	{models.UrgencyHigh, compile(
		`\b(ingen värme|inget vatten|fryser|utelåst|kommer inte in)\b`,
		`\b(no heating|no water|broken lock|cannot enter)\b`,
		`\b(fungerar inte alls)\b`,
	)},
	{models.UrgencyMedium, compile(
		`\b(läcker|droppar|trasig|problem|fel på|fungerar dåligt|störningar)\b`,
		`\b(leaking|noisy|broken|not working)\b`,
	)},
}

var categoryPatterns = map[models.FaultCategory][]*regexp.Regexp{
	models.FaultWater: compile(
		`\b(vatten|avlopp|kran|toalett|spola|läcker|droppar|vattenläcka|översvämning)\b`,
		`\b(water|drain|faucet|toilet|leak|drip)\b`,
	),
	models.FaultElectrical: compile(
		`\b(ström|el|ljus|lampa|uttag|brytare|säkring|elektrisk|strömavbrott)\b`,
		`\b(power|electric|light|lamp|outlet|switch|fuse)\b`,
	),
	models.FaultHeating: compile(
		`\b(värme|element|ventilation|kallt|fryser|termostat)\b`,
		`\b(heating|radiator|ventilation|cold|freeze|thermostat)\b`,
	),
	models.FaultSecurity: compile(
		`\b(lås|nyckel|dörr|inbrott|larm|säkerhet|utelåst)\b`,
		`\b(lock|key|door|break-in|alarm|security)\b`,
	),
	models.FaultStructural: compile(
		`\b(tak|vägg|golv|fönster|skada|spricka)\b`,
		`\b(roof|wall|floor|ceiling|damage|crack)\b`,
	),
	models.FaultAppliance: compile(
		`\b(spis|ugn|kyl|frys|diskmaskin|tvättmaskin|torktumlare|vitvaror)\b`,
		`\b(stove|oven|fridge|dishwasher|washer|dryer)\b`,
	),
}

func compile(exprs ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		res[i] = regexp.MustCompile(e)
	}
	return res
}

// Detector classifies fault reports. All tables are compiled at package
// load; Detect runs no I/O.
type Detector struct{}

// NewDetector returns a fault detector.
func NewDetector() *Detector { return &Detector{} }

// DetectUrgency grades the message. Low means the user is asking about
// the process rather than reporting a live fault.
func (d *Detector) DetectUrgency(text string) models.Urgency {
	normalized := patterns.Normalize(text)
	for _, up := range urgencyPatterns {
		for _, re := range up.res {
			if re.MatchString(normalized) {
				return up.level
			}
		}
	}
	return models.UrgencyLow
}

// DetectCategory picks the fault category with the most pattern hits;
// FaultOther when nothing matches.
func (d *Detector) DetectCategory(text string) models.FaultCategory {
	normalized := patterns.Normalize(text)
	best := models.FaultOther
	bestScore := 0
	// Deterministic iteration order so ties always resolve the same way.
	for _, cat := range []models.FaultCategory{
		models.FaultWater, models.FaultElectrical, models.FaultHeating,
		models.FaultSecurity, models.FaultStructural, models.FaultAppliance,
	} {
		score := 0
		for _, re := range categoryPatterns[cat] {
			if re.MatchString(normalized) {
				score++
			}
		}
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}
	return best
}

// Collect builds a FaultReport for the message, pulling reporter details
// from the session's known facts when present.
func (d *Detector) Collect(msg *models.IncomingMessage, session *models.Session) *models.FaultReport {
	report := &models.FaultReport{
		ID:          uuid.NewString(),
		SessionID:   msg.SessionID,
		TenantID:    msg.TenantID,
		Category:    d.DetectCategory(msg.Text),
		Urgency:     d.DetectUrgency(msg.Text),
		Description: msg.Text,
		CreatedAt:   time.Now().UTC(),
	}
	if session != nil {
		report.ReporterName = session.KnownFacts["name"]
		report.ReporterEmail = session.KnownFacts["email"]
		report.ReporterPhone = session.KnownFacts["phone"]
		report.Location = session.KnownFacts["address"]
	}
	return report
}

// MissingQuestions lists the collection questions for details the report
// still lacks, in the order they should be asked.
func (d *Detector) MissingQuestions(report *models.FaultReport) []string {
	var questions []string
	if report.Location == "" {
		questions = append(questions, "Vilken adress och vilket lägenhetsnummer gäller det?")
	}
	if report.ReporterPhone == "" && report.ReporterEmail == "" {
		questions = append(questions, "Hur når vi dig? Telefonnummer eller e-post.")
	}
	if report.Urgency == models.UrgencyMedium {
		questions = append(questions, "Är det akut eller kan det vänta till kontorstid?")
	}
	return questions
}

// ResponseTemplate returns the templated first reply for a detected fault.
// Placeholders are resolved against the tenant profile by the caller.
func (d *Detector) ResponseTemplate(report *models.FaultReport) string {
	switch report.Urgency {
	case models.UrgencyCritical:
		if report.Category == models.FaultWater {
			return "Vattenläcka! Stäng av vattnet under diskhon om möjligt. Ring jour på {phone} direkt."
		}
		return "Akut ärende! Ring jour på {phone} direkt. Vad har hänt?"
	case models.UrgencyHigh:
		switch report.Category {
		case models.FaultWater:
			return "Inget vatten? Gäller det hela fastigheten eller bara din lägenhet? Ring {phone}."
		case models.FaultHeating:
			return "Ingen värme. Har du kollat termostaten? Ring {phone} om det inte hjälper."
		case models.FaultElectrical:
			return "Strömproblem. Kolla säkringsskåpet först. Ring {phone}."
		case models.FaultSecurity:
			return "Utelåst? Ring jour {phone} nu. Vilken adress?"
		}
		return "Viktigt ärende. Ring {phone} och berätta vad som hänt."
	default:
		if report.Category == models.FaultAppliance {
			return "Vitvaror: är den köpt av dig eller ingår den i fastigheten? Ring {phone}."
		}
		return "Jag hjälper dig göra en felanmälan. Beskriv problemet så tar vi det vidare."
	}
}
