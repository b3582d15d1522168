package faults_test

import (
	"strings"
	"testing"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/faults"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

func TestDetectUrgency(t *testing.T) {
	d := faults.NewDetector()

	tests := []struct {
		message string
		want    models.Urgency
	}{
		{"Det är en vattenläcka i köket!", models.UrgencyCritical},
		{"Hjälp, det brinner i soprummet", models.UrgencyCritical},
		{"Vi har ingen värme i lägenheten", models.UrgencyHigh},
		{"Jag är utelåst", models.UrgencyHigh},
		{"Kranen droppar lite i badrummet", models.UrgencyMedium},
		{"Hur gör jag en felanmälan?", models.UrgencyLow},
		{"Vad har ni för öppettider?", models.UrgencyLow},
	}
	for _, tt := range tests {
		if got := d.DetectUrgency(tt.message); got != tt.want {
			t.Errorf("DetectUrgency(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestDetectCategory(t *testing.T) {
	d := faults.NewDetector()

	tests := []struct {
		message string
		want    models.FaultCategory
	}{
		{"Vattenläcka under diskhon, det droppar på golvet", models.FaultWater},
		{"Det är fel på en lampa och ett uttag i trapphuset", models.FaultElectrical},
		{"Vi fryser, det kommer ingen värme från elementen", models.FaultHeating},
		{"Jag har tappat min nyckel och kan inte öppna min dörr", models.FaultSecurity},
		{"Det är en spricka i taket i sovrummet", models.FaultStructural},
		{"Min diskmaskin startar inte", models.FaultAppliance},
		{"Något är konstigt men jag vet inte vad", models.FaultOther},
	}
	for _, tt := range tests {
		if got := d.DetectCategory(tt.message); got != tt.want {
			t.Errorf("DetectCategory(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestCollectPullsReporterFromSession(t *testing.T) {
	d := faults.NewDetector()

	msg := &models.IncomingMessage{
		Text:      "Vattenläcka i badrummet",
		SessionID: "s-1",
		TenantID:  "default",
	}
	session := &models.Session{
		ID: "s-1",
		KnownFacts: map[string]string{
			"name":    "Anna Berg",
			"phone":   "0701234567",
			"address": "Storgatan 3",
		},
	}

	report := d.Collect(msg, session)
	if report.ID == "" {
		t.Error("Collect().ID is empty, want generated id")
	}
	if report.Category != models.FaultWater {
		t.Errorf("Category = %q, want %q", report.Category, models.FaultWater)
	}
	if report.Urgency != models.UrgencyCritical {
		t.Errorf("Urgency = %q, want %q", report.Urgency, models.UrgencyCritical)
	}
	if report.ReporterName != "Anna Berg" || report.ReporterPhone != "0701234567" {
		t.Errorf("reporter = %q/%q, want facts from session", report.ReporterName, report.ReporterPhone)
	}
	if report.Location != "Storgatan 3" {
		t.Errorf("Location = %q, want %q", report.Location, "Storgatan 3")
	}
}

func TestMissingQuestions(t *testing.T) {
	d := faults.NewDetector()

	// Nothing known: ask for address and contact.
	report := &models.FaultReport{Urgency: models.UrgencyHigh}
	qs := d.MissingQuestions(report)
	if len(qs) != 2 {
		t.Fatalf("MissingQuestions() returned %d questions, want 2: %v", len(qs), qs)
	}
	if !strings.Contains(qs[0], "adress") {
		t.Errorf("first question = %q, want address question first", qs[0])
	}

	// Everything known and urgency clear: nothing to ask.
	report = &models.FaultReport{
		Urgency:       models.UrgencyCritical,
		Location:      "Storgatan 3",
		ReporterPhone: "0701234567",
	}
	if qs := d.MissingQuestions(report); len(qs) != 0 {
		t.Errorf("MissingQuestions() = %v, want none", qs)
	}

	// Medium urgency additionally asks whether it can wait.
	report = &models.FaultReport{
		Urgency:       models.UrgencyMedium,
		Location:      "Storgatan 3",
		ReporterPhone: "0701234567",
	}
	qs = d.MissingQuestions(report)
	if len(qs) != 1 || !strings.Contains(qs[0], "akut") {
		t.Errorf("MissingQuestions() = %v, want the can-it-wait question", qs)
	}
}

func TestResponseTemplate(t *testing.T) {
	d := faults.NewDetector()

	critical := d.ResponseTemplate(&models.FaultReport{
		Category: models.FaultWater,
		Urgency:  models.UrgencyCritical,
	})
	if !strings.Contains(critical, "{phone}") {
		t.Errorf("critical water template = %q, want {phone} field", critical)
	}
	if !strings.Contains(critical, "Stäng av vattnet") {
		t.Errorf("critical water template = %q, want shut-off instruction", critical)
	}

	low := d.ResponseTemplate(&models.FaultReport{
		Category: models.FaultOther,
		Urgency:  models.UrgencyLow,
	})
	if strings.Contains(low, "{phone}") {
		t.Errorf("low urgency template = %q, should not push a phone call", low)
	}
}
