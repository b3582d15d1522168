package patterns_test

import (
	"strings"
	"testing"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/patterns"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

func TestMatchGreeting(t *testing.T) {
	m := patterns.NewMatcher()

	for _, msg := range []string{"Hej!", "hej", "Tjena", "Hallå!!", "hello"} {
		hit := m.Match(msg)
		if hit == nil {
			t.Fatalf("Match(%q) = nil, want greeting hit", msg)
		}
		if hit.Category != models.IntentGreeting {
			t.Errorf("Match(%q).Category = %q, want %q", msg, hit.Category, models.IntentGreeting)
		}
		if hit.Confidence < 0.85 {
			t.Errorf("Match(%q).Confidence = %v, want >= 0.85", msg, hit.Confidence)
		}
	}
}

func TestMatchGreetingOnlyWhenAlone(t *testing.T) {
	m := patterns.NewMatcher()

	// A greeting followed by an actual question must not resolve as a
	// bare greeting hit.
	hit := m.Match("Hej, vad kostar en lägenhet i Sävedalen?")
	if hit != nil && hit.Category == models.IntentGreeting {
		t.Errorf("Match() resolved %q as a greeting", "Hej, vad kostar...")
	}
}

func TestMatchEmergencyWinsOverPhrasing(t *testing.T) {
	m := patterns.NewMatcher()

	hit := m.Match("Hej, det är översvämning i källaren!")
	if hit == nil {
		t.Fatal("Match() = nil, want emergency hit")
	}
	if hit.Category != models.IntentFaultReport {
		t.Errorf("Category = %q, want %q", hit.Category, models.IntentFaultReport)
	}
	if !strings.Contains(hit.Response, "112") {
		t.Errorf("emergency response = %q, want reference to 112", hit.Response)
	}
	if !strings.Contains(hit.Response, "{phone}") {
		t.Errorf("emergency response = %q, want {phone} template field", hit.Response)
	}
}

func TestMatchLockedOut(t *testing.T) {
	m := patterns.NewMatcher()

	hit := m.Match("Jag är utelåst från min lägenhet")
	if hit == nil {
		t.Fatal("Match() = nil, want locked-out hit")
	}
	if hit.Category != models.IntentFaultReport {
		t.Errorf("Category = %q, want %q", hit.Category, models.IntentFaultReport)
	}
}

func TestMatchContactAndHours(t *testing.T) {
	m := patterns.NewMatcher()

	if hit := m.Match("telefonnummer"); hit == nil || hit.Category != models.IntentContactInfo {
		t.Errorf("Match(telefonnummer) = %+v, want contact_info", hit)
	}
	if hit := m.Match("öppettider?"); hit == nil || hit.Category != models.IntentHours {
		t.Errorf("Match(öppettider?) = %+v, want hours", hit)
	}
}

func TestMatchMissesComplexQuestions(t *testing.T) {
	m := patterns.NewMatcher()

	// Anything that needs judgment falls through to the rest of the
	// cascade.
	for _, msg := range []string{
		"Har ni några lediga tvåor i Partille just nu?",
		"Vad ingår i hyran och hur lång är uppsägningstiden?",
		"",
		"   ",
	} {
		if hit := m.Match(msg); hit != nil {
			t.Errorf("Match(%q) = %+v, want nil", msg, hit)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := patterns.Normalize("  HEJ   på\t dig  ")
	want := "hej på dig"
	if got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}
