package tenant_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/config"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/tenant"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

func defaults() config.CascadeConfig {
	return config.CascadeConfig{
		ConfidenceFloor:   0.7,
		LeadThreshold:     4,
		MaxTurns:          8,
		AngryStreak:       2,
		SemanticThreshold: 0.78,
		KeywordMinOverlap: 0.34,
		MaxFollowups:      4,
	}
}

func writeTenant(t *testing.T, dir, id, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, id+".json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write tenant file: %v", err)
	}
}

const minimalTenant = `{
  "profile": {
    "name": "Vallhamra Gruppen",
    "phone": "031-123 45 67",
    "email": "info@vallhamragruppen.se"
  }
}`

func TestGetOrCreateLoadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", minimalTenant)

	r := tenant.NewRegistry(dir, defaults(), nil)
	ten, err := r.GetOrCreate(context.Background(), "default")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if ten.ID != "default" || ten.Profile.Name != "Vallhamra Gruppen" {
		t.Errorf("tenant = %+v, want profile from file", ten)
	}
	if ten.Cascade.LeadThreshold != 4 {
		t.Errorf("LeadThreshold = %d, want server default 4", ten.Cascade.LeadThreshold)
	}
}

func TestGetOrCreateUnknownTenant(t *testing.T) {
	r := tenant.NewRegistry(t.TempDir(), defaults(), nil)

	_, err := r.GetOrCreate(context.Background(), "missing")
	if !models.IsTenantNotFound(err) {
		t.Errorf("GetOrCreate() error = %v, want TenantNotFoundError", err)
	}
}

func TestGetOrCreateRejectsUnsafeIDs(t *testing.T) {
	r := tenant.NewRegistry(t.TempDir(), defaults(), nil)

	for _, id := range []string{"../etc/passwd", "UPPER", "a b", "", strings.Repeat("x", 65)} {
		if _, err := r.GetOrCreate(context.Background(), id); !models.IsTenantNotFound(err) {
			t.Errorf("GetOrCreate(%q) error = %v, want TenantNotFoundError", id, err)
		}
	}
}

func TestOverridesReplaceDefaults(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", `{
  "profile": {"name": "VG", "phone": "031-1"},
  "overrides": {"lead_threshold": 3, "max_turns": 12}
}`)

	r := tenant.NewRegistry(dir, defaults(), nil)
	ten, err := r.GetOrCreate(context.Background(), "default")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if ten.Cascade.LeadThreshold != 3 {
		t.Errorf("LeadThreshold = %d, want overridden 3", ten.Cascade.LeadThreshold)
	}
	if ten.Cascade.MaxTurns != 12 {
		t.Errorf("MaxTurns = %d, want overridden 12", ten.Cascade.MaxTurns)
	}
	// Untouched knobs inherit defaults.
	if ten.Cascade.AngryStreak != 2 {
		t.Errorf("AngryStreak = %d, want default 2", ten.Cascade.AngryStreak)
	}
}

func TestLoadRejectsMissingProfileName(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", `{"profile": {"phone": "031-1"}}`)

	r := tenant.NewRegistry(dir, defaults(), nil)
	if _, err := r.GetOrCreate(context.Background(), "default"); err == nil {
		t.Fatal("GetOrCreate() error = nil, want profile.name required")
	}
}

func TestLoadRejectsProfileWithoutContact(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", `{"profile": {"name": "VG"}}`)

	r := tenant.NewRegistry(dir, defaults(), nil)
	if _, err := r.GetOrCreate(context.Background(), "default"); err == nil {
		t.Fatal("GetOrCreate() error = nil, want phone-or-email required")
	}
}

func TestLoadRejectsUnknownPlaceholder(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", `{
  "profile": {"name": "VG", "phone": "031-1"},
  "knowledge": [{"id": "k1", "answer": "Ring {telefon}", "keywords": ["ring"]}]
}`)

	r := tenant.NewRegistry(dir, defaults(), nil)
	_, err := r.GetOrCreate(context.Background(), "default")
	if err == nil || !strings.Contains(err.Error(), "unknown placeholder") {
		t.Fatalf("GetOrCreate() error = %v, want unknown placeholder rejection", err)
	}
}

func TestLoadRejectsBrokenRuleExpression(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", `{
  "profile": {"name": "VG", "phone": "031-1"},
  "escalation_rules": [{"name": "broken", "expr": "lead_score >=", "priority": "high"}]
}`)

	r := tenant.NewRegistry(dir, defaults(), nil)
	if _, err := r.GetOrCreate(context.Background(), "default"); err == nil {
		t.Fatal("GetOrCreate() error = nil, want compile failure surfaced at load")
	}
}

func TestReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", minimalTenant)

	r := tenant.NewRegistry(dir, defaults(), nil)
	before, err := r.GetOrCreate(context.Background(), "default")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	writeTenant(t, dir, "default", `{
  "profile": {"name": "Vallhamra Gruppen AB", "phone": "031-123 45 67"}
}`)
	after, err := r.Reload(context.Background(), "default")
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if after.Profile.Name != "Vallhamra Gruppen AB" {
		t.Errorf("Profile.Name = %q, want reloaded value", after.Profile.Name)
	}
	// The old snapshot is untouched; in-flight requests finish on it.
	if before.Profile.Name != "Vallhamra Gruppen" {
		t.Errorf("old snapshot mutated: %q", before.Profile.Name)
	}
}

func TestReloadFailureKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", minimalTenant)

	r := tenant.NewRegistry(dir, defaults(), nil)
	if _, err := r.GetOrCreate(context.Background(), "default"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	writeTenant(t, dir, "default", `{not json`)
	if _, err := r.Reload(context.Background(), "default"); err == nil {
		t.Fatal("Reload() error = nil, want parse failure")
	}

	ten, err := r.GetOrCreate(context.Background(), "default")
	if err != nil {
		t.Fatalf("GetOrCreate() after failed reload error = %v", err)
	}
	if ten.Profile.Name != "Vallhamra Gruppen" {
		t.Errorf("Profile.Name = %q, want previous snapshot still live", ten.Profile.Name)
	}
}

func TestInvalidateDropsCache(t *testing.T) {
	dir := t.TempDir()
	writeTenant(t, dir, "default", minimalTenant)

	r := tenant.NewRegistry(dir, defaults(), nil)
	if _, err := r.GetOrCreate(context.Background(), "default"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if got := r.List(); len(got) != 1 {
		t.Fatalf("List() = %v, want one cached tenant", got)
	}

	r.Invalidate("default")
	if got := r.List(); len(got) != 0 {
		t.Errorf("List() after Invalidate = %v, want empty", got)
	}

	// Removing the file makes the next request fail.
	os.Remove(filepath.Join(dir, "default.json"))
	if _, err := r.GetOrCreate(context.Background(), "default"); !models.IsTenantNotFound(err) {
		t.Errorf("GetOrCreate() error = %v, want TenantNotFoundError after removal", err)
	}
}
