package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/api"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/api/handlers"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/bot"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/classify"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/config"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/faults"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/knowledge"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/lead"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/llm"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/memory"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/metrics"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/notify"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/patterns"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/prompt"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/tenant"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/validate"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

// stubDriver is a registered-but-unused model driver so /health reports
// per-driver status.
type stubDriver struct{}

func (stubDriver) Kind() string { return "stub" }

func (stubDriver) Generate(context.Context, *models.GenerateRequest) (*models.GenerateResponse, error) {
	return &models.GenerateResponse{Text: "stub"}, nil
}

func (stubDriver) HealthCheck(context.Context) error { return nil }

const testTenant = `{
  "profile": {
    "name": "Vallhamra Gruppen",
    "phone": "031-123 45 67",
    "email": "info@vallhamragruppen.se"
  }
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "default.json"), []byte(testTenant), 0o644); err != nil {
		t.Fatalf("write tenant file: %v", err)
	}

	cfg := config.Load()
	cfg.TenantDir = dir

	sessions := memory.NewStore(time.Hour)
	tenants := tenant.NewRegistry(dir, cfg.Cascade, nil)
	collector := metrics.NewCollector()

	orch := bot.New(bot.Options{
		Validator:  validate.New(cfg.Cascade.MaxMessageChars),
		Tenants:    tenants,
		Store:      sessions,
		Matcher:    patterns.NewMatcher(),
		Detector:   faults.NewDetector(),
		Catalog:    knowledge.NewCatalog(nil, cfg.Cascade),
		Classifier: classify.New(),
		Leads:      lead.New(),
		Composer:   prompt.New(),
		Model:      nil,
		Dispatcher: notify.NewDispatcher(),
		Collector:  collector,
	})

	registry := llm.NewRegistry()
	registry.Register(stubDriver{})

	h := handlers.New(orch, sessions, tenants, collector, registry)
	srv := httptest.NewServer(api.NewRouter(cfg, h))
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, srv *httptest.Server, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST /api/v1/chat error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status string            `json:"status"`
		Models map[string]string `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want %q", body.Status, "healthy")
	}
	if body.Models["stub"] != "ok" {
		t.Errorf("models[stub] = %q, want %q", body.Models["stub"], "ok")
	}
}

func TestChatRoundtrip(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postChat(t, srv, map[string]any{"message": "Hej!"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %v", resp.StatusCode, body)
	}
	if body["session_id"] == "" || body["session_id"] == nil {
		t.Error("session_id missing, want a generated id for new conversations")
	}
	if body["reply"] == "" || body["reply"] == nil {
		t.Error("reply missing")
	}
	if body["source"] != string(models.SourcePattern) {
		t.Errorf("source = %v, want %q", body["source"], models.SourcePattern)
	}
}

func TestChatKeepsSessionAcrossTurns(t *testing.T) {
	srv := newTestServer(t)

	_, first := postChat(t, srv, map[string]any{"message": "Hej!"})
	sessionID := first["session_id"].(string)

	_, second := postChat(t, srv, map[string]any{"message": "Tack!", "session_id": sessionID})
	if second["session_id"] != sessionID {
		t.Errorf("session_id = %v, want %q reused", second["session_id"], sessionID)
	}

	resp, err := http.Get(srv.URL + "/api/v1/sessions/" + sessionID)
	if err != nil {
		t.Fatalf("GET session error = %v", err)
	}
	defer resp.Body.Close()
	var session models.Session
	json.NewDecoder(resp.Body).Decode(&session)
	if session.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", session.TurnCount)
	}
}

func TestChatValidationErrorIs400(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postChat(t, srv, map[string]any{"message": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for empty message", resp.StatusCode)
	}
}

func TestChatUnknownTenantIs404(t *testing.T) {
	srv := newTestServer(t)

	raw, _ := json.Marshal(map[string]any{"message": "hej"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "missing")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown tenant", resp.StatusCode)
	}
}

func TestSessionResetEndpoint(t *testing.T) {
	srv := newTestServer(t)

	_, body := postChat(t, srv, map[string]any{"message": "Hej!"})
	sessionID := body["session_id"].(string)

	resp, err := http.Post(srv.URL+"/api/v1/sessions/"+sessionID+"/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reset error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	got, err := http.Get(srv.URL + "/api/v1/sessions/" + sessionID)
	if err != nil {
		t.Fatalf("GET session error = %v", err)
	}
	defer got.Body.Close()
	var session models.Session
	json.NewDecoder(got.Body).Decode(&session)
	if session.TurnCount != 0 {
		t.Errorf("TurnCount after reset = %d, want 0", session.TurnCount)
	}
}

func TestSessionNotFoundIs404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/sessions/does-not-exist")
	if err != nil {
		t.Fatalf("GET session error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	postChat(t, srv, map[string]any{"message": "Hej!"})

	resp, err := http.Get(srv.URL + "/api/v1/metrics")
	if err != nil {
		t.Fatalf("GET metrics error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if len(snap) == 0 {
		t.Error("metrics snapshot is empty")
	}
}

func TestTenantReloadEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/tenants/default/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reload error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	missing, err := http.Post(srv.URL+"/api/v1/tenants/missing/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reload error = %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown tenant", missing.StatusCode)
	}
}
