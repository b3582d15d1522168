package notify_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/notify"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

func testEvent(targets ...string) models.Event {
	return models.Event{
		ID:        "ev-1",
		Type:      models.EventEscalation,
		TenantID:  "default",
		SessionID: "s-1",
		Priority:  models.PriorityHigh,
		Category:  "angry_customer",
		Summary:   "Conversation escalated after 3 turns",
		Targets:   targets,
		Timestamp: time.Now().UTC(),
	}
}

func TestWebhookSinkDelivers(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink("")
	if err := sink.Send(context.Background(), testEvent(srv.URL)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var payload models.Event
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.ID != "ev-1" || payload.Category != "angry_customer" {
		t.Errorf("payload = %+v, want the event fields", payload)
	}
	if len(payload.Targets) != 0 {
		t.Errorf("payload.Targets = %v, destination must not leak into the payload", payload.Targets)
	}
	if got := gotHeaders.Get("X-SupportBot-Event"); got != "escalation" {
		t.Errorf("X-SupportBot-Event = %q, want %q", got, "escalation")
	}
	if got := gotHeaders.Get("X-SupportBot-Tenant"); got != "default" {
		t.Errorf("X-SupportBot-Tenant = %q, want %q", got, "default")
	}
}

func TestWebhookSinkSignsPayload(t *testing.T) {
	const secret = "topsecret"

	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-SupportBot-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink(secret)
	if err := sink.Send(context.Background(), testEvent(srv.URL)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestWebhookSinkRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// Each retry must carry a full body, not a drained reader.
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink("")
	if err := sink.Send(context.Background(), testEvent(srv.URL)); err != nil {
		t.Fatalf("Send() error = %v, want success on third attempt", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d attempts, want 3", got)
	}
}

func TestWebhookSinkRequiresTarget(t *testing.T) {
	sink := notify.NewWebhookSink("")
	if err := sink.Send(context.Background(), testEvent()); err == nil {
		t.Fatal("Send() error = nil, want error without target URL")
	}
}

func TestDispatchResolvesNamedTargets(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := notify.NewDispatcher()
	d.Register(notify.NewWebhookSink(""))

	targets := map[string]string{"oncall": srv.URL, "sales": srv.URL}
	d.Dispatch(context.Background(), testEvent("oncall", "sales"), targets)

	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d deliveries, want 2", got)
	}
}

func TestDispatchUnknownTargetFallsBackToLog(t *testing.T) {
	d := notify.NewDispatcher()
	d.Register(notify.NewWebhookSink(""))

	// No URL mapping for the named target: must not panic and must not
	// hang; the log sink picks it up.
	d.Dispatch(context.Background(), testEvent("nobody"), map[string]string{})
}
