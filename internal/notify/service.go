// Package notify dispatches escalation and lead events to the tenant's
// configured targets. OSS ships two sinks: a webhook sink with optional
// HMAC-SHA256 signing, and a structured log sink that is always
// registered as the fallback.
//
// Delivery is fire-and-forget from the orchestrator's point of view: a
// failed webhook never delays or fails the customer's reply.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/contracts"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/rs/zerolog/log"
)

// Dispatcher fans events out to registered sinks.
type Dispatcher struct {
	mu    sync.RWMutex
	sinks map[string]contracts.Sink
}

// NewDispatcher creates a dispatcher with the log sink pre-registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{sinks: make(map[string]contracts.Sink)}
	d.Register(&LogSink{})
	return d
}

// Register adds or replaces a sink for its kind.
func (d *Dispatcher) Register(sink contracts.Sink) {
	d.mu.Lock()
	d.sinks[sink.Kind()] = sink
	d.mu.Unlock()
	log.Info().Str("kind", sink.Kind()).Msg("Notification sink registered")
}

// Dispatch delivers the event to every target concurrently. targets maps
// target names to webhook URLs; events with no resolvable target go to
// the log sink. Blocks until all deliveries finish or ctx expires.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.Event, targets map[string]string) {
	d.mu.RLock()
	webhook := d.sinks["webhook"]
	logSink := d.sinks["log"]
	d.mu.RUnlock()

	var wg sync.WaitGroup
	delivered := false
	for _, name := range event.Targets {
		url, ok := targets[name]
		if !ok || webhook == nil {
			continue
		}
		delivered = true
		wg.Add(1)
		go func(name, url string) {
			defer wg.Done()
			ev := event
			ev.Targets = []string{url}
			if err := webhook.Send(ctx, ev); err != nil {
				log.Warn().
					Err(err).
					Str("target", name).
					Str("tenant", event.TenantID).
					Str("event", string(event.Type)).
					Msg("Notification delivery failed")
			}
		}(name, url)
	}
	wg.Wait()

	if !delivered && logSink != nil {
		_ = logSink.Send(ctx, event)
	}
}

// ── Log sink ─────────────────────────────────────────────────

// LogSink writes events to the structured log. Always available.
type LogSink struct{}

func (s *LogSink) Kind() string { return "log" }

func (s *LogSink) Send(_ context.Context, event models.Event) error {
	log.Info().
		Str("event", string(event.Type)).
		Str("tenant", event.TenantID).
		Str("session", event.SessionID).
		Str("priority", string(event.Priority)).
		Str("category", event.Category).
		Int("lead_score", event.LeadScore).
		Str("summary", event.Summary).
		Msg("Notification event")
	return nil
}

// ── Webhook sink ─────────────────────────────────────────────

// WebhookSink posts events as JSON with optional HMAC-SHA256 signing.
// The event's Targets field carries the resolved destination URL.
type WebhookSink struct {
	client *http.Client
	secret string
}

// NewWebhookSink creates the webhook sink. secret may be empty to skip
// signing.
func NewWebhookSink(secret string) *WebhookSink {
	return &WebhookSink{
		client: &http.Client{Timeout: 15 * time.Second},
		secret: secret,
	}
}

func (s *WebhookSink) Kind() string { return "webhook" }

// Send posts the event with up to 3 attempts and linear backoff.
func (s *WebhookSink) Send(ctx context.Context, event models.Event) error {
	if len(event.Targets) == 0 {
		return fmt.Errorf("webhook: no target URL on event %s", event.ID)
	}
	url := event.Targets[0]
	event.Targets = nil // destination is transport detail, not payload

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*2) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "SupportBot-Webhook/1.0")
		req.Header.Set("X-SupportBot-Event", string(event.Type))
		req.Header.Set("X-SupportBot-Tenant", event.TenantID)
		if s.secret != "" {
			mac := hmac.New(sha256.New, []byte(s.secret))
			mac.Write(body)
			req.Header.Set("X-SupportBot-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, url)
	}
	return fmt.Errorf("webhook failed after 3 attempts: %w", lastErr)
}
