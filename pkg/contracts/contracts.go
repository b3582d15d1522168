// Package contracts defines the service interfaces at the seams of the
// support bot core. The orchestrator depends on these interfaces, so the
// transport layer can wire real drivers in production and mocks in tests
// with a single line change in the wiring code.
package contracts

import (
	"context"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

// ── Remote model ────────────────────────────────────────────

// ModelDriver is the remote generative model invocation. It is an
// unreliable, latency-variable, rate-limited dependency: every failure
// must come back as a *models.RemoteModelError so the orchestrator can
// take its fallback branch.
type ModelDriver interface {
	// Kind returns the provider identifier (e.g. "anthropic", "ollama").
	Kind() string

	// Generate produces a reply for the composed prompt. Implementations
	// must respect ctx cancellation and deadlines.
	Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)

	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error
}

// ── Embeddings ──────────────────────────────────────────────

// EmbeddingDriver turns text into vectors for the catalog's semantic
// lookup strategy.
type EmbeddingDriver interface {
	Kind() string
	Dimensions() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	HealthCheck(ctx context.Context) error
}

// ── Notifications ───────────────────────────────────────────

// Sink delivers escalation and lead events to a destination (webhook,
// structured log, chat channel). Delivery failures are the sink's problem
// to report; the core never blocks a reply on them.
type Sink interface {
	Kind() string
	Send(ctx context.Context, event models.Event) error
}

// ── Sessions ────────────────────────────────────────────────

// SessionStore owns all mutable session state. Concurrent updates for the
// same session ID are serialized; different sessions proceed independently.
type SessionStore interface {
	// Get returns a copy of the session, or models.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)

	// Update runs fn inside the session's exclusive update region,
	// creating the session first if it does not exist. The update is
	// all-or-nothing: fn sees a consistent session and its mutations
	// commit atomically with respect to other callers.
	Update(ctx context.Context, tenantID, id string, fn func(*models.Session)) (*models.Session, error)

	// Reset clears the session's accumulated state (lead score,
	// escalation flag, known facts).
	Reset(ctx context.Context, id string) error
}
