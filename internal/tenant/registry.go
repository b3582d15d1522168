// Package tenant loads and serves per-tenant configuration: business
// profile, knowledge catalog, escalation rules, and cascade overrides.
// One JSON file per tenant lives under the config directory, named
// <tenant_id>.json.
//
// Loaded tenants are immutable. Reload builds a fresh Tenant and swaps it
// in with an atomic pointer store, so in-flight requests finish on the
// snapshot they started with and no request ever observes a half-loaded
// tenant.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/config"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/escalate"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/contracts"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/rs/zerolog/log"
)

// Overrides are the per-tenant cascade knobs. Nil fields inherit the
// server defaults.
type Overrides struct {
	ConfidenceFloor *float64 `json:"confidence_floor,omitempty"`
	LeadThreshold   *int     `json:"lead_threshold,omitempty"`
	MaxTurns        *int     `json:"max_turns,omitempty"`
	AngryStreak     *int     `json:"angry_streak,omitempty"`
}

// FileConfig is the on-disk shape of one tenant file.
type FileConfig struct {
	Profile   models.TenantProfile    `json:"profile"`
	Knowledge []models.KnowledgeEntry `json:"knowledge,omitempty"`
	Rules     []models.RuleEntry      `json:"escalation_rules,omitempty"`
	Overrides *Overrides              `json:"overrides,omitempty"`
	Targets   map[string]string       `json:"notify_targets,omitempty"` // target name -> webhook URL
}

// Tenant is one loaded, validated, compiled tenant. Immutable.
type Tenant struct {
	ID        string
	Profile   models.TenantProfile
	Knowledge []models.KnowledgeEntry
	Rules     *escalate.RuleSet
	Cascade   config.CascadeConfig
	Targets   map[string]string
}

// Registry loads tenants on demand and serves immutable snapshots.
type Registry struct {
	dir      string
	defaults config.CascadeConfig
	embedder contracts.EmbeddingDriver

	mu      sync.Mutex
	tenants map[string]*atomic.Pointer[Tenant]
}

// NewRegistry creates a registry over the given tenant config directory.
// embedder may be nil; when present, knowledge entries without embeddings
// get them precomputed at load time.
func NewRegistry(dir string, defaults config.CascadeConfig, embedder contracts.EmbeddingDriver) *Registry {
	return &Registry{
		dir:      dir,
		defaults: defaults,
		embedder: embedder,
		tenants:  make(map[string]*atomic.Pointer[Tenant]),
	}
}

// GetOrCreate returns the tenant snapshot, loading its file on first use.
// Unknown tenants (no config file) return a TenantNotFoundError.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*Tenant, error) {
	r.mu.Lock()
	ptr, ok := r.tenants[id]
	r.mu.Unlock()
	if ok {
		if t := ptr.Load(); t != nil {
			return t, nil
		}
	}
	return r.Reload(ctx, id)
}

// Reload re-reads the tenant's file, validates and compiles it, then
// atomically swaps the snapshot. On failure the previous snapshot stays
// live.
func (r *Registry) Reload(ctx context.Context, id string) (*Tenant, error) {
	t, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	ptr, ok := r.tenants[id]
	if !ok {
		ptr = &atomic.Pointer[Tenant]{}
		r.tenants[id] = ptr
	}
	r.mu.Unlock()

	ptr.Store(t)
	log.Info().
		Str("tenant", id).
		Int("knowledge_entries", len(t.Knowledge)).
		Msg("Tenant config loaded")
	return t, nil
}

// Invalidate drops the cached snapshot so the next request reloads from
// disk.
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	delete(r.tenants, id)
	r.mu.Unlock()
}

// List returns the IDs of all currently cached tenants.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) load(ctx context.Context, id string) (*Tenant, error) {
	if !validTenantID(id) {
		return nil, &models.TenantNotFoundError{TenantID: id}
	}
	path := filepath.Join(r.dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &models.TenantNotFoundError{TenantID: id}
		}
		return nil, fmt.Errorf("read tenant %s: %w", id, err)
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse tenant %s: %w", id, err)
	}
	if err := validate(&fc); err != nil {
		return nil, fmt.Errorf("tenant %s: %w", id, err)
	}

	cascade := r.defaults
	if o := fc.Overrides; o != nil {
		if o.ConfidenceFloor != nil {
			cascade.ConfidenceFloor = *o.ConfidenceFloor
		}
		if o.LeadThreshold != nil {
			cascade.LeadThreshold = *o.LeadThreshold
		}
		if o.MaxTurns != nil {
			cascade.MaxTurns = *o.MaxTurns
		}
		if o.AngryStreak != nil {
			cascade.AngryStreak = *o.AngryStreak
		}
	}

	rules, err := escalate.Compile(fc.Rules, cascade)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", id, err)
	}

	knowledge := fc.Knowledge
	if r.embedder != nil {
		knowledge = r.precompute(ctx, id, knowledge)
	}

	return &Tenant{
		ID:        id,
		Profile:   fc.Profile,
		Knowledge: knowledge,
		Rules:     rules,
		Cascade:   cascade,
		Targets:   fc.Targets,
	}, nil
}

// precompute fills in missing knowledge embeddings. Embedding failure is
// not fatal: the catalog degrades to keyword lookup.
func (r *Registry) precompute(ctx context.Context, id string, entries []models.KnowledgeEntry) []models.KnowledgeEntry {
	var missing []int
	var texts []string
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, e.Question)
		}
	}
	if len(missing) == 0 {
		return entries
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(missing) {
		log.Warn().Err(err).Str("tenant", id).Msg("Embedding precompute failed, keyword lookup only")
		return entries
	}
	out := make([]models.KnowledgeEntry, len(entries))
	copy(out, entries)
	for n, i := range missing {
		out[i].Embedding = vectors[n]
	}
	return out
}

func validate(fc *FileConfig) error {
	if fc.Profile.Name == "" {
		return fmt.Errorf("profile.name is required")
	}
	if fc.Profile.Phone == "" && fc.Profile.Email == "" {
		return fmt.Errorf("profile needs at least one of phone or email")
	}
	known := fc.Profile.Placeholders()
	for i, e := range fc.Knowledge {
		if e.Answer == "" {
			return fmt.Errorf("knowledge[%d]: answer is required", i)
		}
		if err := checkPlaceholders(e.Answer, known); err != nil {
			return fmt.Errorf("knowledge[%d]: %w", i, err)
		}
	}
	for i, rule := range fc.Rules {
		if rule.Name == "" {
			return fmt.Errorf("escalation_rules[%d]: name is required", i)
		}
		if rule.Reply != "" {
			if err := checkPlaceholders(rule.Reply, known); err != nil {
				return fmt.Errorf("escalation_rules[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// checkPlaceholders rejects templates referencing placeholders the
// profile cannot fill. Catching this at load beats shipping a customer a
// reply with a hole in it.
func checkPlaceholders(text string, known map[string]string) error {
	rest := text
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return fmt.Errorf("unbalanced placeholder braces")
		}
		key := rest[open+1 : open+closing]
		if _, ok := known[key]; !ok {
			return fmt.Errorf("unknown placeholder {%s}", key)
		}
		rest = rest[open+closing+1:]
	}
}

// validTenantID keeps tenant IDs pathname-safe.
func validTenantID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
