// Package models defines the shared data model for the support bot core:
// incoming messages, sessions, knowledge entries, escalation rules, and the
// RouterResult contract returned to the transport layer.
package models

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnRecord is one turn of conversation history. Append-only; immutable
// once written.
type TurnRecord struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IncomingMessage is the parsed inbound chat message the orchestrator
// consumes. It is owned by the orchestrator for the duration of one
// Process call and never mutated.
type IncomingMessage struct {
	Text      string       `json:"text"`
	SessionID string       `json:"session_id"`
	TenantID  string       `json:"tenant_id"`
	History   []TurnRecord `json:"history,omitempty"`
}

// Intent is the closed set of intent labels the classifier can assign.
type Intent string

const (
	IntentGreeting         Intent = "greeting"
	IntentGratitude        Intent = "gratitude"
	IntentGoodbye          Intent = "goodbye"
	IntentContactInfo      Intent = "contact_info"
	IntentHours            Intent = "hours"
	IntentPricingQuestion  Intent = "pricing_question"
	IntentHowItWorks       Intent = "how_it_works"
	IntentBookingRequest   Intent = "booking_request"
	IntentFaultReport      Intent = "fault_report"
	IntentRefundRequest    Intent = "refund_request"
	IntentComplaint        Intent = "complaint"
	IntentGeneralInfo      Intent = "general_info"
	IntentEscalationDemand Intent = "escalation_demand"
	IntentLegalThreat      Intent = "legal_threat"
	IntentUnknown          Intent = "unknown"
)

// Sentiment is an ordered severity scale. Order matters: the classifier
// smooths transitions so a session never worsens by more than one level
// per turn.
type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentNeutral    Sentiment = "neutral"
	SentimentFrustrated Sentiment = "frustrated"
	SentimentAngry      Sentiment = "angry"
)

// Severity returns the position of s on the ordered scale (0=positive,
// 3=angry). Unknown values rank as neutral.
func (s Sentiment) Severity() int {
	switch s {
	case SentimentPositive:
		return 0
	case SentimentFrustrated:
		return 2
	case SentimentAngry:
		return 3
	default:
		return 1
	}
}

// SentimentFromSeverity is the inverse of Severity.
func SentimentFromSeverity(level int) Sentiment {
	switch {
	case level <= 0:
		return SentimentPositive
	case level == 1:
		return SentimentNeutral
	case level == 2:
		return SentimentFrustrated
	default:
		return SentimentAngry
	}
}

// Action tells the transport layer what the widget should do next.
type Action string

const (
	ActionNone        Action = "none"
	ActionCollectInfo Action = "collect_info"
	ActionBookCall    Action = "book_call"
	ActionEscalate    Action = "escalate"
)

// Source records which cascade layer produced the reply. Exactly one
// layer supplies the reply per request.
type Source string

const (
	SourcePattern   Source = "pattern"
	SourceKnowledge Source = "knowledge"
	SourceModel     Source = "model"
	SourceFallback  Source = "fallback"
)

// RouterResult is the sole output contract of the orchestrator. Produced
// fresh per request; never mutated after construction.
type RouterResult struct {
	Reply      string    `json:"reply"`
	Intent     Intent    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Sentiment  Sentiment `json:"sentiment"`
	LeadScore  int       `json:"lead_score"`
	Action     Action    `json:"action"`
	Source     Source    `json:"source"`
	Followups  []string  `json:"suggested_followups,omitempty"`
}

// Session is the per-conversation rolling state. Exclusively owned by the
// memory store; mutated only inside its per-session update region.
// LeadScore and Escalated are monotonic within a session until an explicit
// reset.
type Session struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenant_id"`
	TurnCount         int               `json:"turn_count"`
	LeadScore         int               `json:"lead_score"`
	KnownFacts        map[string]string `json:"known_facts,omitempty"`
	Escalated         bool              `json:"escalated"`
	EscalatedCategory string            `json:"escalated_category,omitempty"`
	AngryStreak       int               `json:"angry_streak"`
	LastSentiment     Sentiment         `json:"last_sentiment,omitempty"`
	LastIntent        Intent            `json:"last_intent,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	LastActivity      time.Time         `json:"last_activity"`
}

// Clone returns a deep copy so callers can read a session without holding
// its update region.
func (s *Session) Clone() *Session {
	cp := *s
	if s.KnownFacts != nil {
		cp.KnownFacts = make(map[string]string, len(s.KnownFacts))
		for k, v := range s.KnownFacts {
			cp.KnownFacts[k] = v
		}
	}
	return &cp
}

// KnowledgeEntry is one FAQ/snippet entry in a tenant catalog. Read-only
// during request processing. Answer templates may contain {placeholder}
// fields resolved against the tenant profile at lookup time.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Keywords  []string  `json:"keywords"`
	Category  string    `json:"category,omitempty"`
	Priority  int       `json:"priority,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Priority orders escalation rules. Rules are evaluated by descending
// priority, ties broken by declaration order.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the sort weight of p (critical highest).
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// RuleEntry is one tenant escalation rule. Immutable at request time.
// A rule fires when any configured trigger matches: a keyword hit, a
// sentiment at or above the configured level sustained for SentimentStreak
// turns, a turn-count or lead-score ceiling, an explicit category, or a
// compiled Expr predicate over the signal snapshot.
type RuleEntry struct {
	Name            string    `json:"name"`
	Keywords        []string  `json:"keywords,omitempty"`
	Sentiment       Sentiment `json:"sentiment,omitempty"`
	SentimentStreak int       `json:"sentiment_streak,omitempty"`
	TurnCeiling     int       `json:"turn_ceiling,omitempty"`
	LeadCeiling     int       `json:"lead_ceiling,omitempty"`
	Category        string    `json:"category,omitempty"`
	Expr            string    `json:"expr,omitempty"`
	Priority        Priority  `json:"priority"`
	AutoEscalate    bool      `json:"auto_escalate"`
	NotifyTargets   []string  `json:"notify_targets,omitempty"`
	Reply           string    `json:"reply,omitempty"`
}

// TenantProfile is the fixed, enumerated set of tenant fields used for
// placeholder substitution, escalation contact info, and prompt grounding.
type TenantProfile struct {
	Name          string `json:"name"`
	Industry      string `json:"industry,omitempty"`
	Locations     string `json:"locations,omitempty"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Website       string `json:"website,omitempty"`
	BusinessHours string `json:"business_hours,omitempty"`
	ResponseTime  string `json:"response_time,omitempty"`
	Services      string `json:"services,omitempty"`
	Pricing       string `json:"pricing,omitempty"`
	BookingLink   string `json:"booking_link,omitempty"`
	Greeting      string `json:"greeting,omitempty"`
	Tone          string `json:"tone,omitempty"`
}

// Placeholders returns the substitution map for answer and rule templates.
func (p *TenantProfile) Placeholders() map[string]string {
	return map[string]string{
		"company_name":   p.Name,
		"phone":          p.Phone,
		"email":          p.Email,
		"website":        p.Website,
		"locations":      p.Locations,
		"business_hours": p.BusinessHours,
		"response_time":  p.ResponseTime,
		"pricing":        p.Pricing,
		"booking_link":   p.BookingLink,
	}
}

// EventType describes what a notification event reports.
type EventType string

const (
	EventEscalation    EventType = "escalation"
	EventLeadThreshold EventType = "lead_threshold"
	EventFaultReport   EventType = "fault_report"
)

// Event is the discrete notification emitted on escalation, fault reports,
// and lead-score threshold crossings. The core decides that and what to
// notify; delivery belongs to the sinks.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TenantID  string    `json:"tenant_id"`
	SessionID string    `json:"session_id"`
	Priority  Priority  `json:"priority"`
	Category  string    `json:"category,omitempty"`
	Summary   string    `json:"summary"`
	LeadScore int       `json:"lead_score,omitempty"`
	Targets   []string  `json:"targets,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FaultCategory classifies a reported property fault.
type FaultCategory string

const (
	FaultWater      FaultCategory = "water"
	FaultElectrical FaultCategory = "electrical"
	FaultHeating    FaultCategory = "heating"
	FaultSecurity   FaultCategory = "security"
	FaultStructural FaultCategory = "structural"
	FaultAppliance  FaultCategory = "appliance"
	FaultOther      FaultCategory = "other"
)

// Urgency grades a fault report. Low means "just asking about the
// process" and is handled by the normal cascade.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// FaultReport is a collected property fault with detected category and
// urgency plus whatever reporter details the session already knows.
type FaultReport struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	TenantID      string        `json:"tenant_id"`
	Category      FaultCategory `json:"category"`
	Urgency       Urgency       `json:"urgency"`
	Description   string        `json:"description"`
	Location      string        `json:"location,omitempty"`
	ReporterName  string        `json:"reporter_name,omitempty"`
	ReporterEmail string        `json:"reporter_email,omitempty"`
	ReporterPhone string        `json:"reporter_phone,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// MatchResult is what the pattern matcher returns on a hit.
type MatchResult struct {
	Category      Intent  `json:"category"`
	Response      string  `json:"response"`
	Confidence    float64 `json:"confidence"`
	LeadScoreHint int     `json:"lead_score_hint"`
}

// GenerateRequest is the composed request for the remote model driver.
type GenerateRequest struct {
	System  string       `json:"system"`
	Message string       `json:"message"`
	History []TurnRecord `json:"history,omitempty"`
}

// GenerateResponse is the remote model's reply with usage accounting.
type GenerateResponse struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	LatencyMs    int64  `json:"latency_ms"`
}
