// Package bot runs the decision cascade for each incoming chat message:
// pattern match, fault detection, knowledge catalog, classification, lead
// scoring, escalation rules, and only then the remote model. Exactly one
// layer supplies the reply. Session state is committed once at the end of
// the request, all or nothing.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/classify"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/escalate"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/faults"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/knowledge"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/lead"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/metrics"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/notify"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/patterns"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/prompt"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/tenant"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/validate"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/contracts"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Orchestrator wires the cascade components together.
type Orchestrator struct {
	validator  *validate.Validator
	tenants    *tenant.Registry
	store      contracts.SessionStore
	matcher    *patterns.Matcher
	detector   *faults.Detector
	catalog    *knowledge.Catalog
	classifier *classify.Classifier
	leads      *lead.Scorer
	composer   *prompt.Composer
	model      contracts.ModelDriver
	dispatcher *notify.Dispatcher
	collector  *metrics.Collector
}

// Options carries the orchestrator's dependencies. Model may be nil when
// no remote provider is configured; the cascade then ends at the
// deterministic fallback.
type Options struct {
	Validator  *validate.Validator
	Tenants    *tenant.Registry
	Store      contracts.SessionStore
	Matcher    *patterns.Matcher
	Detector   *faults.Detector
	Catalog    *knowledge.Catalog
	Classifier *classify.Classifier
	Leads      *lead.Scorer
	Composer   *prompt.Composer
	Model      contracts.ModelDriver
	Dispatcher *notify.Dispatcher
	Collector  *metrics.Collector
}

// New creates the orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		validator:  opts.Validator,
		tenants:    opts.Tenants,
		store:      opts.Store,
		matcher:    opts.Matcher,
		detector:   opts.Detector,
		catalog:    opts.Catalog,
		classifier: opts.Classifier,
		leads:      opts.Leads,
		composer:   opts.Composer,
		model:      opts.Model,
		dispatcher: opts.Dispatcher,
		collector:  opts.Collector,
	}
}

// outcome is the fully-computed result of one turn, staged before the
// single session commit.
type outcome struct {
	result      *models.RouterResult
	escalated   bool
	rule        *models.RuleEntry
	leadCrossed bool
	facts       map[string]string
	report      *models.FaultReport
}

// Process runs one message through the cascade. The only errors that
// cross this boundary are validation and unknown-tenant errors; remote
// model failures degrade to the fallback reply.
func (o *Orchestrator) Process(ctx context.Context, msg *models.IncomingMessage) (*models.RouterResult, error) {
	if err := o.validator.Check(msg); err != nil {
		o.collector.ValidationRejected()
		return nil, err
	}

	ten, err := o.tenants.GetOrCreate(ctx, msg.TenantID)
	if err != nil {
		return nil, err
	}

	prior, err := o.store.Get(ctx, msg.SessionID)
	if errors.Is(err, models.ErrSessionNotFound) {
		prior = &models.Session{ID: msg.SessionID, TenantID: msg.TenantID}
		o.collector.ConversationStarted()
	} else if err != nil {
		return nil, err
	}

	var out *outcome
	if o.validator.Injection(msg.Text) {
		o.collector.ValidationRejected()
		out = o.deflect(ten, prior)
	} else {
		out = o.decide(ctx, ten, prior, msg)
	}

	session, err := o.commit(ctx, msg, out)
	if err != nil {
		return nil, err
	}

	o.emit(ten, session, out)
	o.collector.MessageProcessed(string(out.result.Source))
	return out.result, nil
}

// deflect answers a flagged prompt-injection attempt with the fixed
// contact reply. The message never reaches the catalog or the remote
// model, and nothing in it is classified or scored.
func (o *Orchestrator) deflect(ten *tenant.Tenant, prior *models.Session) *outcome {
	sentiment := prior.LastSentiment
	if sentiment == "" {
		sentiment = models.SentimentNeutral
	}
	leadScore := prior.LeadScore
	if leadScore < 1 {
		leadScore = 1
	}
	return &outcome{
		result: &models.RouterResult{
			Intent:     models.IntentUnknown,
			Confidence: 1,
			Sentiment:  sentiment,
			LeadScore:  leadScore,
			Action:     models.ActionNone,
			Source:     models.SourceFallback,
			Reply: knowledge.Resolve(
				"Den frågan kan jag inte hjälpa till med i chatten. Ring oss på {phone} eller mejla {email} så hjälper vi dig.",
				&ten.Profile),
		},
	}
}

// decide computes the whole turn outcome without touching shared state.
func (o *Orchestrator) decide(ctx context.Context, ten *tenant.Tenant, prior *models.Session, msg *models.IncomingMessage) *outcome {
	cls := o.classifier.Classify(msg.Text, msg.History, prior.LastSentiment)
	streak := 0
	if cls.Sentiment == models.SentimentAngry {
		streak = prior.AngryStreak + 1
	}
	leadScore, crossed := o.leads.Score(msg.Text, msg.History, prior.LeadScore, ten.Cascade.LeadThreshold)

	out := &outcome{
		leadCrossed: crossed,
		facts:       extractFacts(msg.Text),
		result: &models.RouterResult{
			Intent:     cls.Intent,
			Confidence: cls.Confidence,
			Sentiment:  cls.Sentiment,
			LeadScore:  leadScore,
			Action:     models.ActionNone,
			Source:     models.SourceFallback,
		},
	}
	res := out.result

	// A handed-over session stays with the human until reset.
	if prior.Escalated {
		out.escalated = true
		res.Reply = knowledge.Resolve(
			"Ditt ärende ligger hos en kollega som hör av sig inom {response_time}. Akut? Ring {phone}.",
			&ten.Profile)
		res.Action = models.ActionEscalate
		return out
	}

	resolved := false

	if hit := o.matcher.Match(msg.Text); hit != nil {
		res.Reply = knowledge.Resolve(hit.Response, &ten.Profile)
		if hit.Category == models.IntentGreeting && ten.Profile.Greeting != "" {
			res.Reply = knowledge.Resolve(ten.Profile.Greeting, &ten.Profile)
		}
		res.Intent = hit.Category
		res.Confidence = hit.Confidence
		res.Source = models.SourcePattern
		if hit.LeadScoreHint > res.LeadScore {
			res.LeadScore = min(hit.LeadScoreHint, 5)
		}
		resolved = true
	}

	// Fault detection runs even after a pattern hit so the report gets
	// filed and critical urgency forces the escalation branch below.
	urgency := o.detector.DetectUrgency(msg.Text)
	if urgency != models.UrgencyLow || res.Intent == models.IntentFaultReport {
		report := o.detector.Collect(msg, prior)
		out.report = report
		res.Intent = models.IntentFaultReport
		if !resolved {
			reply := o.detector.ResponseTemplate(report)
			res.Reply = knowledge.Resolve(reply, &ten.Profile)
			res.Confidence = 0.9
			res.Source = models.SourcePattern
			resolved = true
		}
		for _, q := range o.detector.MissingQuestions(report) {
			res.Followups = append(res.Followups, q)
		}
		res.Action = models.ActionCollectInfo
	}

	var grounding []string
	if !resolved {
		if hit := o.catalog.Lookup(ctx, msg.Text, ten.Knowledge, &ten.Profile); hit != nil {
			res.Reply = hit.Answer
			res.Confidence = hit.Score
			res.Source = models.SourceKnowledge
			// A weak hit counts as unresolved: it rides along as
			// grounding for the model, and stands in as the reply if
			// the model is unavailable.
			resolved = hit.Score >= ten.Cascade.ConfidenceFloor
			if !resolved {
				grounding = append(grounding, hit.Answer)
			}
		}
	}

	// Escalation rules always run, resolved or not: a mundane message on
	// the ninth turn still escalates.
	decision := ten.Rules.Evaluate(escalate.Input{
		Intent:      string(res.Intent),
		Sentiment:   string(res.Sentiment),
		LeadScore:   res.LeadScore,
		TurnCount:   prior.TurnCount + 1,
		AngryStreak: streak,
		Message:     msg.Text,
	})
	if !decision.Escalate && out.report != nil &&
		(out.report.Urgency == models.UrgencyCritical || out.report.Urgency == models.UrgencyHigh) {
		decision = escalate.Decision{
			Escalate: true,
			Rule: &models.RuleEntry{
				Name:          "urgent_fault",
				Priority:      models.PriorityCritical,
				Category:      string(out.report.Category),
				AutoEscalate:  true,
				NotifyTargets: nil,
			},
			Reason: "urgent_fault",
		}
	}

	if decision.Escalate {
		out.escalated = true
		out.rule = decision.Rule
		res.Action = models.ActionEscalate
		if decision.Rule != nil && decision.Rule.Reply != "" {
			res.Reply = knowledge.Resolve(decision.Rule.Reply, &ten.Profile)
		} else if !resolved {
			res.Reply = knowledge.Resolve(
				"Jag kopplar in en kollega som tar över ditt ärende. Du nås inom {response_time}. Brådskande? Ring {phone}.",
				&ten.Profile)
		}
		return out
	}

	if !resolved {
		o.remote(ctx, ten, prior, msg, grounding, res)
	}

	if res.Action == models.ActionNone {
		res.Action = actionFor(res.Intent, res.LeadScore, ten.Cascade.LeadThreshold)
	}
	res.Followups = appendFollowups(res.Followups, res.Intent, res.LeadScore, &ten.Profile, ten.Cascade.MaxFollowups)
	return out
}

// remote calls the model with a grounded prompt, degrading to the
// deterministic fallback on any failure.
func (o *Orchestrator) remote(ctx context.Context, ten *tenant.Tenant, prior *models.Session, msg *models.IncomingMessage, grounding []string, res *models.RouterResult) {
	if o.model != nil {
		req := o.composer.Compose(&ten.Profile, prior, grounding, msg)
		resp, err := o.model.Generate(ctx, req)
		o.collector.RemoteCall(err != nil)
		if err == nil {
			res.Reply = resp.Text
			res.Source = models.SourceModel
			if res.Confidence < 0.75 {
				res.Confidence = 0.75
			}
			return
		}
		log.Warn().
			Err(err).
			Str("tenant", ten.ID).
			Str("session", msg.SessionID).
			Msg("Remote model unavailable, using fallback reply")
	}

	// A staged low-confidence catalog answer beats the generic fallback.
	if res.Source == models.SourceKnowledge && res.Reply != "" {
		return
	}

	res.Reply = knowledge.Resolve(
		"Bra fråga! Den vill jag inte gissa på. Ring oss på {phone} eller mejla {email} så får du ett säkert svar. Kan jag hjälpa med något annat?",
		&ten.Profile)
	res.Source = models.SourceFallback
	res.Action = models.ActionCollectInfo
}

// commit applies the turn to the session inside its exclusive update
// region. Lead score and escalation merge monotonically so concurrent
// turns never lose an increment.
func (o *Orchestrator) commit(ctx context.Context, msg *models.IncomingMessage, out *outcome) (*models.Session, error) {
	return o.store.Update(ctx, msg.TenantID, msg.SessionID, func(s *models.Session) {
		s.TurnCount++
		if out.result.LeadScore > s.LeadScore {
			s.LeadScore = out.result.LeadScore
		}
		s.LastSentiment = out.result.Sentiment
		s.LastIntent = out.result.Intent
		if out.result.Sentiment == models.SentimentAngry {
			s.AngryStreak++
		} else {
			s.AngryStreak = 0
		}
		if out.escalated && !s.Escalated {
			s.Escalated = true
			if out.rule != nil {
				s.EscalatedCategory = out.rule.Name
			}
		}
		if len(out.facts) > 0 {
			if s.KnownFacts == nil {
				s.KnownFacts = make(map[string]string, len(out.facts))
			}
			for k, v := range out.facts {
				if _, exists := s.KnownFacts[k]; !exists {
					s.KnownFacts[k] = v
				}
			}
		}
	})
}

// emit publishes escalation, fault, and lead events. Dispatch runs in the
// background on a detached context: notification latency never shows up
// in the chat response time.
func (o *Orchestrator) emit(ten *tenant.Tenant, session *models.Session, out *outcome) {
	var events []models.Event
	now := time.Now().UTC()

	if out.escalated && out.rule != nil {
		o.collector.Escalated(out.rule.Name)
		events = append(events, models.Event{
			ID:        uuid.NewString(),
			Type:      models.EventEscalation,
			TenantID:  ten.ID,
			SessionID: session.ID,
			Priority:  out.rule.Priority,
			Category:  out.rule.Name,
			Summary:   fmt.Sprintf("Conversation escalated after %d turns (%s)", session.TurnCount, out.rule.Name),
			LeadScore: session.LeadScore,
			Targets:   out.rule.NotifyTargets,
			Timestamp: now,
		})
	}
	if out.report != nil {
		events = append(events, models.Event{
			ID:        out.report.ID,
			Type:      models.EventFaultReport,
			TenantID:  ten.ID,
			SessionID: session.ID,
			Priority:  priorityFor(out.report.Urgency),
			Category:  string(out.report.Category),
			Summary:   out.report.Description,
			Timestamp: now,
		})
	}
	if out.leadCrossed {
		o.collector.LeadCrossed()
		events = append(events, models.Event{
			ID:        uuid.NewString(),
			Type:      models.EventLeadThreshold,
			TenantID:  ten.ID,
			SessionID: session.ID,
			Priority:  models.PriorityMedium,
			Summary:   fmt.Sprintf("Lead score reached %d", session.LeadScore),
			LeadScore: session.LeadScore,
			Timestamp: now,
		})
	}
	if len(events) == 0 {
		return
	}

	targets := ten.Targets
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, ev := range events {
			o.dispatcher.Dispatch(ctx, ev, targets)
		}
	}()
}

func priorityFor(u models.Urgency) models.Priority {
	switch u {
	case models.UrgencyCritical:
		return models.PriorityCritical
	case models.UrgencyHigh:
		return models.PriorityHigh
	case models.UrgencyMedium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// actionFor picks the widget action for resolved turns.
func actionFor(intent models.Intent, leadScore, threshold int) models.Action {
	switch intent {
	case models.IntentBookingRequest:
		return models.ActionBookCall
	case models.IntentFaultReport:
		return models.ActionCollectInfo
	}
	if leadScore >= threshold {
		return models.ActionBookCall
	}
	return models.ActionNone
}
