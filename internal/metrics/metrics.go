// Package metrics keeps in-process operational counters for the bot.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is the point-in-time view served on the metrics endpoint.
type Snapshot struct {
	StartedAt          time.Time        `json:"started_at"`
	UptimeSeconds      int64            `json:"uptime_seconds"`
	Conversations      int64            `json:"conversations"`
	Messages           int64            `json:"messages"`
	Escalations        map[string]int64 `json:"escalations_by_reason"`
	LeadCrossings      int64            `json:"lead_threshold_crossings"`
	RemoteCalls        int64            `json:"remote_model_calls"`
	RemoteFailures     int64            `json:"remote_model_failures"`
	RepliesBySource    map[string]int64 `json:"replies_by_source"`
	ValidationRejects  int64            `json:"validation_rejects"`
	ActiveSessionsHint int              `json:"active_sessions"`
}

// Collector is a thread-safe counter registry.
type Collector struct {
	mu                sync.Mutex
	startedAt         time.Time
	conversations     int64
	messages          int64
	escalations       map[string]int64
	leadCrossings     int64
	remoteCalls       int64
	remoteFailures    int64
	repliesBySource   map[string]int64
	validationRejects int64
}

// NewCollector creates a collector.
func NewCollector() *Collector {
	return &Collector{
		startedAt:       time.Now().UTC(),
		escalations:     make(map[string]int64),
		repliesBySource: make(map[string]int64),
	}
}

// ConversationStarted counts a first-turn session.
func (c *Collector) ConversationStarted() {
	c.mu.Lock()
	c.conversations++
	c.mu.Unlock()
}

// MessageProcessed counts one handled message with its reply source.
func (c *Collector) MessageProcessed(source string) {
	c.mu.Lock()
	c.messages++
	c.repliesBySource[source]++
	c.mu.Unlock()
}

// Escalated counts an escalation by its triggering rule name.
func (c *Collector) Escalated(reason string) {
	c.mu.Lock()
	c.escalations[reason]++
	c.mu.Unlock()
}

// LeadCrossed counts a lead threshold crossing.
func (c *Collector) LeadCrossed() {
	c.mu.Lock()
	c.leadCrossings++
	c.mu.Unlock()
}

// RemoteCall counts a remote model invocation and whether it failed.
func (c *Collector) RemoteCall(failed bool) {
	c.mu.Lock()
	c.remoteCalls++
	if failed {
		c.remoteFailures++
	}
	c.mu.Unlock()
}

// ValidationRejected counts a rejected inbound message.
func (c *Collector) ValidationRejected() {
	c.mu.Lock()
	c.validationRejects++
	c.mu.Unlock()
}

// Snapshot copies the counters. activeSessions is supplied by the caller
// since the session store owns that number.
func (c *Collector) Snapshot(activeSessions int) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	esc := make(map[string]int64, len(c.escalations))
	for k, v := range c.escalations {
		esc[k] = v
	}
	src := make(map[string]int64, len(c.repliesBySource))
	for k, v := range c.repliesBySource {
		src[k] = v
	}
	return Snapshot{
		StartedAt:          c.startedAt,
		UptimeSeconds:      int64(time.Since(c.startedAt).Seconds()),
		Conversations:      c.conversations,
		Messages:           c.messages,
		Escalations:        esc,
		LeadCrossings:      c.leadCrossings,
		RemoteCalls:        c.remoteCalls,
		RemoteFailures:     c.remoteFailures,
		RepliesBySource:    src,
		ValidationRejects:  c.validationRejects,
		ActiveSessionsHint: activeSessions,
	}
}
