package metrics_test

import (
	"sync"
	"testing"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/metrics"
)

func TestSnapshotCountsEverything(t *testing.T) {
	c := metrics.NewCollector()

	c.ConversationStarted()
	c.MessageProcessed("pattern")
	c.MessageProcessed("pattern")
	c.MessageProcessed("model")
	c.Escalated("angry_customer")
	c.Escalated("angry_customer")
	c.Escalated("legal_threat")
	c.LeadCrossed()
	c.RemoteCall(false)
	c.RemoteCall(true)
	c.ValidationRejected()

	snap := c.Snapshot(7)
	if snap.Conversations != 1 {
		t.Errorf("Conversations = %d, want 1", snap.Conversations)
	}
	if snap.Messages != 3 {
		t.Errorf("Messages = %d, want 3", snap.Messages)
	}
	if snap.RepliesBySource["pattern"] != 2 || snap.RepliesBySource["model"] != 1 {
		t.Errorf("RepliesBySource = %v, want pattern:2 model:1", snap.RepliesBySource)
	}
	if snap.Escalations["angry_customer"] != 2 || snap.Escalations["legal_threat"] != 1 {
		t.Errorf("Escalations = %v, want angry:2 legal:1", snap.Escalations)
	}
	if snap.LeadCrossings != 1 {
		t.Errorf("LeadCrossings = %d, want 1", snap.LeadCrossings)
	}
	if snap.RemoteCalls != 2 || snap.RemoteFailures != 1 {
		t.Errorf("remote = %d/%d, want 2/1", snap.RemoteCalls, snap.RemoteFailures)
	}
	if snap.ValidationRejects != 1 {
		t.Errorf("ValidationRejects = %d, want 1", snap.ValidationRejects)
	}
	if snap.ActiveSessionsHint != 7 {
		t.Errorf("ActiveSessionsHint = %d, want 7", snap.ActiveSessionsHint)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := metrics.NewCollector()
	c.Escalated("angry_customer")

	snap := c.Snapshot(0)
	snap.Escalations["angry_customer"] = 99

	if got := c.Snapshot(0).Escalations["angry_customer"]; got != 1 {
		t.Errorf("Escalations[angry_customer] = %d after mutating a snapshot, want 1", got)
	}
}

func TestCollectorIsConcurrencySafe(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.MessageProcessed("pattern")
				c.RemoteCall(j%2 == 0)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot(0)
	if snap.Messages != 1000 {
		t.Errorf("Messages = %d, want 1000", snap.Messages)
	}
	if snap.RemoteCalls != 1000 || snap.RemoteFailures != 500 {
		t.Errorf("remote = %d/%d, want 1000/500", snap.RemoteCalls, snap.RemoteFailures)
	}
}
