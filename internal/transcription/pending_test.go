package transcription

import (
	"testing"
	"time"

	"github.com/podforge/api/internal/model"
)

func TestPendingJobs_NotifyAfterRegister(t *testing.T) {
	p := NewPendingJobs(time.Minute)

	ch := p.Register("job-1")
	p.Notify("job-1", &model.TranscriptResult{ID: "job-1", Status: model.TranscriptCompleted})

	select {
	case res := <-ch:
		if res.ID != "job-1" || res.Status != model.TranscriptCompleted {
			t.Errorf("unexpected payload: %+v", res)
		}
	default:
		t.Fatal("expected the waiter channel to be fired")
	}

	if p.Len() != 0 {
		t.Errorf("expected no live records after delivery, got %d", p.Len())
	}
}

func TestPendingJobs_RegisterAfterNotify(t *testing.T) {
	p := NewPendingJobs(time.Minute)

	// Webhook wins the race: notification lands before anyone waits.
	p.Notify("job-1", &model.TranscriptResult{ID: "job-1", Status: model.TranscriptCompleted})
	if p.Len() != 1 {
		t.Fatalf("expected the payload parked, got %d records", p.Len())
	}

	ch := p.Register("job-1")
	select {
	case res := <-ch:
		if res.ID != "job-1" {
			t.Errorf("unexpected payload: %+v", res)
		}
	default:
		t.Fatal("expected the channel pre-loaded with the parked payload")
	}

	if p.Len() != 0 {
		t.Errorf("expected the parked payload consumed, got %d records", p.Len())
	}
}

func TestPendingJobs_SingleDelivery(t *testing.T) {
	p := NewPendingJobs(time.Minute)

	ch := p.Register("job-1")
	p.Notify("job-1", &model.TranscriptResult{ID: "job-1", Status: model.TranscriptCompleted})
	// A duplicate webhook must not fire the consumed waiter again; it parks
	// a fresh payload instead.
	p.Notify("job-1", &model.TranscriptResult{ID: "job-1", Status: model.TranscriptCompleted})

	<-ch
	select {
	case <-ch:
		t.Fatal("waiter channel fired twice")
	default:
	}
}

func TestPendingJobs_Unregister(t *testing.T) {
	p := NewPendingJobs(time.Minute)

	p.Register("job-1")
	p.Unregister("job-1")

	if p.Len() != 0 {
		t.Fatalf("expected no waiters after unregister, got %d", p.Len())
	}

	// A notification after withdrawal parks the payload for a later poll.
	p.Notify("job-1", &model.TranscriptResult{ID: "job-1", Status: model.TranscriptCompleted})
	if p.Len() != 1 {
		t.Errorf("expected the late payload parked, got %d records", p.Len())
	}
}

func TestPendingJobs_TTLSweep(t *testing.T) {
	p := NewPendingJobs(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.Register("stale-waiter")
	p.Notify("stale-payload", &model.TranscriptResult{ID: "stale-payload"})
	if p.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", p.Len())
	}

	now = now.Add(2 * time.Minute)
	// Any mutation sweeps expired records.
	p.Notify("fresh", &model.TranscriptResult{ID: "fresh"})

	if p.Len() != 1 {
		t.Errorf("expected only the fresh record to survive the sweep, got %d", p.Len())
	}
}
