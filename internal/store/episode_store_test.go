package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/podforge/api/internal/model"
)

func TestMemoryStore_EpisodeRoundTrip(t *testing.T) {
	s := NewMemoryEpisodeStore()
	ctx := context.Background()

	ep := &model.Episode{
		ID:             "ep-1",
		UserID:         "user-1",
		Status:         model.StatusPending,
		SourceAudioURL: "https://cdn.podforge.io/raw.wav",
	}
	ep.SetMeta(model.MetaError, "boom")

	if err := s.SaveEpisode(ctx, ep); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	back, err := s.GetEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if back.ID != "ep-1" || back.Status != model.StatusPending {
		t.Errorf("fields lost: %+v", back)
	}
	if back.MetaString(model.MetaError) != "boom" {
		t.Errorf("metadata lost: %v", back.Metadata)
	}
	if back.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt bumped on save")
	}

	// Mutating the returned copy must not leak into the store.
	back.Status = model.StatusFailed
	again, _ := s.GetEpisode(ctx, "ep-1")
	if again.Status != model.StatusPending {
		t.Error("expected stored record isolated from returned copy")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryEpisodeStore()
	if _, err := s.GetEpisode(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUser(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_QueuedIndex(t *testing.T) {
	s := NewMemoryEpisodeStore()
	ctx := context.Background()

	for _, id := range []string{"ep-b", "ep-a"} {
		if err := s.AddQueued(ctx, id); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	// Adding twice is idempotent.
	if err := s.AddQueued(ctx, "ep-a"); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ListQueued(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "ep-a" || ids[1] != "ep-b" {
		t.Errorf("expected sorted [ep-a ep-b], got %v", ids)
	}

	if err := s.RemoveQueued(ctx, "ep-a"); err != nil {
		t.Fatal(err)
	}
	ids, _ = s.ListQueued(ctx)
	if len(ids) != 1 || ids[0] != "ep-b" {
		t.Errorf("expected [ep-b], got %v", ids)
	}
}

func TestMemoryStore_UserRoundTrip(t *testing.T) {
	s := NewMemoryEpisodeStore()
	ctx := context.Background()

	if err := s.SaveUser(ctx, &model.User{ID: "user-1", PlanTier: model.PlanStudio}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	u, err := s.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if u.PlanTier != model.PlanStudio {
		t.Errorf("expected studio tier, got %s", u.PlanTier)
	}
}

func TestMemoryStore_QueuedTaskSurvivesPersistence(t *testing.T) {
	s := NewMemoryEpisodeStore()
	ctx := context.Background()

	ep := &model.Episode{ID: "ep-1", Status: model.StatusPending}
	ep.SetQueuedTask(&model.QueuedAssemblyTask{
		Kind:     "assemble",
		QueuedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err := s.SaveEpisode(ctx, ep); err != nil {
		t.Fatal(err)
	}

	back, _ := s.GetEpisode(ctx, "ep-1")
	task, err := back.QueuedTask()
	if err != nil {
		t.Fatalf("QueuedTask failed after persistence: %v", err)
	}
	if task == nil || task.Kind != "assemble" {
		t.Errorf("queued task lost through the store: %+v", task)
	}
}
