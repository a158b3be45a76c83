package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to EpisodeStatus }{
		{StatusPending, StatusAwaitingDecision},
		{StatusPending, StatusProcessing},
		{StatusPending, StatusFailed},
		{StatusAwaitingDecision, StatusProcessing},
		{StatusAwaitingDecision, StatusFailed},
		{StatusProcessing, StatusProcessed},
		{StatusProcessing, StatusFailed},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to EpisodeStatus }{
		{StatusProcessed, StatusProcessing},
		{StatusProcessed, StatusFailed},
		{StatusFailed, StatusProcessing},
		{StatusFailed, StatusPending},
		{StatusProcessing, StatusPending},
		{StatusProcessing, StatusAwaitingDecision},
		{StatusAwaitingDecision, StatusAwaitingDecision},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s illegal", tc.from, tc.to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range ValidStatuses {
		if s.IsTerminal() && len(legalTransitions[s]) != 0 {
			t.Errorf("terminal status %s has exits: %v", s, legalTransitions[s])
		}
		if !s.IsTerminal() && len(legalTransitions[s]) == 0 {
			t.Errorf("non-terminal status %s has no exits", s)
		}
	}
}

func TestQueuedTask_RoundTripsThroughJSON(t *testing.T) {
	// Episodes round-trip through JSON in both stores, so the queued task
	// must survive becoming a generic map.
	ep := &Episode{ID: "ep-1", Status: StatusPending}
	queuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ep.SetQueuedTask(&QueuedAssemblyTask{
		Kind:           "assemble",
		Payload:        json.RawMessage(`{"episodeId":"ep-1"}`),
		WorkerEndpoint: "http://worker-1:8000",
		QueuedAt:       queuedAt,
		RetryCount:     2,
	})

	data, err := json.Marshal(ep)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back Episode
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	task, err := back.QueuedTask()
	if err != nil {
		t.Fatalf("QueuedTask failed: %v", err)
	}
	if task == nil {
		t.Fatal("expected a queued task")
	}
	if task.Kind != "assemble" || task.WorkerEndpoint != "http://worker-1:8000" || task.RetryCount != 2 {
		t.Errorf("task fields lost in round trip: %+v", task)
	}
	if !task.QueuedAt.Equal(queuedAt) {
		t.Errorf("expected queuedAt %v, got %v", queuedAt, task.QueuedAt)
	}

	var payload AssembleTaskPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		t.Fatalf("payload not preserved: %v", err)
	}
	if payload.EpisodeID != "ep-1" {
		t.Errorf("expected payload episode id ep-1, got %q", payload.EpisodeID)
	}
}

func TestQueuedTask_AbsentReturnsNil(t *testing.T) {
	ep := &Episode{ID: "ep-1"}
	task, err := ep.QueuedTask()
	if err != nil || task != nil {
		t.Errorf("expected nil, nil for missing task, got %v, %v", task, err)
	}
}

func TestClearQueuedTask(t *testing.T) {
	ep := &Episode{ID: "ep-1"}
	ep.SetQueuedTask(&QueuedAssemblyTask{Kind: "assemble", QueuedAt: time.Now()})
	ep.ClearQueuedTask()

	task, err := ep.QueuedTask()
	if err != nil || task != nil {
		t.Errorf("expected the marker removed, got %v, %v", task, err)
	}
}

func TestMetaString(t *testing.T) {
	ep := &Episode{}
	if ep.MetaString("missing") != "" {
		t.Error("expected empty for missing key")
	}
	ep.SetMeta("error", "audio too short")
	if got := ep.MetaString("error"); got != "audio too short" {
		t.Errorf("expected 'audio too short', got %q", got)
	}
	ep.SetMeta("count", 3)
	if ep.MetaString("count") != "" {
		t.Error("expected empty for non-string value")
	}
}

func TestRecordAudioDecision(t *testing.T) {
	ep := &Episode{ID: "ep-1"}
	ep.RecordAudioDecision(false)
	if got := ep.MetaString(MetaAudioDecision); got != string(DecisionStandard) {
		t.Errorf("expected standard decision, got %q", got)
	}

	ep.RecordAudioDecision(true)
	if got := ep.MetaString(MetaAudioDecision); got != string(DecisionAdvanced) {
		t.Errorf("expected advanced decision, got %q", got)
	}
	if ep.MetaString(MetaDecisionReason) == "" {
		t.Error("expected the decision reason recorded")
	}
}

func TestHasSynthesizedSegments(t *testing.T) {
	if (&Episode{}).HasSynthesizedSegments() {
		t.Error("expected false without script text")
	}
	if !(&Episode{ScriptText: "Welcome back."}).HasSynthesizedSegments() {
		t.Error("expected true with script text")
	}
}
