package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EpisodeStatus is the persisted state of an episode in the assembly
// state machine.
type EpisodeStatus string

const (
	StatusPending          EpisodeStatus = "pending"
	StatusAwaitingDecision EpisodeStatus = "awaiting_audio_decision"
	StatusProcessing       EpisodeStatus = "processing"
	StatusProcessed        EpisodeStatus = "processed"
	StatusFailed           EpisodeStatus = "failed"
)

var ValidStatuses = []EpisodeStatus{
	StatusPending,
	StatusAwaitingDecision,
	StatusProcessing,
	StatusProcessed,
	StatusFailed,
}

// legalTransitions encodes the assembly state machine. A transition absent
// from this table is a bug in the caller, not an operational condition.
var legalTransitions = map[EpisodeStatus][]EpisodeStatus{
	StatusPending:          {StatusAwaitingDecision, StatusProcessing, StatusFailed},
	StatusAwaitingDecision: {StatusProcessing, StatusFailed},
	StatusProcessing:       {StatusProcessed, StatusFailed},
	StatusProcessed:        {},
	StatusFailed:           {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to EpisodeStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status is an end state.
func (s EpisodeStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Metadata keys written by the orchestration pipeline. The stuck-work
// monitor and the queue retry manager read these.
const (
	MetaTranscriptJobID     = "transcript_job_id"
	MetaAudioDecision       = "audio_decision"
	MetaDecisionReason      = "audio_decision_reason"
	MetaError               = "error"
	MetaQueuedTask          = "queued_assembly_task"
	MetaAssemblyStartedAt   = "assembly_started_at"
	MetaProcessedAudioURL   = "processed_audio_url"
	MetaVoiceTrackURL       = "voice_track_url"
	MetaTranscriptWordCount = "transcript_word_count"
)

// Episode is the unit of work assembled by the orchestrator.
type Episode struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"userId"`
	PodcastID      string                 `json:"podcastId"`
	Title          string                 `json:"title"`
	Status         EpisodeStatus          `json:"status"`
	SourceAudioURL string                 `json:"sourceAudioUrl"`
	OutputAudioURL string                 `json:"outputAudioUrl,omitempty"`
	QualityLabel   QualityLabel           `json:"qualityLabel,omitempty"`
	ScriptText     string                 `json:"scriptText,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	ProcessedAt    *time.Time             `json:"processedAt,omitempty"`
}

// HasSynthesizedSegments reports whether the episode includes script text
// that must be rendered by the TTS pipeline.
func (e *Episode) HasSynthesizedSegments() bool {
	return e.ScriptText != ""
}

// SetMeta writes a metadata value, allocating the map on first use.
func (e *Episode) SetMeta(key string, value interface{}) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
}

// RecordAudioDecision persists the caller's explicit choice. The next run
// treats it as an override ahead of plan tier and quality label.
func (e *Episode) RecordAudioDecision(useAdvanced bool) {
	d := DecisionStandard
	if useAdvanced {
		d = DecisionAdvanced
	}
	e.SetMeta(MetaAudioDecision, string(d))
	e.SetMeta(MetaDecisionReason, "recorded decision")
}

// MetaString reads a string metadata value, empty if absent.
func (e *Episode) MetaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	s, _ := e.Metadata[key].(string)
	return s
}

// QueuedAssemblyTask is recorded in episode metadata when assembly work
// could not be dispatched anywhere. The queue retry manager drains these.
type QueuedAssemblyTask struct {
	Kind           string          `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	WorkerEndpoint string          `json:"workerEndpoint"`
	QueuedAt       time.Time       `json:"queuedAt"`
	LastRetryAt    *time.Time      `json:"lastRetryAt,omitempty"`
	RetryCount     int             `json:"retryCount"`
}

// QueuedTask decodes the queued assembly task from episode metadata.
// Returns nil when no task is queued.
func (e *Episode) QueuedTask() (*QueuedAssemblyTask, error) {
	if e.Metadata == nil {
		return nil, nil
	}
	raw, ok := e.Metadata[MetaQueuedTask]
	if !ok || raw == nil {
		return nil, nil
	}
	// Metadata round-trips through JSON, so the task arrives as a generic map.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal queued task: %w", err)
	}
	var task QueuedAssemblyTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode queued task: %w", err)
	}
	return &task, nil
}

// SetQueuedTask records the queued assembly task in metadata.
func (e *Episode) SetQueuedTask(task *QueuedAssemblyTask) {
	e.SetMeta(MetaQueuedTask, task)
}

// ClearQueuedTask removes the queued assembly task marker.
func (e *Episode) ClearQueuedTask() {
	if e.Metadata != nil {
		delete(e.Metadata, MetaQueuedTask)
	}
}

// User is the minimal owner context the orchestrator needs; account
// management itself lives in another service.
type User struct {
	ID       string   `json:"id"`
	PlanTier PlanTier `json:"planTier"`
}
