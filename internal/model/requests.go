package model

import "time"

// CreateEpisodeRequest creates a new episode from an uploaded recording.
type CreateEpisodeRequest struct {
	PodcastID      string       `json:"podcastId" validate:"required,uuid4"`
	Title          string       `json:"title" validate:"required,min=1,max=200"`
	SourceAudioURL string       `json:"sourceAudioUrl" validate:"required,url"`
	QualityLabel   QualityLabel `json:"qualityLabel" validate:"omitempty,oneof=clean noisy very_noisy clipping low_volume"`
	ScriptText     string       `json:"scriptText" validate:"omitempty,max=50000"`
}

// CreateEpisodeResponse is returned after the episode record is stored.
type CreateEpisodeResponse struct {
	EpisodeID string        `json:"episodeId"`
	Status    EpisodeStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// AssembleResponse reports how the assembly request was routed.
type AssembleResponse struct {
	EpisodeID string        `json:"episodeId"`
	Status    EpisodeStatus `json:"status"`
	Queued    bool          `json:"queued"`
}

// DecisionRequest resumes an episode paused for an audio-route decision.
type DecisionRequest struct {
	UseAdvancedProvider bool `json:"useAdvancedProvider"`
}

// EpisodeStatusResponse is the public view of an episode's progress.
type EpisodeStatusResponse struct {
	EpisodeID      string                 `json:"episodeId"`
	Status         EpisodeStatus          `json:"status"`
	OutputAudioURL string                 `json:"outputAudioUrl,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	ProcessedAt    *time.Time             `json:"processedAt,omitempty"`
}

// AssembleTaskPayload is the asynq task body for episode assembly.
type AssembleTaskPayload struct {
	EpisodeID string `json:"episodeId"`
}

// ProcessChunkRequest synthesizes a single script chunk on a worker.
type ProcessChunkRequest struct {
	EpisodeID string `json:"episodeId" validate:"required"`
	ChunkText string `json:"chunkText" validate:"required,max=2000"`
	Voice     string `json:"voice" validate:"required"`
}

// ProcessChunkResponse carries the stored chunk artifact.
type ProcessChunkResponse struct {
	AudioURL   string  `json:"audioUrl"`
	DurationMs float64 `json:"durationMs"`
}

// TranscriptWebhookPayload is the provider's completion callback body.
type TranscriptWebhookPayload struct {
	TranscriptID string           `json:"transcript_id" validate:"required"`
	Status       TranscriptStatus `json:"status" validate:"required"`
}
