package model

// Plan tiers
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanCreator PlanTier = "creator"
	PlanStudio  PlanTier = "studio"
)

var ValidPlanTiers = []PlanTier{PlanFree, PlanCreator, PlanStudio}

// Quality labels assigned by upstream audio analysis
type QualityLabel string

const (
	QualityClean      QualityLabel = "clean"
	QualityNoisy      QualityLabel = "noisy"
	QualityVeryNoisy  QualityLabel = "very_noisy"
	QualityClipping   QualityLabel = "clipping"
	QualityLowVolume  QualityLabel = "low_volume"
	QualityUnlabelled QualityLabel = ""
)

// Audio routing decisions
type AudioDecision string

const (
	DecisionAdvanced AudioDecision = "advanced"
	DecisionStandard AudioDecision = "standard"
	DecisionAsk      AudioDecision = "ask"
)

// Transcription job statuses reported by the provider
type TranscriptStatus string

const (
	TranscriptQueued     TranscriptStatus = "queued"
	TranscriptProcessing TranscriptStatus = "processing"
	TranscriptCompleted  TranscriptStatus = "completed"
	TranscriptError      TranscriptStatus = "error"
)
