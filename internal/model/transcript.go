package model

// Word is a single transcribed word with millisecond offsets.
type Word struct {
	Text    string `json:"text"`
	StartMs int    `json:"start"`
	EndMs   int    `json:"end"`
	Speaker string `json:"speaker,omitempty"`
}

// Utterance is a contiguous span attributed to one speaker.
type Utterance struct {
	Speaker string `json:"speaker"`
	StartMs int    `json:"start"`
	EndMs   int    `json:"end"`
	Text    string `json:"text"`
}

// TranscriptResult is the provider's terminal payload for one job.
type TranscriptResult struct {
	ID                  string           `json:"id"`
	Status              TranscriptStatus `json:"status"`
	Words               []Word           `json:"words,omitempty"`
	Utterances          []Utterance      `json:"utterances,omitempty"`
	Error               string           `json:"error,omitempty"`
	ContentSafetyLabels interface{}      `json:"content_safety_labels,omitempty"`
}
