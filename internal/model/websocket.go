package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
)

// WSProgressMessage is a stage progress update for an episode.
type WSProgressMessage struct {
	Type        string        `json:"type"`
	EpisodeID   string        `json:"episodeId"`
	Progress    int           `json:"progress"`
	Status      EpisodeStatus `json:"status"`
	CurrentStep string        `json:"currentStep,omitempty"`
}

// WSCompleteMessage announces a finished episode.
type WSCompleteMessage struct {
	Type      string      `json:"type"`
	EpisodeID string      `json:"episodeId"`
	Result    interface{} `json:"result"`
}

// WSErrorMessage announces a terminal failure.
type WSErrorMessage struct {
	Type      string  `json:"type"`
	EpisodeID string  `json:"episodeId"`
	Error     WSError `json:"error"`
}

// WSError carries error details over the socket.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
