package transcription

import (
	"fmt"
	"time"
)

// ProviderError is a terminal error reported by the transcription provider
// itself. Not retried; the provider message must survive into episode
// metadata.
type ProviderError struct {
	JobID   string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("transcription job %s failed: %s", e.JobID, e.Message)
}

// ContractError means the provider returned data violating a setting we
// explicitly disabled in the request. Treated as a hard failure, not a
// retryable condition.
type ContractError struct {
	JobID  string
	Detail string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("transcription job %s violated request contract: %s", e.JobID, e.Detail)
}

// TimeoutError means no terminal status arrived within the overall wait
// budget. Distinct from ProviderError so callers can choose retry vs abort.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transcription job %s timed out after %s", e.JobID, e.Elapsed.Round(time.Second))
}
