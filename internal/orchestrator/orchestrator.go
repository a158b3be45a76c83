package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/podforge/api/internal/audio"
	"github.com/podforge/api/internal/breaker"
	"github.com/podforge/api/internal/client"
	"github.com/podforge/api/internal/decision"
	"github.com/podforge/api/internal/dispatch"
	"github.com/podforge/api/internal/model"
	"github.com/podforge/api/internal/store"
	"github.com/podforge/api/internal/transcription"
	"github.com/podforge/api/pkg/response"
)

// ErrAlreadyProcessing is returned when a run finds the episode owned by
// another in-flight run. The persisted status is the lock.
var ErrAlreadyProcessing = errors.New("episode is already being processed")

// ErrNotAwaitingDecision is returned when Resume targets an episode that
// is not paused.
var ErrNotAwaitingDecision = errors.New("episode is not awaiting an audio decision")

// Transcriber is the transcription coordination surface.
type Transcriber interface {
	Submit(ctx context.Context, audioURL string) (string, error)
	AwaitCompletion(ctx context.Context, jobID string, timeout time.Duration) ([]model.Word, error)
}

// VoiceRenderer produces the synthesized voice track for a script.
type VoiceRenderer interface {
	Render(ctx context.Context, script, voice string) (*audio.Segment, error)
}

// Progress receives stage updates for live subscribers. The websocket hub
// implements it; tests use a no-op.
type Progress interface {
	BroadcastProgress(episodeID string, progress int, status model.EpisodeStatus, step string)
	BroadcastComplete(episodeID string, result interface{})
	BroadcastError(episodeID, code, message string)
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) BroadcastProgress(string, int, model.EpisodeStatus, string) {}
func (NopProgress) BroadcastComplete(string, interface{})                      {}
func (NopProgress) BroadcastError(string, string, string)                      {}

// Config tunes the orchestrator.
type Config struct {
	TranscriptTimeout time.Duration
	Voice             string
}

// RunResult reports how a run ended. Paused means the episode suspended at
// awaiting_audio_decision and a later Resume will re-enter the pipeline.
type RunResult struct {
	EpisodeID string
	Status    model.EpisodeStatus
	Paused    bool
	OutputURL string
}

// Orchestrator drives one episode through the assembly state machine:
// audio decision, audio processing, transcription, optional synthesis,
// final merge. Stages run strictly in sequence within one run.
type Orchestrator struct {
	episodes    store.EpisodeStore
	transcriber Transcriber
	renderer    VoiceRenderer
	audioProc   client.AudioProcessor
	storage     client.StorageClient
	breakers    *breaker.Registry
	progress    Progress
	cfg         Config
}

// New wires the orchestrator.
func New(
	episodes store.EpisodeStore,
	transcriber Transcriber,
	renderer VoiceRenderer,
	audioProc client.AudioProcessor,
	storage client.StorageClient,
	breakers *breaker.Registry,
	progress Progress,
	cfg Config,
) *Orchestrator {
	if cfg.TranscriptTimeout <= 0 {
		cfg.TranscriptTimeout = 10 * time.Minute
	}
	if cfg.Voice == "" {
		cfg.Voice = "narrator-en-1"
	}
	if progress == nil {
		progress = NopProgress{}
	}
	return &Orchestrator{
		episodes:    episodes,
		transcriber: transcriber,
		renderer:    renderer,
		audioProc:   audioProc,
		storage:     storage,
		breakers:    breakers,
		progress:    progress,
		cfg:         cfg,
	}
}

// Run drives one episode until it pauses or reaches a terminal status.
// Re-invoking on a paused episode before a decision is recorded is a
// no-op. Any failure past the processing transition marks the episode
// failed with the diagnostic preserved, then returns the error so the
// task-queue caller can react.
func (o *Orchestrator) Run(ctx context.Context, episodeID string) (*RunResult, error) {
	ep, err := o.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode %s: %w", episodeID, err)
	}

	if ep.Status.IsTerminal() {
		return &RunResult{EpisodeID: ep.ID, Status: ep.Status, OutputURL: ep.OutputAudioURL}, nil
	}
	if ep.Status == model.StatusProcessing {
		return nil, ErrAlreadyProcessing
	}

	res := o.resolveDecision(ctx, ep)
	if res.Decision == model.DecisionAsk {
		return o.pause(ctx, ep, res)
	}

	if err := o.beginProcessing(ctx, ep, res); err != nil {
		return nil, err
	}

	outputURL, runErr := o.assemble(ctx, ep, res.UseAdvancedProvider)
	if runErr != nil {
		return o.fail(ctx, ep, runErr)
	}

	return o.complete(ctx, ep, outputURL)
}

// Resume records the operator/user decision for a paused episode and
// re-enters the pipeline.
func (o *Orchestrator) Resume(ctx context.Context, episodeID string, useAdvanced bool) (*RunResult, error) {
	ep, err := o.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode %s: %w", episodeID, err)
	}
	if ep.Status != model.StatusAwaitingDecision {
		return nil, ErrNotAwaitingDecision
	}

	ep.RecordAudioDecision(useAdvanced)
	if err := o.episodes.SaveEpisode(ctx, ep); err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}

	return o.Run(ctx, episodeID)
}

// Execute implements dispatch.Executor for the inline fallback path.
func (o *Orchestrator) Execute(ctx context.Context, kind string, payload []byte) error {
	if kind != dispatch.KindAssemble {
		return fmt.Errorf("unsupported inline task kind %q", kind)
	}
	var task model.AssembleTaskPayload
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("failed to unmarshal assemble payload: %w", err)
	}
	_, err := o.Run(ctx, task.EpisodeID)
	return err
}

// resolveDecision applies priority: a recorded decision (from Resume) acts
// as an explicit override, then plan tier, then quality label.
func (o *Orchestrator) resolveDecision(ctx context.Context, ep *model.Episode) decision.Result {
	var override *bool
	if recorded := ep.MetaString(model.MetaAudioDecision); recorded != "" {
		v := recorded == string(model.DecisionAdvanced)
		override = &v
	}

	tier := model.PlanFree
	if user, err := o.episodes.GetUser(ctx, ep.UserID); err == nil {
		tier = user.PlanTier
	}

	return decision.Decide(decision.Input{
		Override:     override,
		PlanTier:     tier,
		QualityLabel: ep.QualityLabel,
	})
}

// pause suspends the episode for a human decision. Idempotent: an episode
// already paused is returned untouched with no further side effects.
func (o *Orchestrator) pause(ctx context.Context, ep *model.Episode, res decision.Result) (*RunResult, error) {
	if ep.Status != model.StatusAwaitingDecision {
		ep.Status = model.StatusAwaitingDecision
		ep.SetMeta(model.MetaDecisionReason, res.Reason)
		if err := o.episodes.SaveEpisode(ctx, ep); err != nil {
			return nil, fmt.Errorf("failed to pause episode: %w", err)
		}
		log.Printf("[Orchestrator] episode %s paused for audio decision: %s", ep.ID, res.Reason)
	}
	return &RunResult{EpisodeID: ep.ID, Status: model.StatusAwaitingDecision, Paused: true}, nil
}

// beginProcessing claims ownership of the episode by persisting the
// processing status before any external side effect.
func (o *Orchestrator) beginProcessing(ctx context.Context, ep *model.Episode, res decision.Result) error {
	if !model.CanTransition(ep.Status, model.StatusProcessing) {
		return fmt.Errorf("illegal transition %s -> %s for episode %s", ep.Status, model.StatusProcessing, ep.ID)
	}
	ep.Status = model.StatusProcessing
	ep.SetMeta(model.MetaAudioDecision, string(res.Decision))
	ep.SetMeta(model.MetaDecisionReason, res.Reason)
	ep.SetMeta(model.MetaAssemblyStartedAt, time.Now().UTC().Format(time.RFC3339))
	if err := o.episodes.SaveEpisode(ctx, ep); err != nil {
		return fmt.Errorf("failed to claim episode %s: %w", ep.ID, err)
	}
	return nil
}

// assemble runs the external stages in order and returns the final
// artifact URL.
func (o *Orchestrator) assemble(ctx context.Context, ep *model.Episode, useAdvanced bool) (string, error) {
	o.progress.BroadcastProgress(ep.ID, 10, model.StatusProcessing, "Enhancing audio...")
	processedURL, err := o.processAudio(ctx, ep, useAdvanced)
	if err != nil {
		return "", err
	}
	ep.SetMeta(model.MetaProcessedAudioURL, processedURL)

	o.progress.BroadcastProgress(ep.ID, 35, model.StatusProcessing, "Transcribing...")
	words, err := o.transcribe(ctx, ep, processedURL)
	if err != nil {
		return "", err
	}
	ep.SetMeta(model.MetaTranscriptWordCount, len(words))

	voiceURL := ""
	if ep.HasSynthesizedSegments() {
		o.progress.BroadcastProgress(ep.ID, 60, model.StatusProcessing, "Synthesizing voice segments...")
		voiceURL, err = o.renderVoice(ctx, ep)
		if err != nil {
			return "", err
		}
		ep.SetMeta(model.MetaVoiceTrackURL, voiceURL)
	}

	o.progress.BroadcastProgress(ep.ID, 85, model.StatusProcessing, "Merging final audio...")
	return o.merge(ctx, ep, processedURL, voiceURL)
}

func (o *Orchestrator) processAudio(ctx context.Context, ep *model.Episode, advanced bool) (string, error) {
	cb := o.breakers.Get(breaker.ServiceAudioProc)
	if err := cb.Allow(); err != nil {
		return "", err
	}
	resp, err := o.audioProc.Process(ctx, &client.ProcessRequest{
		InputURL:  ep.SourceAudioURL,
		Advanced:  advanced,
		OutputKey: fmt.Sprintf("episodes/%s/processed-%s.wav", ep.ID, uuid.New().String()),
	})
	if err != nil {
		cb.RecordFailure()
		return "", fmt.Errorf("audio processing failed: %w", err)
	}
	cb.RecordSuccess()
	return resp.OutputURL, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, ep *model.Episode, audioURL string) ([]model.Word, error) {
	jobID, err := o.transcriber.Submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	// Persist the job id before waiting so the stuck-work monitor can
	// reconcile if this process dies mid-wait.
	ep.SetMeta(model.MetaTranscriptJobID, jobID)
	if err := o.episodes.SaveEpisode(ctx, ep); err != nil {
		return nil, fmt.Errorf("failed to record transcript job id: %w", err)
	}

	return o.transcriber.AwaitCompletion(ctx, jobID, o.cfg.TranscriptTimeout)
}

func (o *Orchestrator) renderVoice(ctx context.Context, ep *model.Episode) (string, error) {
	seg, err := o.renderer.Render(ctx, ep.ScriptText, o.cfg.Voice)
	if err != nil {
		return "", fmt.Errorf("voice rendering failed: %w", err)
	}

	cb := o.breakers.Get(breaker.ServiceStorage)
	if err := cb.Allow(); err != nil {
		return "", err
	}
	key := fmt.Sprintf("episodes/%s/voice-%s.pcm", ep.ID, uuid.New().String())
	url, err := o.storage.UploadBytes(ctx, key, audio.EncodePCM16(seg), "application/octet-stream")
	if err != nil {
		cb.RecordFailure()
		return "", fmt.Errorf("failed to store voice track: %w", err)
	}
	cb.RecordSuccess()
	return url, nil
}

func (o *Orchestrator) merge(ctx context.Context, ep *model.Episode, mainURL, voiceURL string) (string, error) {
	cb := o.breakers.Get(breaker.ServiceAudioProc)
	if err := cb.Allow(); err != nil {
		return "", err
	}
	resp, err := o.audioProc.Merge(ctx, &client.MergeRequest{
		MainURL:   mainURL,
		VoiceURL:  voiceURL,
		OutputKey: fmt.Sprintf("episodes/%s/final-%s.mp3", ep.ID, uuid.New().String()),
	})
	if err != nil {
		cb.RecordFailure()
		return "", fmt.Errorf("final merge failed: %w", err)
	}
	cb.RecordSuccess()
	return resp.OutputURL, nil
}

// complete writes the terminal processed state and output reference in a
// single save, so the episode can never persist processed without one.
func (o *Orchestrator) complete(ctx context.Context, ep *model.Episode, outputURL string) (*RunResult, error) {
	now := time.Now()
	ep.Status = model.StatusProcessed
	ep.OutputAudioURL = outputURL
	ep.ProcessedAt = &now
	if err := o.episodes.SaveEpisode(ctx, ep); err != nil {
		return o.fail(ctx, ep, fmt.Errorf("failed to persist processed episode: %w", err))
	}

	o.progress.BroadcastProgress(ep.ID, 100, model.StatusProcessed, "Done")
	o.progress.BroadcastComplete(ep.ID, map[string]string{"outputAudioUrl": outputURL})
	log.Printf("[Orchestrator] episode %s processed: %s", ep.ID, outputURL)
	return &RunResult{EpisodeID: ep.ID, Status: model.StatusProcessed, OutputURL: outputURL}, nil
}

// fail converts any pipeline error into the terminal failed status with
// the diagnostic preserved, then propagates the error to the caller.
func (o *Orchestrator) fail(ctx context.Context, ep *model.Episode, runErr error) (*RunResult, error) {
	msg := runErr.Error()
	var provErr *transcription.ProviderError
	if errors.As(runErr, &provErr) {
		// Keep the provider's own message intact for the episode record.
		msg = provErr.Message
	}

	ep.Status = model.StatusFailed
	ep.SetMeta(model.MetaError, msg)
	if err := o.episodes.SaveEpisode(ctx, ep); err != nil {
		log.Printf("[Orchestrator] failed to persist failure for episode %s: %v", ep.ID, err)
	}

	o.progress.BroadcastError(ep.ID, response.CodeAssemblyFailed, msg)
	log.Printf("[Orchestrator] episode %s failed: %v", ep.ID, runErr)
	return &RunResult{EpisodeID: ep.ID, Status: model.StatusFailed}, runErr
}
