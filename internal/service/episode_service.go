package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/podforge/api/internal/model"
	"github.com/podforge/api/internal/store"
)

const (
	TaskTypeAssemble   = "episode:assemble"
	TaskTypeQueueRetry = "episode:queue-retry"
)

// ErrForbidden is returned when a caller touches an episode they do not own.
var ErrForbidden = errors.New("episode belongs to another user")

// ErrNotAssemblable is returned when assembly is requested for an episode
// already running or finished.
var ErrNotAssemblable = errors.New("episode cannot be assembled in its current status")

// ErrNotAwaitingDecision is returned when a decision is posted for an
// episode that is not paused.
var ErrNotAwaitingDecision = errors.New("episode is not awaiting an audio decision")

// EpisodeService handles episode lifecycle management on the API side.
// Assembly itself runs on the task queue; this service only records state
// and enqueues work.
type EpisodeService struct {
	episodes    store.EpisodeStore
	asynqClient *asynq.Client
}

func NewEpisodeService(episodes store.EpisodeStore, asynqClient *asynq.Client) *EpisodeService {
	return &EpisodeService{
		episodes:    episodes,
		asynqClient: asynqClient,
	}
}

// CreateEpisode stores a new episode record in pending status.
func (s *EpisodeService) CreateEpisode(ctx context.Context, userID string, req *model.CreateEpisodeRequest) (*model.CreateEpisodeResponse, error) {
	now := time.Now()
	ep := &model.Episode{
		ID:             uuid.New().String(),
		UserID:         userID,
		PodcastID:      req.PodcastID,
		Title:          req.Title,
		Status:         model.StatusPending,
		SourceAudioURL: req.SourceAudioURL,
		QualityLabel:   req.QualityLabel,
		ScriptText:     req.ScriptText,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.episodes.SaveEpisode(ctx, ep); err != nil {
		return nil, fmt.Errorf("failed to save episode: %w", err)
	}

	return &model.CreateEpisodeResponse{
		EpisodeID: ep.ID,
		Status:    ep.Status,
		CreatedAt: now,
	}, nil
}

// StartAssembly enqueues the assembly task for an episode.
func (s *EpisodeService) StartAssembly(ctx context.Context, userID, episodeID string) (*model.AssembleResponse, error) {
	ep, err := s.loadOwned(ctx, userID, episodeID)
	if err != nil {
		return nil, err
	}

	if ep.Status == model.StatusProcessing || ep.Status.IsTerminal() {
		return nil, ErrNotAssemblable
	}

	if err := s.enqueueAssembly(ep.ID); err != nil {
		return nil, err
	}

	return &model.AssembleResponse{
		EpisodeID: ep.ID,
		Status:    ep.Status,
		Queued:    true,
	}, nil
}

// GetEpisode returns the public status view of an episode.
func (s *EpisodeService) GetEpisode(ctx context.Context, userID, episodeID string) (*model.EpisodeStatusResponse, error) {
	ep, err := s.loadOwned(ctx, userID, episodeID)
	if err != nil {
		return nil, err
	}

	return &model.EpisodeStatusResponse{
		EpisodeID:      ep.ID,
		Status:         ep.Status,
		OutputAudioURL: ep.OutputAudioURL,
		Error:          ep.MetaString(model.MetaError),
		Metadata:       ep.Metadata,
		CreatedAt:      ep.CreatedAt,
		UpdatedAt:      ep.UpdatedAt,
		ProcessedAt:    ep.ProcessedAt,
	}, nil
}

// RecordDecision resumes a paused episode. The decision is persisted
// first, then the assembly task re-enqueued; the orchestrator treats the
// recorded decision as an explicit override when it re-enters the
// pipeline.
func (s *EpisodeService) RecordDecision(ctx context.Context, userID, episodeID string, useAdvanced bool) (*model.AssembleResponse, error) {
	ep, err := s.loadOwned(ctx, userID, episodeID)
	if err != nil {
		return nil, err
	}

	if ep.Status != model.StatusAwaitingDecision {
		return nil, ErrNotAwaitingDecision
	}

	ep.RecordAudioDecision(useAdvanced)
	if err := s.episodes.SaveEpisode(ctx, ep); err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}

	if err := s.enqueueAssembly(ep.ID); err != nil {
		return nil, err
	}

	return &model.AssembleResponse{
		EpisodeID: ep.ID,
		Status:    ep.Status,
		Queued:    true,
	}, nil
}

func (s *EpisodeService) loadOwned(ctx context.Context, userID, episodeID string) (*model.Episode, error) {
	ep, err := s.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if ep.UserID != userID {
		return nil, ErrForbidden
	}
	return ep, nil
}

func (s *EpisodeService) enqueueAssembly(episodeID string) error {
	data, err := json.Marshal(&model.AssembleTaskPayload{EpisodeID: episodeID})
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeAssemble, data)
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("assemble"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}
