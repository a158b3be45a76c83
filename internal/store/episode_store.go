package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/podforge/api/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// EpisodeStore persists episodes, their owners, and the queued-assembly
// index the retry manager scans. The persistence engine is replaceable;
// orchestration code only sees this interface.
type EpisodeStore interface {
	GetEpisode(ctx context.Context, id string) (*model.Episode, error)
	SaveEpisode(ctx context.Context, ep *model.Episode) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error

	AddQueued(ctx context.Context, episodeID string) error
	RemoveQueued(ctx context.Context, episodeID string) error
	ListQueued(ctx context.Context) ([]string, error)
}

const queuedIndexKey = "episodes:assembly-queued"

// RedisEpisodeStore keeps episodes as JSON records in redis, mirroring how
// job records are stored elsewhere in the platform.
type RedisEpisodeStore struct {
	redis *redis.Client
}

// NewRedisEpisodeStore creates a redis-backed store.
func NewRedisEpisodeStore(redisClient *redis.Client) *RedisEpisodeStore {
	return &RedisEpisodeStore{redis: redisClient}
}

func episodeKey(id string) string { return fmt.Sprintf("episode:%s", id) }
func userKey(id string) string    { return fmt.Sprintf("user:%s", id) }

// GetEpisode loads one episode.
func (s *RedisEpisodeStore) GetEpisode(ctx context.Context, id string) (*model.Episode, error) {
	data, err := s.redis.Get(ctx, episodeKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var ep model.Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

// SaveEpisode persists one episode, bumping UpdatedAt.
func (s *RedisEpisodeStore) SaveEpisode(ctx context.Context, ep *model.Episode) error {
	ep.UpdatedAt = time.Now()
	data, err := json.Marshal(ep)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, episodeKey(ep.ID), data, 0).Err()
}

// GetUser loads the minimal owner context.
func (s *RedisEpisodeStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	data, err := s.redis.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser persists the owner record.
func (s *RedisEpisodeStore) SaveUser(ctx context.Context, u *model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, userKey(u.ID), data, 0).Err()
}

// AddQueued adds an episode to the queued-assembly index.
func (s *RedisEpisodeStore) AddQueued(ctx context.Context, episodeID string) error {
	return s.redis.SAdd(ctx, queuedIndexKey, episodeID).Err()
}

// RemoveQueued removes an episode from the queued-assembly index.
func (s *RedisEpisodeStore) RemoveQueued(ctx context.Context, episodeID string) error {
	return s.redis.SRem(ctx, queuedIndexKey, episodeID).Err()
}

// ListQueued returns every episode id carrying a queued assembly task.
func (s *RedisEpisodeStore) ListQueued(ctx context.Context) ([]string, error) {
	return s.redis.SMembers(ctx, queuedIndexKey).Result()
}
