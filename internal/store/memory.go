package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/podforge/api/internal/model"
)

// MemoryEpisodeStore is an in-memory EpisodeStore for tests and for
// running the service without redis. Records round-trip through JSON so
// metadata behaves exactly as it does against redis.
type MemoryEpisodeStore struct {
	mu       sync.Mutex
	episodes map[string][]byte
	users    map[string][]byte
	queued   map[string]bool
}

// NewMemoryEpisodeStore creates an empty in-memory store.
func NewMemoryEpisodeStore() *MemoryEpisodeStore {
	return &MemoryEpisodeStore{
		episodes: make(map[string][]byte),
		users:    make(map[string][]byte),
		queued:   make(map[string]bool),
	}
}

func (s *MemoryEpisodeStore) GetEpisode(ctx context.Context, id string) (*model.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.episodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	var ep model.Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

func (s *MemoryEpisodeStore) SaveEpisode(ctx context.Context, ep *model.Episode) error {
	ep.UpdatedAt = time.Now()
	data, err := json.Marshal(ep)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes[ep.ID] = data
	return nil
}

func (s *MemoryEpisodeStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MemoryEpisodeStore) SaveUser(ctx context.Context, u *model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = data
	return nil
}

func (s *MemoryEpisodeStore) AddQueued(ctx context.Context, episodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[episodeID] = true
	return nil
}

func (s *MemoryEpisodeStore) RemoveQueued(ctx context.Context, episodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queued, episodeID)
	return nil
}

func (s *MemoryEpisodeStore) ListQueued(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.queued))
	for id := range s.queued {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
