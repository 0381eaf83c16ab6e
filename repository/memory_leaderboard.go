package repository

import (
	"context"
	"sort"
	"sync"

	"whoami/models"
)

// MemoryLeaderboardRepository is an embedded leaderboard. Updates to one
// session id are serialized by a per-key mutex; different sessions proceed
// independently.
type MemoryLeaderboardRepository struct {
	mu      sync.RWMutex
	entries map[string]models.LeaderboardEntry
	locks   keyedMutex
}

func NewMemoryLeaderboardRepository() *MemoryLeaderboardRepository {
	return &MemoryLeaderboardRepository{
		entries: make(map[string]models.LeaderboardEntry),
		locks:   keyedMutex{held: make(map[string]*refMutex)},
	}
}

type refMutex struct {
	sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or
// waits on it.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]*refMutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.held[key]
	if !ok {
		m = &refMutex{}
		k.held[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(k.held, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.held)
}

func (r *MemoryLeaderboardRepository) Upsert(_ context.Context, e *models.LeaderboardEntry) error {
	defer r.locks.lock(e.SessionID)()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[e.SessionID]; ok {
		existing.PlayerName = e.PlayerName
		existing.Score = e.Score
		existing.GamesPlayed = e.GamesPlayed
		existing.GamesWon = e.GamesWon
		existing.CurrentStreak = e.CurrentStreak
		existing.MaxStreak = e.MaxStreak
		existing.UpdatedAt = e.UpdatedAt
		r.entries[e.SessionID] = existing
		return nil
	}
	r.entries[e.SessionID] = *e
	return nil
}

func (r *MemoryLeaderboardRepository) FindBySessionID(_ context.Context, sessionID string) (*models.LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *MemoryLeaderboardRepository) FindByPlayerName(_ context.Context, name, scope string) (*models.LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.LeaderboardEntry
	for _, e := range r.entries {
		if e.PlayerName != name || e.Scope != scope {
			continue
		}
		if found == nil || e.CreatedAt.After(found.CreatedAt) {
			e := e
			found = &e
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *MemoryLeaderboardRepository) FindTop(_ context.Context, limit int, scope string) ([]models.LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.LeaderboardEntry
	for _, e := range r.entries {
		if e.Scope == scope {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryLeaderboardRepository) Update(_ context.Context, sessionID string, fn func(e *models.LeaderboardEntry) error) (*models.LeaderboardEntry, error) {
	defer r.locks.lock(sessionID)()

	r.mu.RLock()
	e, ok := r.entries[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if err := fn(&e); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.entries[sessionID] = e
	r.mu.Unlock()

	out := e
	return &out, nil
}

func (r *MemoryLeaderboardRepository) CountTotal(_ context.Context, scope string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, e := range r.entries {
		if e.Scope == scope {
			n++
		}
	}
	return n, nil
}

func (r *MemoryLeaderboardRepository) CountScoresBelow(_ context.Context, score int, scope string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, e := range r.entries {
		if e.Scope == scope && e.Score < score {
			n++
		}
	}
	return n, nil
}
