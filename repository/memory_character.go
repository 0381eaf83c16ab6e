package repository

import (
	"context"
	"slices"
	"sort"
	"sync"

	"whoami/models"
)

// MemoryCharacterRepository keeps characters in process. Used for local play
// and tests.
type MemoryCharacterRepository struct {
	mu         sync.RWMutex
	characters map[string]models.Character
}

func NewMemoryCharacterRepository(seed ...models.Character) *MemoryCharacterRepository {
	r := &MemoryCharacterRepository{characters: make(map[string]models.Character)}
	for _, c := range seed {
		r.characters[c.ID] = c
	}
	return r
}

func (r *MemoryCharacterRepository) FindByID(_ context.Context, id string) (*models.Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.characters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryCharacterRepository) FindRandom(_ context.Context, filter CharacterFilter) (*models.Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.candidateIDs(filter, true)
	if len(ids) == 0 && len(filter.ExcludeIDs) > 0 {
		ids = r.candidateIDs(filter, false)
	}
	if len(ids) == 0 {
		return nil, ErrEmptyPool
	}

	c := r.characters[pickID(ids)]
	return &c, nil
}

func (r *MemoryCharacterRepository) candidateIDs(filter CharacterFilter, exclude bool) []string {
	var ids []string
	for id, c := range r.characters {
		if c.Collection != filter.Collection {
			continue
		}
		if filter.Difficulty != nil && c.Difficulty != *filter.Difficulty {
			continue
		}
		if exclude && slices.Contains(filter.ExcludeIDs, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (r *MemoryCharacterRepository) FindAll(_ context.Context, collection string) ([]models.Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Character
	for _, c := range r.characters {
		if collection == "" || c.Collection == collection {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Difficulty != out[j].Difficulty {
			return out[i].Difficulty < out[j].Difficulty
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryCharacterRepository) Save(_ context.Context, c *models.Character) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.characters[c.ID] = *c
	return nil
}

func (r *MemoryCharacterRepository) Count(ctx context.Context, collection string) (int64, error) {
	all, _ := r.FindAll(ctx, collection)
	return int64(len(all)), nil
}
