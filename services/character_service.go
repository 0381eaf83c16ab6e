package services

import (
	"context"
	"fmt"
	"log"

	"whoami/models"
	"whoami/repository"
	"whoami/universes"
)

// CharacterService manages the character catalogue the game draws from.
type CharacterService struct {
	repo      repository.CharacterRepository
	universes *universes.Registry
	retry     RetryPolicy
}

func NewCharacterService(repo repository.CharacterRepository, registry *universes.Registry, retry RetryPolicy) *CharacterService {
	return &CharacterService{repo: repo, universes: registry, retry: retry}
}

type CreateCharacterRequest struct {
	ID         string   `json:"id"`
	Name       string   `json:"name" binding:"required"`
	Category   string   `json:"category"`
	Hints      []string `json:"hints" binding:"required,min=1"`
	Difficulty int      `json:"difficulty"`
	Collection string   `json:"collection"`
}

type UniverseStats struct {
	universes.Universe
	Characters int64 `json:"characters"`
}

// Import validates and saves characters, replacing any with the same id.
// It stops at the first invalid character and reports how many were saved.
func (s *CharacterService) Import(ctx context.Context, reqs []CreateCharacterRequest) (int, error) {
	saved := 0
	for i, req := range reqs {
		c, err := s.build(req)
		if err != nil {
			return saved, validationError("character %d (%s): %v", i, req.Name, err)
		}
		if _, err := withRetry(ctx, s.retry, "save character", func() (struct{}, error) {
			return struct{}{}, s.repo.Save(ctx, c)
		}); err != nil {
			return saved, translate(err, "character")
		}
		saved++
	}
	log.Printf("Imported %d characters", saved)
	return saved, nil
}

func (s *CharacterService) build(req CreateCharacterRequest) (*models.Character, error) {
	u, ok := s.universes.Resolve(req.Collection)
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", req.Collection)
	}
	if req.Category != "" && len(u.CharacterTypes) > 0 {
		if _, ok := u.CharacterTypes[req.Category]; !ok {
			return nil, fmt.Errorf("unknown category %q for %s", req.Category, u.ID)
		}
	}
	return models.NewCharacter(req.ID, req.Name, req.Category, req.Hints, req.Difficulty, u.ID)
}

// Stats lists every universe with the size of its character pool.
func (s *CharacterService) Stats(ctx context.Context) ([]UniverseStats, error) {
	all := s.universes.All()
	stats := make([]UniverseStats, 0, len(all))
	for _, u := range all {
		n, err := withRetry(ctx, s.retry, "count characters", func() (int64, error) {
			return s.repo.Count(ctx, u.ID)
		})
		if err != nil {
			return nil, translate(err, "characters")
		}
		stats = append(stats, UniverseStats{Universe: u, Characters: n})
	}
	return stats, nil
}
