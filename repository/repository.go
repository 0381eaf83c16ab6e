// Package repository holds the persistence ports of the game core and their
// gorm (postgres) and in-memory implementations.
package repository

import (
	"context"
	"errors"
	"math/rand"

	"whoami/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrEmptyPool   = errors.New("no characters match the requested filters")
	ErrPersistence = errors.New("persistence failure")
)

// CharacterFilter narrows random character selection. Collection is always
// applied; ExcludeIDs is dropped if it would leave nothing to pick.
type CharacterFilter struct {
	Collection string
	ExcludeIDs []string
	Difficulty *int
}

type CharacterRepository interface {
	FindByID(ctx context.Context, id string) (*models.Character, error)
	FindRandom(ctx context.Context, filter CharacterFilter) (*models.Character, error)
	FindAll(ctx context.Context, collection string) ([]models.Character, error)
	Save(ctx context.Context, c *models.Character) error
	Count(ctx context.Context, collection string) (int64, error)
}

type LeaderboardRepository interface {
	// Upsert creates the entry, or overwrites the counters of the entry with
	// the same session id.
	Upsert(ctx context.Context, e *models.LeaderboardEntry) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.LeaderboardEntry, error)
	// FindByPlayerName returns the player's most recent entry in scope.
	FindByPlayerName(ctx context.Context, name, scope string) (*models.LeaderboardEntry, error)
	// FindTop orders by score desc, then created_at asc, then id asc.
	FindTop(ctx context.Context, limit int, scope string) ([]models.LeaderboardEntry, error)
	// Update runs fn on the entry and persists the result atomically with
	// respect to other Updates of the same session id.
	Update(ctx context.Context, sessionID string, fn func(e *models.LeaderboardEntry) error) (*models.LeaderboardEntry, error)
	CountTotal(ctx context.Context, scope string) (int64, error)
	CountScoresBelow(ctx context.Context, score int, scope string) (int64, error)
}

func pickID(ids []string) string {
	return ids[rand.Intn(len(ids))]
}
