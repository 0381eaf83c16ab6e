// Package sessions stores the short-lived state of a player's run: the
// current round, difficulty progression and recently used characters.
package sessions

import (
	"context"
	"errors"
	"slices"
	"time"

	"whoami/game"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("session modified concurrently")
	ErrStore    = errors.New("session store failure")
)

// Session spans a streak of rounds. It ends (GameOver) on the first lost
// round.
type Session struct {
	ID           string           `json:"id"`
	PlayerName   string           `json:"playerName"`
	Scope        string           `json:"scope"`
	CreatedAt    time.Time        `json:"createdAt"`
	Round        game.Round       `json:"round"`
	Progression  game.Progression `json:"progression"`
	RecentIDs    []string         `json:"recentIds"`
	GameOver     bool             `json:"gameOver"`
	LastActivity time.Time        `json:"lastActivity"`
}

// RememberCharacter adds id to the rolling exclusion window. Once the window
// grows beyond limit it starts over so small pools never run dry.
func (s *Session) RememberCharacter(id string, limit int) {
	if len(s.RecentIDs) >= limit {
		s.RecentIDs = nil
	}
	if !slices.Contains(s.RecentIDs, id) {
		s.RecentIDs = append(s.RecentIDs, id)
	}
}

// Exclusions merges the session window with ids supplied by the client.
func (s *Session) Exclusions(extra []string) []string {
	out := slices.Clone(s.RecentIDs)
	for _, id := range extra {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Store persists sessions. Update must apply fn atomically with respect to
// other Updates of the same id; fn may run more than once and must only
// mutate the session it is given.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(s *Session) error) (*Session, error)
	Delete(ctx context.Context, id string) error
	// Scan calls fn with every live session. It stops at the first error fn
	// returns.
	Scan(ctx context.Context, fn func(s *Session) error) error
}
