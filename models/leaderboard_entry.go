package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeaderboardEntry accumulates a player's results for one session. Its
// counters change only through RecordGame.
type LeaderboardEntry struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	SessionID     string    `json:"session_id" gorm:"uniqueIndex;not null;type:varchar(64)"`
	PlayerName    string    `json:"player_name" gorm:"not null;index"`
	Scope         string    `json:"scope" gorm:"not null;default:'nba';index:idx_scope_score,priority:1"`
	Score         int       `json:"score" gorm:"not null;default:0;index:idx_scope_score,priority:2"`
	GamesPlayed   int       `json:"games_played" gorm:"not null;default:0"`
	GamesWon      int       `json:"games_won" gorm:"not null;default:0"`
	CurrentStreak int       `json:"current_streak" gorm:"not null;default:0"`
	MaxStreak     int       `json:"max_streak" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewLeaderboardEntry(sessionID, playerName, scope string, now time.Time) (*LeaderboardEntry, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, errors.New("player name is required")
	}
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	return &LeaderboardEntry{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		PlayerName: playerName,
		Scope:      scope,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// RecordGame folds one finished round into the entry.
func (e *LeaderboardEntry) RecordGame(won bool, points int, now time.Time) {
	if points < 0 {
		points = 0
	}
	e.GamesPlayed++
	e.Score += points
	e.UpdatedAt = now
	if won {
		e.GamesWon++
		e.CurrentStreak++
		e.MaxStreak = max(e.MaxStreak, e.CurrentStreak)
	} else {
		e.CurrentStreak = 0
	}
}
