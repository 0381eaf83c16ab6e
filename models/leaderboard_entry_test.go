package models

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeaderboardEntry(t *testing.T) {
	now := time.Now()
	e, err := NewLeaderboardEntry("s-1", "  Ada ", "nba", now)
	require.NoError(t, err)
	assert.Equal(t, "Ada", e.PlayerName)
	assert.Zero(t, e.Score)
	assert.Zero(t, e.GamesPlayed)
	assert.NotEmpty(t, e.ID)

	_, err = NewLeaderboardEntry("s-1", " ", "nba", now)
	assert.Error(t, err)
	_, err = NewLeaderboardEntry("", "Ada", "nba", now)
	assert.Error(t, err)
}

func TestRecordGame(t *testing.T) {
	now := time.Now()
	e, _ := NewLeaderboardEntry("s-1", "Ada", "nba", now)

	e.RecordGame(true, 1000, now)
	e.RecordGame(true, 1150, now)
	assert.Equal(t, 2150, e.Score)
	assert.Equal(t, 2, e.CurrentStreak)
	assert.Equal(t, 2, e.MaxStreak)

	e.RecordGame(false, 0, now)
	assert.Equal(t, 0, e.CurrentStreak)
	assert.Equal(t, 2, e.MaxStreak)
	assert.Equal(t, 3, e.GamesPlayed)
	assert.Equal(t, 2, e.GamesWon)

	e.RecordGame(false, -50, now)
	assert.Equal(t, 2150, e.Score)
}

func TestRecordGame_InvariantsHoldForAnySequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Now()

	for run := 0; run < 50; run++ {
		e, _ := NewLeaderboardEntry("s", "p", "nba", now)
		prevMax := 0
		for i := 0; i < 200; i++ {
			won := rng.Intn(3) > 0
			points := 0
			if won {
				points = rng.Intn(2000)
			}
			e.RecordGame(won, points, now)

			require.GreaterOrEqual(t, e.Score, 0)
			require.GreaterOrEqual(t, e.MaxStreak, e.CurrentStreak)
			require.LessOrEqual(t, e.GamesWon, e.GamesPlayed)
			require.GreaterOrEqual(t, e.MaxStreak, prevMax)
			if !won {
				require.Zero(t, e.CurrentStreak)
			}
			prevMax = e.MaxStreak
		}
	}
}

func TestCharacterPublicOmitsName(t *testing.T) {
	c, err := NewCharacter("", "LeBron James", "player", []string{"King"}, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Difficulty)
	assert.Equal(t, "nba", c.Collection)

	p := c.Public()
	assert.Equal(t, c.ID, p.ID)
	assert.Equal(t, []string{"King"}, p.Hints)

	_, err = NewCharacter("", "X", "player", nil, 1, "nba")
	assert.Error(t, err)
	_, err = NewCharacter("", " ", "player", []string{"a"}, 1, "nba")
	assert.Error(t, err)
}
