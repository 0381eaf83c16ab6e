package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"whoami/universes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShareService(f *fixture) *ShareService {
	s := NewShareService(f.games, universes.NewRegistry("nba"), "test-secret", "https://whoami.example/")
	s.now = f.clock.Now
	return s
}

func TestShareService_Card(t *testing.T) {
	f := newFixture(t, DefaultGameConfig(), nil)
	share := newShareService(f)

	resp := f.start(t, StartGameRequest{PlayerName: "ana"})
	f.clock.Advance(2 * time.Second)
	f.guess(t, resp.SessionID, resp.Character.ID, "lebron james")

	card, err := share.Card(context.Background(), resp.SessionID)
	require.NoError(t, err)

	assert.Equal(t, "ana", card.Data.PlayerName)
	assert.Equal(t, "nba", card.Data.Scope)
	assert.Equal(t, 1000, card.Data.TotalScore)
	assert.Equal(t, 1, card.Data.MaxStreak)
	assert.Equal(t, 1, card.Data.Rounds)
	assert.True(t, strings.HasPrefix(card.URL, "https://whoami.example/api/share/"))
	assert.Contains(t, card.Text, "📊 Score: 1000")

	data, err := share.Verify(card.Token)
	require.NoError(t, err)
	assert.Equal(t, card.Data, *data)
}

func TestShareService_CardUnknownSession(t *testing.T) {
	f := newFixture(t, DefaultGameConfig(), nil)
	share := newShareService(f)

	_, err := share.Card(context.Background(), "4b4c0a4e-8d7e-4c47-9d3c-3a3f8f7b2f10")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShareService_Text(t *testing.T) {
	f := newFixture(t, DefaultGameConfig(), nil)
	share := newShareService(f)

	t.Run("in progress", func(t *testing.T) {
		text := share.Text(ShareData{
			PlayerName:          "ana",
			Scope:               "nba",
			TotalScore:          4200,
			MaxStreak:           4,
			Rounds:              5,
			HighestLevelCleared: 2,
			AchievementLabel:    "STARTER",
		})
		assert.True(t, strings.HasPrefix(text, "NBA WHO AM I ?"))
		assert.Contains(t, text, "👤 ana")
		assert.Contains(t, text, "🔥 Streak: 4")
		assert.Contains(t, text, "⭐ Level 2/5 (STARTER)")
		assert.True(t, strings.HasSuffix(text, "Play now!"))
	})

	t.Run("all levels cleared", func(t *testing.T) {
		text := share.Text(ShareData{
			PlayerName:       "luffy",
			Scope:            "one-piece",
			TotalScore:       15000,
			MaxStreak:        15,
			Rounds:           15,
			AllLevelsCleared: true,
		})
		assert.Contains(t, text, "luffy conquered ONE PIECE WHO AM I ?")
		assert.Contains(t, text, "All 5 levels cleared")
		assert.True(t, strings.HasSuffix(text, "Can you beat me?"))
	})

	t.Run("unknown scope uses the default universe", func(t *testing.T) {
		text := share.Text(ShareData{PlayerName: "ana", Scope: "marvel"})
		assert.True(t, strings.HasPrefix(text, "NBA WHO AM I ?"))
	})
}

func TestShareService_VerifyRejectsBadTokens(t *testing.T) {
	f := newFixture(t, DefaultGameConfig(), nil)
	share := newShareService(f)

	token, err := share.Sign(ShareData{SessionID: "s1", PlayerName: "ana", Scope: "nba"})
	require.NoError(t, err)

	t.Run("tampered", func(t *testing.T) {
		forged, err := share.Sign(ShareData{SessionID: "s1", PlayerName: "bo", Scope: "nba", TotalScore: 99999})
		require.NoError(t, err)
		parts := strings.Split(token, ".")
		forgedParts := strings.Split(forged, ".")
		_, err = share.Verify(forgedParts[0] + "." + forgedParts[1] + "." + parts[2])
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewShareService(f.games, universes.NewRegistry("nba"), "another-secret", "")
		other.now = f.clock.Now
		_, err := other.Verify(token)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := share.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(31 * 24 * time.Hour)
		_, err := share.Verify(token)
		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "expired")
	})
}

func TestShareService_QRCode(t *testing.T) {
	f := newFixture(t, DefaultGameConfig(), nil)
	share := newShareService(f)
	resp := f.start(t, StartGameRequest{PlayerName: "ana"})

	png, err := share.QRCode(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))
}
