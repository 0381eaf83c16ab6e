package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"whoami/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func character(id string, difficulty int, collection string) models.Character {
	return models.Character{
		ID:         id,
		Name:       "Name " + id,
		Category:   "player",
		Hints:      []string{"hint"},
		Difficulty: difficulty,
		Collection: collection,
	}
}

func intPtr(v int) *int { return &v }

func TestMemoryCharacterRepository_FindRandom(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCharacterRepository(
		character("a", 1, "nba"),
		character("b", 1, "nba"),
		character("c", 2, "nba"),
		character("z", 1, "one-piece"),
	)

	for i := 0; i < 20; i++ {
		c, err := repo.FindRandom(ctx, CharacterFilter{Collection: "nba", ExcludeIDs: []string{"a"}, Difficulty: intPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, "b", c.ID)
	}

	// Every candidate excluded: exclusions are dropped, difficulty is kept.
	c, err := repo.FindRandom(ctx, CharacterFilter{Collection: "nba", ExcludeIDs: []string{"c"}, Difficulty: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, "c", c.ID)

	_, err = repo.FindRandom(ctx, CharacterFilter{Collection: "nba", Difficulty: intPtr(5)})
	assert.ErrorIs(t, err, ErrEmptyPool)

	_, err = repo.FindRandom(ctx, CharacterFilter{Collection: "marvel"})
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestMemoryCharacterRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCharacterRepository(character("a", 2, "nba"), character("b", 1, "nba"), character("z", 1, "one-piece"))

	_, err := repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := repo.FindAll(ctx, "nba")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)

	n, _ := repo.Count(ctx, "")
	assert.EqualValues(t, 3, n)

	c := character("n", 3, "nba")
	require.NoError(t, repo.Save(ctx, &c))
	n, _ = repo.Count(ctx, "nba")
	assert.EqualValues(t, 3, n)
}

func entry(t *testing.T, repo LeaderboardRepository, session, player, scope string, score int, created time.Time) {
	t.Helper()
	e, err := models.NewLeaderboardEntry(session, player, scope, created)
	require.NoError(t, err)
	e.ID = "id-" + session
	e.Score = score
	require.NoError(t, repo.Upsert(context.Background(), e))
}

func TestMemoryLeaderboardRepository_FindTopOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeaderboardRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	entry(t, repo, "s1", "ann", "nba", 500, base.Add(2*time.Minute))
	entry(t, repo, "s2", "bob", "nba", 900, base.Add(3*time.Minute))
	entry(t, repo, "s3", "cat", "nba", 500, base.Add(1*time.Minute))
	entry(t, repo, "s4", "dan", "one-piece", 5000, base)

	top, err := repo.FindTop(ctx, 10, "nba")
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"s2", "s3", "s1"}, []string{top[0].SessionID, top[1].SessionID, top[2].SessionID})

	again, _ := repo.FindTop(ctx, 10, "nba")
	assert.Equal(t, top, again)

	top, _ = repo.FindTop(ctx, 1, "nba")
	assert.Len(t, top, 1)

	total, _ := repo.CountTotal(ctx, "nba")
	below, _ := repo.CountScoresBelow(ctx, 900, "nba")
	assert.EqualValues(t, 3, total)
	assert.EqualValues(t, 2, below)
}

func TestMemoryLeaderboardRepository_UpsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeaderboardRepository()
	base := time.Now()

	entry(t, repo, "s1", "ann", "nba", 100, base)
	entry(t, repo, "s2", "ann", "nba", 300, base.Add(time.Minute))
	entry(t, repo, "s3", "ann", "one-piece", 700, base.Add(2*time.Minute))

	e, err := repo.FindByPlayerName(ctx, "ann", "nba")
	require.NoError(t, err)
	assert.Equal(t, "s2", e.SessionID)

	entry(t, repo, "s1", "ann", "nba", 150, base.Add(time.Hour))
	e, _ = repo.FindBySessionID(ctx, "s1")
	assert.Equal(t, 150, e.Score)
	assert.Equal(t, base.Unix(), e.CreatedAt.Unix())

	_, err = repo.FindBySessionID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByPlayerName(ctx, "bob", "nba")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLeaderboardRepository_ConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeaderboardRepository()
	entry(t, repo, "s1", "ann", "nba", 0, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "s1", func(e *models.LeaderboardEntry) error {
				e.RecordGame(true, 10, time.Now())
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	e, _ := repo.FindBySessionID(ctx, "s1")
	assert.Equal(t, 1000, e.Score)
	assert.Equal(t, 100, e.GamesPlayed)
	assert.Equal(t, 100, e.MaxStreak)
	assert.Zero(t, repo.locks.size())
}

func TestMemoryLeaderboardRepository_ReleasesSessionLocks(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeaderboardRepository()

	for i := 0; i < 50; i++ {
		session := fmt.Sprintf("s%d", i)
		entry(t, repo, session, "ann", "nba", 0, time.Now())
		_, err := repo.Update(ctx, session, func(e *models.LeaderboardEntry) error {
			e.RecordGame(false, 0, time.Now())
			return nil
		})
		require.NoError(t, err)
	}
	_, err := repo.Update(ctx, "missing", func(*models.LeaderboardEntry) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, repo.locks.size())
}

func TestMemoryLeaderboardRepository_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeaderboardRepository()
	entry(t, repo, "s1", "ann", "nba", 10, time.Now())

	_, err := repo.Update(ctx, "missing", func(*models.LeaderboardEntry) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	boom := fmt.Errorf("boom")
	_, err = repo.Update(ctx, "s1", func(e *models.LeaderboardEntry) error {
		e.Score = 9999
		return boom
	})
	assert.ErrorIs(t, err, boom)

	e, _ := repo.FindBySessionID(ctx, "s1")
	assert.Equal(t, 10, e.Score)
}
