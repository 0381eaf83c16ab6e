package services

import (
	"context"
	"math"
	"time"

	"whoami/models"
	"whoami/repository"
)

// LeaderboardService owns every mutation of leaderboard entries.
type LeaderboardService struct {
	repo  repository.LeaderboardRepository
	retry RetryPolicy
	now   func() time.Time
}

func NewLeaderboardService(repo repository.LeaderboardRepository, retry RetryPolicy) *LeaderboardService {
	return &LeaderboardService{repo: repo, retry: retry, now: time.Now}
}

// Percentile places a score among all recorded scores of a scope.
type Percentile struct {
	PlayersBelow int64 `json:"playersBelow"`
	TotalPlayers int64 `json:"totalPlayers"`
	Percentile   int   `json:"percentile"`
}

// Create registers a zeroed entry for a new session.
func (s *LeaderboardService) Create(ctx context.Context, sessionID, playerName, scope string) (*models.LeaderboardEntry, error) {
	entry, err := models.NewLeaderboardEntry(sessionID, playerName, scope, s.now())
	if err != nil {
		return nil, validationError("%v", err)
	}
	if err := s.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *LeaderboardService) Upsert(ctx context.Context, e *models.LeaderboardEntry) error {
	_, err := withRetry(ctx, s.retry, "leaderboard upsert", func() (struct{}, error) {
		return struct{}{}, s.repo.Upsert(ctx, e)
	})
	return translate(err, "leaderboard entry")
}

// RecordGame folds the outcome of the session's round-th round into its entry.
// points is evaluated inside the atomic update with the streak the player had
// before this round, so concurrent submissions cannot score off a stale
// streak. A round the entry has already counted is not applied again and
// reports applied == false.
func (s *LeaderboardService) RecordGame(ctx context.Context, sessionID string, round int, won bool, points func(streak int) int) (entry *models.LeaderboardEntry, awarded int, applied bool, err error) {
	entry, err = withRetry(ctx, s.retry, "record game", func() (*models.LeaderboardEntry, error) {
		return s.repo.Update(ctx, sessionID, func(e *models.LeaderboardEntry) error {
			awarded, applied = 0, false
			if e.GamesPlayed >= round {
				return nil
			}
			if won && points != nil {
				awarded = points(e.CurrentStreak)
			}
			e.RecordGame(won, awarded, s.now())
			applied = true
			return nil
		})
	})
	if err != nil {
		return nil, 0, false, translate(err, "leaderboard entry")
	}
	return entry, awarded, applied, nil
}

func (s *LeaderboardService) FindBySessionID(ctx context.Context, sessionID string) (*models.LeaderboardEntry, error) {
	e, err := withRetry(ctx, s.retry, "find entry by session", func() (*models.LeaderboardEntry, error) {
		return s.repo.FindBySessionID(ctx, sessionID)
	})
	return e, translate(err, "game session")
}

func (s *LeaderboardService) FindByPlayerName(ctx context.Context, name, scope string) (*models.LeaderboardEntry, error) {
	e, err := withRetry(ctx, s.retry, "find entry by player", func() (*models.LeaderboardEntry, error) {
		return s.repo.FindByPlayerName(ctx, name, scope)
	})
	return e, translate(err, "player")
}

func (s *LeaderboardService) TopN(ctx context.Context, limit int, scope string) ([]models.LeaderboardEntry, error) {
	entries, err := withRetry(ctx, s.retry, "leaderboard top", func() ([]models.LeaderboardEntry, error) {
		return s.repo.FindTop(ctx, limit, scope)
	})
	return entries, translate(err, "leaderboard")
}

// Percentile returns nil when nobody has played in the scope yet.
func (s *LeaderboardService) Percentile(ctx context.Context, score int, scope string) (*Percentile, error) {
	total, err := withRetry(ctx, s.retry, "count players", func() (int64, error) {
		return s.repo.CountTotal(ctx, scope)
	})
	if err != nil {
		return nil, translate(err, "leaderboard")
	}
	if total == 0 {
		return nil, nil
	}

	below, err := withRetry(ctx, s.retry, "count scores below", func() (int64, error) {
		return s.repo.CountScoresBelow(ctx, score, scope)
	})
	if err != nil {
		return nil, translate(err, "leaderboard")
	}

	return &Percentile{
		PlayersBelow: below,
		TotalPlayers: total,
		Percentile:   int(math.Round(float64(below) / float64(total) * 100)),
	}, nil
}
