package repository

import (
	"context"
	"errors"

	"whoami/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormLeaderboardRepository struct {
	db *gorm.DB
}

func NewGormLeaderboardRepository(db *gorm.DB) *GormLeaderboardRepository {
	return &GormLeaderboardRepository{db: db}
}

var counterColumns = []string{
	"player_name", "score", "games_played", "games_won",
	"current_streak", "max_streak", "updated_at",
}

func (r *GormLeaderboardRepository) Upsert(ctx context.Context, e *models.LeaderboardEntry) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns(counterColumns),
	}).Create(e).Error
	return wrapGormError(err)
}

func (r *GormLeaderboardRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.LeaderboardEntry, error) {
	var e models.LeaderboardEntry
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&e).Error; err != nil {
		return nil, wrapGormError(err)
	}
	return &e, nil
}

func (r *GormLeaderboardRepository) FindByPlayerName(ctx context.Context, name, scope string) (*models.LeaderboardEntry, error) {
	var e models.LeaderboardEntry
	err := r.db.WithContext(ctx).
		Where("player_name = ? AND scope = ?", name, scope).
		Order("created_at DESC").
		First(&e).Error
	if err != nil {
		return nil, wrapGormError(err)
	}
	return &e, nil
}

func (r *GormLeaderboardRepository) FindTop(ctx context.Context, limit int, scope string) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.WithContext(ctx).
		Where("scope = ?", scope).
		Order("score DESC, created_at ASC, id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, wrapGormError(err)
	}
	return entries, nil
}

// Update locks the row for the duration of the transaction so concurrent
// submissions for one session apply one after the other.
func (r *GormLeaderboardRepository) Update(ctx context.Context, sessionID string, fn func(e *models.LeaderboardEntry) error) (*models.LeaderboardEntry, error) {
	var updated models.LeaderboardEntry
	var fnErr error

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ?", sessionID).
			First(&updated).Error; err != nil {
			return err
		}
		if fnErr = fn(&updated); fnErr != nil {
			return fnErr
		}
		return tx.Save(&updated).Error
	})

	switch {
	case err == nil:
		return &updated, nil
	case fnErr != nil && errors.Is(err, fnErr):
		return nil, fnErr
	default:
		return nil, wrapGormError(err)
	}
}

func (r *GormLeaderboardRepository) CountTotal(ctx context.Context, scope string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.LeaderboardEntry{}).Where("scope = ?", scope).Count(&n).Error; err != nil {
		return 0, wrapGormError(err)
	}
	return n, nil
}

func (r *GormLeaderboardRepository) CountScoresBelow(ctx context.Context, score int, scope string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.LeaderboardEntry{}).
		Where("scope = ? AND score < ?", scope, score).
		Count(&n).Error
	if err != nil {
		return 0, wrapGormError(err)
	}
	return n, nil
}
