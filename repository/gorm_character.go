package repository

import (
	"context"
	"errors"
	"fmt"

	"whoami/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormCharacterRepository struct {
	db *gorm.DB
}

func NewGormCharacterRepository(db *gorm.DB) *GormCharacterRepository {
	return &GormCharacterRepository{db: db}
}

func (r *GormCharacterRepository) FindByID(ctx context.Context, id string) (*models.Character, error) {
	var c models.Character
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, wrapGormError(err)
	}
	return &c, nil
}

func (r *GormCharacterRepository) FindRandom(ctx context.Context, filter CharacterFilter) (*models.Character, error) {
	ids, err := r.candidateIDs(ctx, filter, true)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && len(filter.ExcludeIDs) > 0 {
		ids, err = r.candidateIDs(ctx, filter, false)
		if err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return nil, ErrEmptyPool
	}
	return r.FindByID(ctx, pickID(ids))
}

func (r *GormCharacterRepository) candidateIDs(ctx context.Context, filter CharacterFilter, exclude bool) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&models.Character{}).Where("collection = ?", filter.Collection)
	if filter.Difficulty != nil {
		q = q.Where("difficulty = ?", *filter.Difficulty)
	}
	if exclude && len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", filter.ExcludeIDs)
	}

	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, wrapGormError(err)
	}
	return ids, nil
}

func (r *GormCharacterRepository) FindAll(ctx context.Context, collection string) ([]models.Character, error) {
	var characters []models.Character
	q := r.db.WithContext(ctx).Order("difficulty, name")
	if collection != "" {
		q = q.Where("collection = ?", collection)
	}
	if err := q.Find(&characters).Error; err != nil {
		return nil, wrapGormError(err)
	}
	return characters, nil
}

func (r *GormCharacterRepository) Save(ctx context.Context, c *models.Character) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "hints", "difficulty", "collection"}),
	}).Create(c).Error
	return wrapGormError(err)
}

func (r *GormCharacterRepository) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Character{})
	if collection != "" {
		q = q.Where("collection = ?", collection)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, wrapGormError(err)
	}
	return n, nil
}

func wrapGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
