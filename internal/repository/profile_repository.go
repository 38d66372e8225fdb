package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/marketplace-api/internal/model"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Raw(profileSelect+`
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&profile).Error; err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &profile, nil
}
