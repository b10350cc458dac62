package participant

import (
	"context"

	"gorm.io/gorm"
)

// Repository describes the read-only queries the settlement engine performs
// against the participant store.
type Repository interface {
	ListEligible(ctx context.Context) ([]Participant, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListEligible(ctx context.Context) ([]Participant, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var participants []Participant
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusActive).
		Where("payout_address <> ''").
		Where("content_verified = ?", true).
		Order("ranking_metric DESC").
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	return participants, nil
}
