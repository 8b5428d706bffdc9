package repository

import (
	"context"
	"errors"

	"booking-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UnitRepo interface {
	Create(ctx context.Context, u *models.Unit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Unit, error)
}

type unitRepo struct{ db *gorm.DB }

func NewUnitRepo(db *gorm.DB) UnitRepo { return &unitRepo{db: db} }

func (r *unitRepo) Create(ctx context.Context, u *models.Unit) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *unitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *unitRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *unitRepo) get(q *gorm.DB, id uuid.UUID) (*models.Unit, error) {
	var u models.Unit
	err := q.First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
