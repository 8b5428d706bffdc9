package repository

import (
	"context"
	"errors"

	"booking-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Объекты создаёт и редактирует внешний каталог, здесь они только читаются.
// Create оставлен для сидов и тестов.
type PropertyRepo interface {
	Create(ctx context.Context, p *models.Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	// GetByIDForUpdate блокирует строку объекта до конца транзакции.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

type propertyRepo struct{ db *gorm.DB }

func NewPropertyRepo(db *gorm.DB) PropertyRepo { return &propertyRepo{db: db} }

func (r *propertyRepo) Create(ctx context.Context, p *models.Property) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *propertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *propertyRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *propertyRepo) get(q *gorm.DB, id uuid.UUID) (*models.Property, error) {
	var p models.Property
	err := q.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
