package repository

import (
	"context"
	"errors"

	"booking-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RefundRepo interface {
	Create(ctx context.Context, o *models.RefundObligation) error
	GetByReservation(ctx context.Context, reservationID uuid.UUID) (*models.RefundObligation, error)
	ListPending(ctx context.Context, limit int) ([]models.RefundObligation, error)
}

type refundRepo struct{ db *gorm.DB }

func NewRefundRepo(db *gorm.DB) RefundRepo { return &refundRepo{db: db} }

func (r *refundRepo) Create(ctx context.Context, o *models.RefundObligation) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *refundRepo) GetByReservation(ctx context.Context, reservationID uuid.UUID) (*models.RefundObligation, error) {
	var o models.RefundObligation
	err := r.db.WithContext(ctx).First(&o, "reservation_id = ?", reservationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *refundRepo) ListPending(ctx context.Context, limit int) ([]models.RefundObligation, error) {
	if limit <= 0 {
		limit = 100
	}
	var list []models.RefundObligation
	err := r.db.WithContext(ctx).
		Where("status = ?", models.RefundPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
