package repository

import (
	"context"

	"gorm.io/gorm"
)

type Repository struct {
	DB           *gorm.DB
	Properties   PropertyRepo
	Units        UnitRepo
	Reservations ReservationRepo
	Refunds      RefundRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:           db,
		Properties:   NewPropertyRepo(db),
		Units:        NewUnitRepo(db),
		Reservations: NewReservationRepo(db),
		Refunds:      NewRefundRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// WithTx: одна транзакция на весь набор репозиториев. Ошибка из fn откатывает всё.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}
