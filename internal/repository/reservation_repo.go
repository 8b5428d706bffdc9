package repository

import (
	"context"
	"errors"
	"time"

	"booking-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SlotQuery: юнит (или объект без юнитов) и полуинтервал дат [CheckIn, CheckOut).
type SlotQuery struct {
	PropertyID uuid.UUID
	UnitID     *uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
}

type ReservationListFilter struct {
	PropertyID *uuid.UUID
	UnitID     *uuid.UUID
	Status     *models.ReservationStatus
	From       *time.Time // брони, пересекающиеся с [From, To)
	To         *time.Time
	Limit      int
	Offset     int
}

type ReservationRepo interface {
	Create(ctx context.Context, r *models.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	// GetByIDForUpdate читает бронь с блокировкой строки до конца транзакции.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	GetByReference(ctx context.Context, reference string) (*models.Reservation, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	List(ctx context.Context, f ReservationListFilter) ([]models.Reservation, int64, error)

	// HasConflict ищет занимающие слот брони, пересекающиеся с q, блокируя найденные строки (FOR UPDATE).
	HasConflict(ctx context.Context, q SlotQuery) (bool, error)
	// CountHolding: то же без блокировок, для витрины доступности.
	CountHolding(ctx context.Context, q SlotQuery) (int64, error)

	// NextReferenceSeq берёт следующее значение последовательности reservation_reference_seq.
	NextReferenceSeq(ctx context.Context) (int64, error)

	// ListExpiredHolds возвращает id броней в статусе reserved с истёкшим холдом.
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepo(db *gorm.DB) ReservationRepo { return &reservationRepo{db: db} }

func (r *reservationRepo) Create(ctx context.Context, res *models.Reservation) error {
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *reservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *reservationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *reservationRepo) GetByReference(ctx context.Context, reference string) (*models.Reservation, error) {
	return r.first(r.db.WithContext(ctx), "reference = ?", reference)
}

func (r *reservationRepo) first(q *gorm.DB, cond string, arg any) (*models.Reservation, error) {
	var res models.Reservation
	err := q.First(&res, cond, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Reservation{}).Where("id = ?", id).Updates(fields).Error
}

func (r *reservationRepo) List(ctx context.Context, f ReservationListFilter) ([]models.Reservation, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Reservation{})

	if f.PropertyID != nil {
		q = q.Where("property_id = ?", *f.PropertyID)
	}
	if f.UnitID != nil {
		q = q.Where("unit_id = ?", *f.UnitID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.From != nil {
		q = q.Where("check_out > ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("check_in < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var list []models.Reservation
	err := q.Order("check_in ASC, created_at ASC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}

// slotScope: пересечение полуинтервалов existing.check_in < q.CheckOut AND existing.check_out > q.CheckIn.
func (r *reservationRepo) slotScope(ctx context.Context, q SlotQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status IN ?", models.HoldingStatuses).
		Where("check_in < ? AND check_out > ?", q.CheckOut, q.CheckIn)
	if q.UnitID != nil {
		return tx.Where("unit_id = ?", *q.UnitID)
	}
	return tx.Where("property_id = ? AND unit_id IS NULL", q.PropertyID)
}

func (r *reservationRepo) HasConflict(ctx context.Context, q SlotQuery) (bool, error) {
	var ids []uuid.UUID
	err := r.slotScope(ctx, q).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Pluck("id", &ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *reservationRepo) CountHolding(ctx context.Context, q SlotQuery) (int64, error) {
	var cnt int64
	err := r.slotScope(ctx, q).Count(&cnt).Error
	return cnt, err
}

func (r *reservationRepo) NextReferenceSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(`SELECT nextval('reservation_reference_seq')`).Scan(&seq).Error
	return seq, err
}

func (r *reservationRepo) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ? AND expires_at <= ?", models.StatusReserved, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
