package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"booking-service/internal/lock"
	"booking-service/internal/migrate"
	"booking-service/internal/models"
	"booking-service/internal/repository"
	"booking-service/pkg/testutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type MockLocker struct {
	AcquireFunc func(ctx context.Context, key string, lease time.Duration) (string, bool, error)
	ReleaseFunc func(ctx context.Context, key, token string) error

	mu       sync.Mutex
	released []string
}

func (m *MockLocker) Acquire(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, key, lease)
	}
	return "token-" + key, true, nil
}

func (m *MockLocker) Release(ctx context.Context, key, token string) error {
	m.mu.Lock()
	m.released = append(m.released, key)
	m.mu.Unlock()
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, key, token)
	}
	return nil
}

func (m *MockLocker) Released() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.released...)
}

type MockEventBus struct {
	mu       sync.Mutex
	Created  []ReservationCreatedEvent
	Changed  []ReservationStatusChangedEvent
	Refunds  []RefundRequestedEvent
	PubError error
}

func (m *MockEventBus) PublishReservationCreated(_ context.Context, e ReservationCreatedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, e)
	return m.PubError
}

func (m *MockEventBus) PublishStatusChanged(_ context.Context, e ReservationStatusChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Changed = append(m.Changed, e)
	return m.PubError
}

func (m *MockEventBus) PublishRefundRequested(_ context.Context, e RefundRequestedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refunds = append(m.Refunds, e)
	return m.PubError
}

type fixture struct {
	repo *repository.Repository
	prop *models.Property
	unit *models.Unit
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	ctx := context.Background()
	if err := migrate.MigrateBookingDB(ctx, db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.New(db)

	prop := &models.Property{Name: "Sea View", PriceCents: 2500, CurrencyCode: "USD", IsActive: true}
	if err := repo.Properties.Create(ctx, prop); err != nil {
		t.Fatalf("create property: %v", err)
	}
	unit := &models.Unit{PropertyID: prop.ID, Name: "Room 1", PriceCents: 1000, CurrencyCode: "USD", IsActive: true}
	if err := repo.Units.Create(ctx, unit); err != nil {
		t.Fatalf("create unit: %v", err)
	}
	return &fixture{repo: repo, prop: prop, unit: unit}
}

func newTestService(repo *repository.Repository, locker lock.Locker, events EventBus, now time.Time) *bookingService {
	svc := NewBookingService(repo, locker, events, DefaultOptions(), zap.NewNop()).(*bookingService)
	if !now.IsZero() {
		svc.now = func() time.Time { return now }
	}
	return svc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) input(in, out time.Time) CreateReservationInput {
	unitID := f.unit.ID
	return CreateReservationInput{
		PropertyID: f.prop.ID,
		UnitID:     &unitID,
		CheckIn:    in,
		CheckOut:   out,
		GuestName:  "Ada Lovelace",
		GuestEmail: "Ada@Example.com ",
	}
}

func TestCreateReservation_PricingAndHold(t *testing.T) {
	f := setupFixture(t)
	now := time.Date(2023, 12, 20, 10, 30, 0, 0, time.UTC)
	events := &MockEventBus{}
	locker := &MockLocker{}
	svc := newTestService(f.repo, locker, events, now)

	res, err := svc.CreateReservation(context.Background(), f.input(date(2024, 1, 1), date(2024, 1, 4)))
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	if res.Nights != 3 || res.UnitPriceCents != 1000 || res.TotalPriceCents != 3000 {
		t.Fatalf("pricing: nights=%d unit=%d total=%d", res.Nights, res.UnitPriceCents, res.TotalPriceCents)
	}
	if res.Status != models.StatusReserved || res.PaymentStatus != models.PaymentPending {
		t.Fatalf("status=%s payment=%s", res.Status, res.PaymentStatus)
	}
	if !res.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires_at = %v, want %v", res.ExpiresAt, now.Add(time.Hour))
	}
	if res.Reference != "BK-20231220-000001" {
		t.Fatalf("reference = %q", res.Reference)
	}
	if res.GuestEmail != "ada@example.com" {
		t.Fatalf("email not normalized: %q", res.GuestEmail)
	}

	stored, err := f.repo.Reservations.GetByID(context.Background(), res.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.TotalPriceCents != 3000 || stored.Reference != res.Reference {
		t.Fatalf("stored mismatch: %+v", stored)
	}

	wantKey := lock.ResourceKey(f.unit.ID, date(2024, 1, 1), date(2024, 1, 4))
	if rel := locker.Released(); len(rel) != 1 || rel[0] != wantKey {
		t.Fatalf("released = %v, want [%s]", rel, wantKey)
	}
	if len(events.Created) != 1 || events.Created[0].ReservationID != res.ID {
		t.Fatalf("created events = %+v", events.Created)
	}
}

func TestCreateReservation_PropertyWithoutUnit(t *testing.T) {
	f := setupFixture(t)
	svc := newTestService(f.repo, &MockLocker{}, nil, time.Time{})

	in := f.input(date(2024, 3, 1), date(2024, 3, 3))
	in.UnitID = nil
	res, err := svc.CreateReservation(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if res.UnitID != nil || res.TotalPriceCents != 5000 {
		t.Fatalf("unexpected reservation: unit=%v total=%d", res.UnitID, res.TotalPriceCents)
	}

	// бронь всего объекта не пересекается с бронями юнитов
	if _, err := svc.CreateReservation(context.Background(), f.input(date(2024, 3, 1), date(2024, 3, 3))); err != nil {
		t.Fatalf("unit booking on same dates: %v", err)
	}
	if _, err := svc.CreateReservation(context.Background(), in); !errors.Is(err, ErrBookingConflict) {
		t.Fatalf("expected conflict for property slot, got %v", err)
	}
}

func TestCreateReservation_OverlapAndAdjacency(t *testing.T) {
	f := setupFixture(t)
	svc := newTestService(f.repo, &MockLocker{}, nil, time.Time{})
	ctx := context.Background()

	if _, err := svc.CreateReservation(ctx, f.input(date(2024, 1, 1), date(2024, 1, 4))); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.CreateReservation(ctx, f.input(date(2024, 1, 3), date(2024, 1, 6))); !errors.Is(err, ErrBookingConflict) {
		t.Fatalf("overlap: expected ErrBookingConflict, got %v", err)
	}
	// выезд в день заезда не пересекается с бронью
	if _, err := svc.CreateReservation(ctx, f.input(date(2024, 1, 4), date(2024, 1, 6))); err != nil {
		t.Fatalf("adjacent: %v", err)
	}
}

func TestCreateReservation_CancelledFreesSlot(t *testing.T) {
	f := setupFixture(t)
	svc := newTestService(f.repo, &MockLocker{}, nil, time.Time{})
	ctx := context.Background()

	first, err := svc.CreateReservation(ctx, f.input(date(2024, 5, 1), date(2024, 5, 3)))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, ChangeStatusInput{ReservationID: first.ID, Target: models.StatusCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.CreateReservation(ctx, f.input(date(2024, 5, 1), date(2024, 5, 3))); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestCreateReservation_ConcurrentSameUnit(t *testing.T) {
	f := setupFixture(t)
	// без распределённого лока: сериализация только за счёт блокировки строки юнита
	svc := newTestService(f.repo, lock.NewNoopLocker(zap.NewNop()), nil, time.Time{})

	const n = 10
	var (
		mu        sync.Mutex
		succeeded int
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := svc.CreateReservation(context.Background(), f.input(date(2024, 7, 1), date(2024, 7, 5)))
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
				return nil
			case errors.Is(err, ErrBookingConflict), errors.Is(err, ErrLockContention):
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if succeeded != 1 {
		t.Fatalf("exactly one booking must win, got %d", succeeded)
	}

	unitID := f.unit.ID
	cnt, err := f.repo.Reservations.CountHolding(context.Background(), repository.SlotQuery{
		PropertyID: f.prop.ID,
		UnitID:     &unitID,
		CheckIn:    date(2024, 7, 1),
		CheckOut:   date(2024, 7, 5),
	})
	if err != nil || cnt != 1 {
		t.Fatalf("holding count = %d, err=%v", cnt, err)
	}
}

func TestCreateReservation_ConcurrentOverlappingRanges(t *testing.T) {
	// у каждого диапазона свой ключ распределённого лока, конфликт ловит только блокировка строки юнита
	ranges := [][2]time.Time{
		{date(2024, 7, 1), date(2024, 7, 5)},
		{date(2024, 7, 3), date(2024, 7, 6)},
		{date(2024, 7, 4), date(2024, 7, 8)},
	}
	lockers := map[string]func(t *testing.T) lock.Locker{
		"noop": func(*testing.T) lock.Locker { return lock.NewNoopLocker(zap.NewNop()) },
		"redis": func(t *testing.T) lock.Locker {
			return lock.NewRedisLocker(testutil.SetupTestRedis(t), zap.NewNop())
		},
	}

	for name, newLocker := range lockers {
		t.Run(name, func(t *testing.T) {
			f := setupFixture(t)
			svc := newTestService(f.repo, newLocker(t), nil, time.Time{})

			const perRange = 4
			var (
				mu      sync.Mutex
				winners []*models.Reservation
			)
			var g errgroup.Group
			for i := 0; i < perRange; i++ {
				for _, r := range ranges {
					g.Go(func() error {
						res, err := svc.CreateReservation(context.Background(), f.input(r[0], r[1]))
						switch {
						case err == nil:
							mu.Lock()
							winners = append(winners, res)
							mu.Unlock()
							return nil
						case errors.Is(err, ErrBookingConflict), errors.Is(err, ErrLockContention):
							return nil
						default:
							return err
						}
					})
				}
			}
			if err := g.Wait(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(winners) != 1 {
				t.Fatalf("exactly one of the overlapping bookings must win, got %d", len(winners))
			}

			unitID := f.unit.ID
			cnt, err := f.repo.Reservations.CountHolding(context.Background(), repository.SlotQuery{
				PropertyID: f.prop.ID,
				UnitID:     &unitID,
				CheckIn:    date(2024, 7, 1),
				CheckOut:   date(2024, 7, 8),
			})
			if err != nil || cnt != 1 {
				t.Fatalf("holding count = %d, err=%v", cnt, err)
			}
		})
	}
}

func TestCreateReservation_LockContentionSkipsDB(t *testing.T) {
	// repo с nil DB упадёт при любом обращении, значит до БД дело не доходит
	repo := &repository.Repository{}
	locker := &MockLocker{
		AcquireFunc: func(context.Context, string, time.Duration) (string, bool, error) {
			return "", false, nil
		},
	}
	svc := newTestService(repo, locker, nil, time.Time{})

	in := CreateReservationInput{
		PropertyID: uuid.New(),
		CheckIn:    date(2024, 1, 1),
		CheckOut:   date(2024, 1, 2),
		GuestName:  "Guest",
		GuestEmail: "guest@example.com",
	}
	if _, err := svc.CreateReservation(context.Background(), in); !errors.Is(err, ErrLockContention) {
		t.Fatalf("expected ErrLockContention, got %v", err)
	}
	if len(locker.Released()) != 0 {
		t.Fatal("lock that was never acquired must not be released")
	}
}

func TestCreateReservation_LockStoreUnavailable(t *testing.T) {
	locker := &MockLocker{
		AcquireFunc: func(context.Context, string, time.Duration) (string, bool, error) {
			return "", false, lock.ErrUnavailable
		},
	}
	svc := newTestService(&repository.Repository{}, locker, nil, time.Time{})

	in := CreateReservationInput{
		PropertyID: uuid.New(),
		CheckIn:    date(2024, 1, 1),
		CheckOut:   date(2024, 1, 2),
		GuestName:  "Guest",
		GuestEmail: "guest@example.com",
	}
	_, err := svc.CreateReservation(context.Background(), in)
	if !errors.Is(err, ErrLockContention) {
		t.Fatalf("expected ErrLockContention, got %v", err)
	}
}

func TestCreateReservation_ReleaseFailureIgnored(t *testing.T) {
	f := setupFixture(t)
	locker := &MockLocker{
		ReleaseFunc: func(context.Context, string, string) error { return lock.ErrNotHeld },
	}
	svc := newTestService(f.repo, locker, nil, time.Time{})

	res, err := svc.CreateReservation(context.Background(), f.input(date(2024, 2, 1), date(2024, 2, 2)))
	if err != nil || res == nil {
		t.Fatalf("release failure must not fail the booking: %v", err)
	}
	if len(locker.Released()) != 1 {
		t.Fatal("release must still be attempted")
	}
}

func TestCreateReservation_ReleasedOnFailure(t *testing.T) {
	f := setupFixture(t)
	locker := &MockLocker{}
	svc := newTestService(f.repo, locker, nil, time.Time{})

	in := f.input(date(2024, 2, 1), date(2024, 2, 2))
	in.PropertyID = uuid.New()
	if _, err := svc.CreateReservation(context.Background(), in); !errors.Is(err, ErrUnitPropertyMismatch) {
		t.Fatalf("expected ErrUnitPropertyMismatch, got %v", err)
	}
	if len(locker.Released()) != 1 {
		t.Fatal("lock must be released when the transaction fails")
	}
}

func TestCreateReservation_Validation(t *testing.T) {
	f := setupFixture(t)
	svc := newTestService(f.repo, &MockLocker{}, nil, time.Time{})
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *CreateReservationInput)
		want   error
	}{
		{"same day", func(in *CreateReservationInput) { in.CheckOut = in.CheckIn }, ErrInvalidDuration},
		{"reversed", func(in *CreateReservationInput) { in.CheckIn, in.CheckOut = in.CheckOut, in.CheckIn }, ErrInvalidDuration},
		{"same day different hours", func(in *CreateReservationInput) {
			in.CheckOut = in.CheckIn.Add(20 * time.Hour)
		}, ErrInvalidDuration},
		{"bad email", func(in *CreateReservationInput) { in.GuestEmail = "nope" }, ErrInvalidInput},
		{"missing name", func(in *CreateReservationInput) { in.GuestName = "  " }, ErrInvalidInput},
		{"unknown unit", func(in *CreateReservationInput) {
			id := uuid.New()
			in.UnitID = &id
		}, ErrUnitNotFound},
		{"unknown property", func(in *CreateReservationInput) {
			in.PropertyID = uuid.New()
			in.UnitID = nil
		}, ErrPropertyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input(date(2024, 9, 1), date(2024, 9, 3))
			tt.mutate(&in)
			if _, err := svc.CreateReservation(ctx, in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateReservation_InactiveListing(t *testing.T) {
	f := setupFixture(t)
	svc := newTestService(f.repo, &MockLocker{}, nil, time.Time{})

	if err := f.repo.DB.Model(&models.Unit{}).Where("id = ?", f.unit.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate unit: %v", err)
	}
	_, err := svc.CreateReservation(context.Background(), f.input(date(2024, 9, 1), date(2024, 9, 3)))
	if !errors.Is(err, ErrListingInactive) {
		t.Fatalf("expected ErrListingInactive, got %v", err)
	}
}

func TestCreateReservation_DuplicateReference(t *testing.T) {
	f := setupFixture(t)
	svc := newTestService(f.repo, &MockLocker{}, nil, time.Time{})
	ctx := context.Background()

	in := f.input(date(2024, 10, 1), date(2024, 10, 2))
	in.Reference = "EXT-42"
	if _, err := svc.CreateReservation(ctx, in); err != nil {
		t.Fatalf("first: %v", err)
	}
	in = f.input(date(2024, 11, 1), date(2024, 11, 2))
	in.Reference = "EXT-42"
	if _, err := svc.CreateReservation(ctx, in); !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
}
