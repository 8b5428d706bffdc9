package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable: хранилище блокировок недоступно (сеть, таймаут, открыт breaker).
	ErrUnavailable = errors.New("lock store unavailable")
	// ErrNotHeld: ключ уже не принадлежит владельцу токена (истёк lease или чужая блокировка).
	ErrNotHeld = errors.New("lock not held by token")
)

// Locker: короткоживущий мьютекс с токеном владельца.
// Acquire возвращает ok=false без ошибки, если ключ уже занят: это обычная конкуренция, а не сбой.
type Locker interface {
	Acquire(ctx context.Context, key string, lease time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

const keyPrefix = "booking:lock"

// ResourceKey кодирует юнит и точный диапазон дат: разные диапазоны одного юнита не блокируют друг друга.
func ResourceKey(slotID uuid.UUID, checkIn, checkOut time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, slotID, checkIn.Format(time.DateOnly), checkOut.Format(time.DateOnly))
}
