package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nanorand/nanorand"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const tokenLength = 32

// Сравнение и удаление одной командой: нельзя снять блокировку, которую после истечения нашего lease взял другой.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisClient(addr, password string, db int, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connected successfully", zap.String("addr", addr))
	return rdb, nil
}

type RedisLocker struct {
	client   *redis.Client
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
	newToken func() (string, error)
}

func NewRedisLocker(client *redis.Client, log *zap.Logger) *RedisLocker {
	l := &RedisLocker{
		client:   client,
		log:      log,
		newToken: func() (string, error) { return nanorand.Gen(tokenLength) },
	}
	l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-lock",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isStoreHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("lock store breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	token, err := l.newToken()
	if err != nil {
		return "", false, fmt.Errorf("generate lock token: %w", err)
	}

	res, err := l.breaker.Execute(func() (interface{}, error) {
		return l.client.SetNX(ctx, key, token, lease).Result()
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: acquire %s: %v", ErrUnavailable, key, err)
	}
	if ok, _ := res.(bool); !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	res, err := l.breaker.Execute(func() (interface{}, error) {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	})
	if err != nil {
		return fmt.Errorf("%w: release %s: %v", ErrUnavailable, key, err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Отмена или таймаут вызывающего не говорят о состоянии Redis и не размыкают breaker.
func isStoreHealthy(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsUnavailable: ошибка инфраструктуры, а не конкуренции.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
