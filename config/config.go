package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"booking-service/pkg/database"

	"go.uber.org/zap"
)

const (
	LockModeRedis    = "redis"
	LockModeDisabled = "disabled"
)

type Config struct {
	Port    string
	DB      DB
	Lock    Lock
	Redis   Redis
	Booking Booking
	Kafka   Kafka
	Sweeper Sweeper
}

type DB struct {
	database.Config
}

type Lock struct {
	// Mode: redis или disabled. disabled включает деградированный режим без распределённой блокировки,
	// только явным выбором оператора.
	Mode  string
	Lease time.Duration
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Booking struct {
	HoldWindow      time.Duration
	ReferencePrefix string
}

type Kafka struct {
	Brokers []string
	Topic   string
	// PaymentsTopic пустой: потребитель платёжных событий не запускается.
	PaymentsTopic string
	GroupID       string
}

func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 && k.Topic != "" }

func (k Kafka) PaymentsEnabled() bool { return len(k.Brokers) > 0 && k.PaymentsTopic != "" }

type Sweeper struct {
	Enabled  bool
	Interval time.Duration
}

func Load(log *zap.Logger) *Config {
	cfg := &Config{
		Port: getEnv("APP_PORT", log),
		DB: DB{
			Config: database.Config{
				Host:     getEnv("DB_HOST", log),
				Port:     getEnv("DB_PORT", log),
				User:     getEnv("DB_USER", log),
				Password: getEnv("DB_PASSWORD", log),
				Name:     getEnv("DB_NAME", log),
				SSLMode:  getEnv("DB_SSLMODE", log),
			},
		},
		Lock: Lock{
			Mode:  strings.ToLower(getEnvDefault("LOCK_MODE", LockModeRedis)),
			Lease: parseDurationWithDays(getEnvDefault("LOCK_LEASE", "10s"), 10*time.Second, log),
		},
		Booking: Booking{
			HoldWindow:      parseDurationWithDays(getEnvDefault("HOLD_WINDOW", "1h"), time.Hour, log),
			ReferencePrefix: strings.ToUpper(getEnvDefault("REFERENCE_PREFIX", "BK")),
		},
		Kafka: Kafka{
			Brokers: splitAndTrim(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvDefault("BOOKING_EVENTS_TOPIC", "booking.events"),

			PaymentsTopic: os.Getenv("PAYMENT_EVENTS_TOPIC"),
			GroupID:       getEnvDefault("KAFKA_GROUP_ID", "booking-service"),
		},
		Sweeper: Sweeper{
			Enabled:  getEnvDefault("SWEEPER_ENABLED", "true") == "true",
			Interval: parseDurationWithDays(getEnvDefault("SWEEP_INTERVAL", "1m"), time.Minute, log),
		},
	}

	switch cfg.Lock.Mode {
	case LockModeRedis:
		cfg.Redis = Redis{
			Addr:     getEnv("REDIS_ADDR", log),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       atoiDefault(os.Getenv("REDIS_DB"), 0),
		}
	case LockModeDisabled:
		log.Warn("Распределённая блокировка отключена (LOCK_MODE=disabled)")
	default:
		log.Error("Неизвестный LOCK_MODE", zap.String("mode", cfg.Lock.Mode))
		panic(fmt.Sprintf("invalid LOCK_MODE %q: expected redis or disabled", cfg.Lock.Mode))
	}

	return cfg
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

// parseDurationWithDays понимает обычный time.Duration и суффикс "d" (дни).
func parseDurationWithDays(s string, def time.Duration, log *zap.Logger) time.Duration {
	if strings.HasSuffix(s, "d") {
		days, err := time.ParseDuration(strings.TrimSuffix(s, "d") + "h")
		if err != nil || days <= 0 {
			log.Warn("Ошибка парсинга длительности, используется значение по умолчанию", zap.String("value", s))
			return def
		}
		return 24 * days
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Warn("Ошибка парсинга длительности, используется значение по умолчанию", zap.String("value", s))
		return def
	}
	return d
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
