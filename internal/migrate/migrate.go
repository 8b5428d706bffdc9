package migrate

import (
	"context"

	"booking-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto
	CreateSequence         bool // последовательность для номеров брони
	CreateChecks           bool // CHECK-constraint для целостности
	CreateIndexes          bool // индексы для проверки пересечений и свипера
	CreateFKsViaSQL        bool // FK через SQL (поверх GORM-constraint)
	CreateUpdatedAtTrigger bool // триггер обновления updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateSequence:         true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

type step struct {
	name string
	sql  string
}

func exec(db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.Exec(s.sql).Error; err != nil {
			log.Error("Шаг миграции не выполнен", zap.String("step", s.name), zap.Error(err))
			return err
		}
	}
	return nil
}

func MigrateBookingDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы данных бронирований")
	db = db.WithContext(ctx)

	if opt.CreateExtensions {
		log.Info("Создание расширений PostgreSQL")
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
			log.Error("Не удалось включить расширение pgcrypto", zap.Error(err))
			return err
		}
	}

	log.Info("Создание таблиц properties, units, reservations, refund_obligations")
	if err := db.AutoMigrate(&models.Property{}, &models.Unit{}, &models.Reservation{}, &models.RefundObligation{}); err != nil {
		log.Error("Не удалось создать таблицы", zap.Error(err))
		return err
	}

	// Номер брони берётся из последовательности БД, а не из max+1 в приложении.
	if opt.CreateSequence {
		log.Info("Создание последовательности reservation_reference_seq")
		if err := db.Exec(`CREATE SEQUENCE IF NOT EXISTS reservation_reference_seq AS bigint START WITH 1 INCREMENT BY 1`).Error; err != nil {
			log.Error("Не удалось создать последовательность", zap.Error(err))
			return err
		}
	}

	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := exec(db, log, []step{
			{"fn_set_updated_at", `
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;`},
			{"trg_reservations_updated", `
DROP TRIGGER IF EXISTS trg_reservations_updated ON reservations;
CREATE TRIGGER trg_reservations_updated
BEFORE UPDATE ON reservations
FOR EACH ROW EXECUTE FUNCTION set_updated_at();`},
			{"trg_refund_obligations_updated", `
DROP TRIGGER IF EXISTS trg_refund_obligations_updated ON refund_obligations;
CREATE TRIGGER trg_refund_obligations_updated
BEFORE UPDATE ON refund_obligations
FOR EACH ROW EXECUTE FUNCTION set_updated_at();`},
		}); err != nil {
			return err
		}
	}

	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")
		if err := exec(db, log, []step{
			{"chk_reservations_status_allowed", `
ALTER TABLE reservations DROP CONSTRAINT IF EXISTS chk_reservations_status_allowed;
ALTER TABLE reservations ADD CONSTRAINT chk_reservations_status_allowed
  CHECK (status IN ('initiated','reserved','confirmed','checked_in','completed','cancelled','expired'));`},
			{"chk_reservations_payment_status_allowed", `
ALTER TABLE reservations DROP CONSTRAINT IF EXISTS chk_reservations_payment_status_allowed;
ALTER TABLE reservations ADD CONSTRAINT chk_reservations_payment_status_allowed
  CHECK (payment_status IN ('pending','paid','success','failed','refunded'));`},
			{"chk_reservations_dates", `
ALTER TABLE reservations DROP CONSTRAINT IF EXISTS chk_reservations_dates;
ALTER TABLE reservations ADD CONSTRAINT chk_reservations_dates
  CHECK (check_out > check_in AND nights >= 1);`},
			{"chk_reservations_total", `
ALTER TABLE reservations DROP CONSTRAINT IF EXISTS chk_reservations_total;
ALTER TABLE reservations ADD CONSTRAINT chk_reservations_total
  CHECK (unit_price_cents >= 0 AND total_price_cents = unit_price_cents * nights);`},
			{"chk_reservations_currency_code_len", `
ALTER TABLE reservations DROP CONSTRAINT IF EXISTS chk_reservations_currency_code_len;
ALTER TABLE reservations ADD CONSTRAINT chk_reservations_currency_code_len
  CHECK (char_length(currency_code) = 3);`},
			{"chk_properties_price_non_negative", `
ALTER TABLE properties DROP CONSTRAINT IF EXISTS chk_properties_price_non_negative;
ALTER TABLE properties ADD CONSTRAINT chk_properties_price_non_negative CHECK (price_cents >= 0);`},
			{"chk_units_price_non_negative", `
ALTER TABLE units DROP CONSTRAINT IF EXISTS chk_units_price_non_negative;
ALTER TABLE units ADD CONSTRAINT chk_units_price_non_negative CHECK (price_cents >= 0);`},
			{"chk_refund_obligations_amount", `
ALTER TABLE refund_obligations DROP CONSTRAINT IF EXISTS chk_refund_obligations_amount;
ALTER TABLE refund_obligations ADD CONSTRAINT chk_refund_obligations_amount CHECK (amount_cents >= 0);`},
		}); err != nil {
			return err
		}
	}

	if opt.CreateIndexes {
		log.Info("Создание индексов")
		if err := exec(db, log, []step{
			// Поиск пересечений по юниту среди занимающих слот броней
			{"ix_reservations_unit_slot", `
CREATE INDEX IF NOT EXISTS ix_reservations_unit_slot
ON reservations (unit_id, check_in, check_out)
WHERE unit_id IS NOT NULL AND status IN ('reserved','confirmed','checked_in','completed');`},
			{"ix_reservations_property_slot", `
CREATE INDEX IF NOT EXISTS ix_reservations_property_slot
ON reservations (property_id, check_in, check_out)
WHERE unit_id IS NULL AND status IN ('reserved','confirmed','checked_in','completed');`},
			// Для свипера просроченных холдов
			{"ix_reservations_status_expires", `
CREATE INDEX IF NOT EXISTS ix_reservations_status_expires
ON reservations (status, expires_at);`},
			{"ix_reservations_property_created", `
CREATE INDEX IF NOT EXISTS ix_reservations_property_created
ON reservations (property_id, created_at DESC);`},
		}); err != nil {
			return err
		}
	}

	if opt.CreateFKsViaSQL {
		log.Info("Создание внешних ключей")
		if err := exec(db, log, []step{
			{"fk_units_property", `
ALTER TABLE units
  DROP CONSTRAINT IF EXISTS fk_units_property,
  ADD CONSTRAINT fk_units_property
    FOREIGN KEY (property_id) REFERENCES properties(id) ON DELETE RESTRICT;`},
			{"fk_reservations_property", `
ALTER TABLE reservations
  DROP CONSTRAINT IF EXISTS fk_reservations_property,
  ADD CONSTRAINT fk_reservations_property
    FOREIGN KEY (property_id) REFERENCES properties(id) ON DELETE RESTRICT;`},
			{"fk_reservations_unit", `
ALTER TABLE reservations
  DROP CONSTRAINT IF EXISTS fk_reservations_unit,
  ADD CONSTRAINT fk_reservations_unit
    FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE RESTRICT;`},
			{"fk_refund_obligations_reservation", `
ALTER TABLE refund_obligations
  DROP CONSTRAINT IF EXISTS fk_refund_obligations_reservation,
  ADD CONSTRAINT fk_refund_obligations_reservation
    FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE RESTRICT;`},
		}); err != nil {
			return err
		}
	}

	log.Info("Миграция базы данных бронирований успешно завершена")
	return nil
}
