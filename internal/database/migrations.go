package database

import (
	"errors"
	"time"

	"github.com/swappy/picora/internal/booking"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillAppointmentNumbers = "2025-01-12_backfill_appointment_numbers"
	migrationBackfillCreationDates      = "2025-01-12_backfill_creation_dates"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillAppointmentNumbers, apply: backfillAppointmentNumbers},
		{name: migrationBackfillCreationDates, apply: backfillCreationDates},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillAppointmentNumbers numbers rows stored before appointment numbers existed,
// continuing after the highest number already assigned, in insertion order.
func backfillAppointmentNumbers(tx *gorm.DB) error {
	var highest int64
	if err := tx.Model(&booking.Appointment{}).
		Select("COALESCE(MAX(appointment_number), 0)").
		Scan(&highest).Error; err != nil {
		return err
	}

	var ids []int64
	if err := tx.Model(&booking.Appointment{}).
		Where("appointment_number = 0").
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return err
	}

	for _, id := range ids {
		highest++
		if err := tx.Model(&booking.Appointment{}).
			Where("id = ?", id).
			Update("appointment_number", highest).Error; err != nil {
			return err
		}
	}
	return nil
}

// backfillCreationDates uses the scheduled instant when no creation date was recorded.
func backfillCreationDates(tx *gorm.DB) error {
	return tx.Model(&booking.Appointment{}).
		Where("creation_date = 0").
		Update("creation_date", gorm.Expr("date_time")).Error
}
