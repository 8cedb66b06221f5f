package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/swappy/picora/internal/booking"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsLegacyAppointments(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	models := append(booking.Models(), &migrationRecord{})
	if err := database.AutoMigrate(models...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := []booking.Appointment{
		{AppointmentNumber: 4, CabinNumber: "1", GuestName: "Numbered", DateTimeMillis: 1000, CreationDateMillis: 900},
		{CabinNumber: "2", GuestName: "First legacy", DateTimeMillis: 2000},
		{CabinNumber: "3", GuestName: "Second legacy", DateTimeMillis: 3000, IsDeleted: true},
	}
	for index := range legacy {
		if err := database.Create(&legacy[index]).Error; err != nil {
			testContext.Fatalf("failed to insert appointment: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored []booking.Appointment
	if err := database.Order("id ASC").Find(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload appointments: %v", err)
	}
	wantNumbers := []int64{4, 5, 6}
	wantCreation := []int64{900, 2000, 3000}
	for index, appointment := range stored {
		if appointment.AppointmentNumber != wantNumbers[index] {
			testContext.Fatalf("appointment %d: expected number %d, got %d", appointment.ID, wantNumbers[index], appointment.AppointmentNumber)
		}
		if appointment.CreationDateMillis != wantCreation[index] {
			testContext.Fatalf("appointment %d: expected creation %d, got %d", appointment.ID, wantCreation[index], appointment.CreationDateMillis)
		}
	}

	var records []migrationRecord
	if err := database.Find(&records).Error; err != nil {
		testContext.Fatalf("failed to load migration records: %v", err)
	}
	if len(records) != 2 {
		testContext.Fatalf("expected two migration records, got %d", len(records))
	}
	for _, record := range records {
		if record.AppliedAtSeconds == 0 {
			testContext.Fatalf("expected migration timestamp to be set for %s", record.Name)
		}
	}
}

func TestApplyMigrationsRunsOnce(testContext *testing.T) {
	database, err := OpenSQLite(filepath.Join(testContext.TempDir(), "once.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	late := booking.Appointment{CabinNumber: "9", GuestName: "After migration", DateTimeMillis: 5000}
	if err := database.Create(&late).Error; err != nil {
		testContext.Fatalf("failed to insert appointment: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to reapply migrations: %v", err)
	}

	var stored booking.Appointment
	if err := database.Take(&stored, late.ID).Error; err != nil {
		testContext.Fatalf("failed to reload appointment: %v", err)
	}
	if stored.AppointmentNumber != 0 {
		testContext.Fatalf("expected recorded migrations to be skipped, got number %d", stored.AppointmentNumber)
	}
}
