package booking

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testClockInstant = time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:picora_booking_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return testClockInstant },
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("failed to construct booking service: %v", err)
	}
	return service, db
}

func appointmentAt(instant time.Time, cabin, guest string) Appointment {
	return Appointment{
		CabinNumber:    cabin,
		GuestName:      guest,
		Photographer:   "Marta",
		Occasion:       "Formal Night",
		DateTimeMillis: instant.UnixMilli(),
	}
}

func mustCreate(t *testing.T, service *Service, candidate Appointment) Appointment {
	t.Helper()
	outcome, err := service.CreateAppointment(t.Context(), candidate)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if outcome.Duplicate {
		t.Fatalf("unexpected duplicate for instant %d", candidate.DateTimeMillis)
	}
	return outcome.Appointment
}
