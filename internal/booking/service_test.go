package booking

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCreateAppointmentNumbersSequentiallyAcrossSoftDeletes(t *testing.T) {
	service, _ := newTestService(t)
	ctx := t.Context()
	base := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	first := mustCreate(t, service, appointmentAt(base, "101", "Alice"))
	second := mustCreate(t, service, appointmentAt(base.Add(30*time.Minute), "102", "Bob"))
	if err := service.SoftDelete(ctx, second.ID); err != nil {
		t.Fatalf("unexpected soft delete error: %v", err)
	}
	third := mustCreate(t, service, appointmentAt(base.Add(time.Hour), "103", "Carol"))
	if err := service.SoftDelete(ctx, third.ID); err != nil {
		t.Fatalf("unexpected soft delete error: %v", err)
	}
	fourth := mustCreate(t, service, appointmentAt(base.Add(90*time.Minute), "104", "Dan"))

	numbers := []int64{first.AppointmentNumber, second.AppointmentNumber, third.AppointmentNumber, fourth.AppointmentNumber}
	for index, number := range numbers {
		if number != int64(index+1) {
			t.Fatalf("expected appointment number %d at position %d, got %v", index+1, index, numbers)
		}
	}

	all, err := service.ListAppointmentsIncludingDeleted(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	for _, appointment := range all {
		if appointment.ID == second.ID && appointment.AppointmentNumber != 2 {
			t.Fatalf("deleted appointment lost its number: %+v", appointment)
		}
	}
	if first.CreationDateMillis != testClockInstant.UnixMilli() {
		t.Fatalf("expected creation date from clock, got %d", first.CreationDateMillis)
	}
}

func TestCreateAppointmentSignalsDuplicateAtSameInstant(t *testing.T) {
	service, db := newTestService(t)
	ctx := t.Context()
	instant := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	original := mustCreate(t, service, appointmentAt(instant, "101", "Alice"))

	outcome, err := service.CreateAppointment(ctx, appointmentAt(instant, "202", "Bob"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Duplicate {
		t.Fatalf("expected duplicate signal")
	}
	if outcome.Appointment.ID != original.ID {
		t.Fatalf("expected duplicate to report the existing booking, got %+v", outcome.Appointment)
	}

	var count int64
	if err := db.Model(&Appointment{}).Where("is_deleted = ?", false).Count(&count).Error; err != nil {
		t.Fatalf("failed to count appointments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one active appointment, got %d", count)
	}

	if err := service.SoftDelete(ctx, original.ID); err != nil {
		t.Fatalf("unexpected soft delete error: %v", err)
	}
	rebooked := mustCreate(t, service, appointmentAt(instant, "202", "Bob"))
	if rebooked.AppointmentNumber != 2 {
		t.Fatalf("expected rebooked slot to take number 2, got %d", rebooked.AppointmentNumber)
	}
}

func TestCreateAppointmentIsAtomicUnderConcurrentCalls(t *testing.T) {
	service, db := newTestService(t)
	ctx := t.Context()
	shared := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	const sharedCount, distinctCount = 21, 19
	candidates := make([]Appointment, 0, sharedCount+distinctCount)
	for index := 0; index < sharedCount; index++ {
		candidates = append(candidates, appointmentAt(shared, "101", "Shared"))
	}
	for index := 0; index < distinctCount; index++ {
		candidates = append(candidates, appointmentAt(shared.Add(time.Duration(index+1)*30*time.Minute), "202", "Distinct"))
	}

	outcomes := make([]BookingOutcome, len(candidates))
	errs := make([]error, len(candidates))
	var wg sync.WaitGroup
	for index, candidate := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[index], errs[index] = service.CreateAppointment(ctx, candidate)
		}()
	}
	wg.Wait()

	duplicates := 0
	numbers := make(map[int64]bool)
	for index, outcome := range outcomes {
		if errs[index] != nil {
			t.Fatalf("unexpected create error: %v", errs[index])
		}
		if outcome.Duplicate {
			duplicates++
			if outcome.Appointment.DateTimeMillis != shared.UnixMilli() {
				t.Fatalf("unexpected duplicate for distinct instant %+v", outcome.Appointment)
			}
			continue
		}
		if numbers[outcome.Appointment.AppointmentNumber] {
			t.Fatalf("appointment number %d assigned twice", outcome.Appointment.AppointmentNumber)
		}
		numbers[outcome.Appointment.AppointmentNumber] = true
	}

	if duplicates != sharedCount-1 {
		t.Fatalf("expected %d duplicates, got %d", sharedCount-1, duplicates)
	}
	created := distinctCount + 1
	if len(numbers) != created {
		t.Fatalf("expected %d created appointments, got %d", created, len(numbers))
	}
	for number := int64(1); number <= int64(created); number++ {
		if !numbers[number] {
			t.Fatalf("expected contiguous numbers 1..%d, missing %d", created, number)
		}
	}

	var sharedActive int64
	if err := db.Model(&Appointment{}).Where("date_time = ? AND is_deleted = ?", shared.UnixMilli(), false).Count(&sharedActive).Error; err != nil {
		t.Fatalf("failed to count appointments: %v", err)
	}
	if sharedActive != 1 {
		t.Fatalf("expected one active appointment at the shared instant, got %d", sharedActive)
	}
}

func TestCreateAppointmentForSlotParsesDisplayForm(t *testing.T) {
	service, _ := newTestService(t)

	outcome, err := service.CreateAppointmentForSlot(t.Context(), TimeSlot{Date: "15-01-2025", Time: "02:30 pm"}, Appointment{GuestName: "Alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := time.Date(2025, time.January, 15, 14, 30, 0, 0, time.UTC)
	if !outcome.Appointment.ScheduledAt().Equal(expected) {
		t.Fatalf("expected %s, got %s", expected, outcome.Appointment.ScheduledAt())
	}

	_, err = service.CreateAppointmentForSlot(t.Context(), TimeSlot{Date: "someday", Time: "02:30 PM"}, Appointment{})
	if !errors.Is(err, ErrInvalidTimeSlot) {
		t.Fatalf("expected invalid slot error, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "booking.create_appointment.invalid_slot" {
		t.Fatalf("unexpected service error: %v", err)
	}
}

func TestUpdateAppointmentRevalidatesSlotAndKeepsSequence(t *testing.T) {
	service, _ := newTestService(t)
	ctx := t.Context()
	base := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	first := mustCreate(t, service, appointmentAt(base, "101", "Alice"))
	second := mustCreate(t, service, appointmentAt(base.Add(time.Hour), "102", "Bob"))

	moved := second
	moved.DateTimeMillis = first.DateTimeMillis
	outcome, err := service.UpdateAppointment(ctx, moved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Duplicate || outcome.Appointment.ID != first.ID {
		t.Fatalf("expected conflict with first appointment, got %+v", outcome)
	}

	edited := second
	edited.GuestName = "Robert"
	edited.AppointmentNumber = 99
	edited.CreationDateMillis = 1
	outcome, err = service.UpdateAppointment(ctx, edited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Duplicate {
		t.Fatalf("expected update to apply")
	}
	stored, err := service.GetAppointment(ctx, second.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if stored.GuestName != "Robert" {
		t.Fatalf("expected guest name to update, got %q", stored.GuestName)
	}
	if stored.AppointmentNumber != second.AppointmentNumber || stored.CreationDateMillis != second.CreationDateMillis {
		t.Fatalf("expected sequence and creation date to be preserved, got %+v", stored)
	}

	_, err = service.UpdateAppointment(ctx, Appointment{ID: 4242, DateTimeMillis: 1})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestClearAllAppointmentsKeepsHistory(t *testing.T) {
	service, _ := newTestService(t)
	ctx := t.Context()
	base := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)
	cabins := []string{"101", "102", "103"}
	for index, guest := range []string{"Alice", "Bob", "Carol"} {
		mustCreate(t, service, appointmentAt(base.Add(time.Duration(index)*time.Hour), cabins[index], guest))
	}

	if err := service.ClearAllAppointments(ctx); err != nil {
		t.Fatalf("unexpected clear error: %v", err)
	}

	active, err := service.ListAppointments(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active appointments, got %d", len(active))
	}

	all, err := service.ListAppointmentsIncludingDeleted(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 retained appointments, got %d", len(all))
	}
	for _, appointment := range all {
		if !appointment.IsDeleted || appointment.Status() != StatusDeleted {
			t.Fatalf("expected deleted appointment, got %+v", appointment)
		}
	}
	if all[0].DateTimeMillis < all[2].DateTimeMillis {
		t.Fatalf("expected latest instant first")
	}
}

func TestSoftDeleteAndAttachPhotoReportMissingAppointment(t *testing.T) {
	service, _ := newTestService(t)
	ctx := t.Context()

	if err := service.SoftDelete(ctx, 77); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if err := service.AttachPhoto(ctx, 77, "file:///tmp/x.jpg"); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}

	created := mustCreate(t, service, appointmentAt(time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC), "101", "Alice"))
	if err := service.AttachPhoto(ctx, created.ID, "file:///photos/1.jpg"); err != nil {
		t.Fatalf("unexpected attach error: %v", err)
	}
	stored, err := service.GetAppointment(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if stored.PhotoURI == nil || *stored.PhotoURI != "file:///photos/1.jpg" {
		t.Fatalf("expected photo uri to be stored, got %v", stored.PhotoURI)
	}
}

func TestNewServiceRequiresDatabase(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if serviceErr.Code() != "booking.service.new.missing_database" {
		t.Fatalf("unexpected code %s", serviceErr.Code())
	}
}
