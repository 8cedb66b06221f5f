package booking

import (
	"testing"
	"time"
)

func TestApplyImportReplacesOnlyNonEmptySections(t *testing.T) {
	service, _ := newTestService(t)
	ctx := t.Context()

	if err := service.ReplaceGuestRoster(ctx, []Guest{{Cabin: "12", Name: "Alice"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.ReplacePhotographers(ctx, []string{"Marta"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary, err := service.ApplyImport(ctx, ImportBatch{
		Occasions: []string{"Formal Night", "Birthday"},
		TimeSlots: []TimeSlot{{Date: "15-01-2025", Time: "10:00 AM"}},
	})
	if err != nil {
		t.Fatalf("unexpected import error: %v", err)
	}
	if summary.GuestsReplaced || summary.PhotographersReplaced {
		t.Fatalf("empty sections must not replace rosters: %+v", summary)
	}
	if !summary.OccasionsReplaced || !summary.TimeSlotsMerged || summary.TimeSlotCount != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	guests, err := service.ListGuests(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(guests) != 1 || guests[0].Name != "Alice" {
		t.Fatalf("expected guest roster to survive, got %+v", guests)
	}
	photographers, err := service.ListPhotographers(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(photographers) != 1 {
		t.Fatalf("expected photographer roster to survive, got %+v", photographers)
	}
	occasions, err := service.ListOccasions(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(occasions) != 2 || occasions[0].Name != "Formal Night" || occasions[1].Name != "Birthday" {
		t.Fatalf("expected occasions in import order, got %+v", occasions)
	}
}

func TestReplaceGuestRosterLeavesAppointmentsUntouched(t *testing.T) {
	service, _ := newTestService(t)
	ctx := t.Context()

	booked := mustCreate(t, service, appointmentAt(time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC), "12", "Alice"))
	if err := service.ReplaceGuestRoster(ctx, []Guest{{Cabin: "99", Name: "Zed"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := service.GetAppointment(ctx, booked.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if stored.GuestName != "Alice" || stored.CabinNumber != "12" {
		t.Fatalf("expected denormalized guest copy to remain, got %+v", stored)
	}
}

func TestWipeAllRemovesEverySet(t *testing.T) {
	service, db := newTestService(t)
	ctx := t.Context()

	mustCreate(t, service, appointmentAt(time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC), "12", "Alice"))
	if _, err := service.ApplyImport(ctx, ImportBatch{
		Guests:        []Guest{{Cabin: "12", Name: "Alice"}},
		Photographers: []string{"Marta"},
		Occasions:     []string{"Birthday"},
		TimeSlots:     []TimeSlot{{Date: "15-01-2025", Time: "10:00 AM"}},
	}); err != nil {
		t.Fatalf("unexpected import error: %v", err)
	}
	if _, err := service.PortNames().Save(ctx, "15-01-2025", "nassau"); err != nil {
		t.Fatalf("unexpected port name error: %v", err)
	}

	if err := service.WipeAll(ctx); err != nil {
		t.Fatalf("unexpected wipe error: %v", err)
	}

	for _, model := range []any{&Appointment{}, &Guest{}, &Photographer{}, &Occasion{}, &TimeSlot{}} {
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("failed to count %T: %v", model, err)
		}
		if count != 0 {
			t.Fatalf("expected %T to be empty, got %d rows", model, count)
		}
	}

	portName, err := service.PortNames().Get(ctx, "15-01-2025")
	if err != nil {
		t.Fatalf("unexpected port name error: %v", err)
	}
	if portName != "Nassau" {
		t.Fatalf("expected port names to survive wipe, got %q", portName)
	}
}
