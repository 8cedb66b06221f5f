package booking

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SortOrder selects how an appointment list is presented.
type SortOrder string

const (
	// SortDefault lists upcoming appointments soonest first, then past ones latest first.
	SortDefault SortOrder = "default"
	// SortCabin orders by cabin number text.
	SortCabin SortOrder = "cabin"
	// SortCreated lists the most recently booked first.
	SortCreated SortOrder = "created"
	// SortDate orders by appointment instant.
	SortDate SortOrder = "date"
)

// ParseSortOrder maps raw input onto a sort order, falling back to SortDefault.
func ParseSortOrder(value string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(value))) {
	case SortCabin:
		return SortCabin
	case SortCreated:
		return SortCreated
	case SortDate:
		return SortDate
	default:
		return SortDefault
	}
}

// SortAppointments returns a sorted copy of appointments.
func SortAppointments(appointments []Appointment, order SortOrder, now time.Time) []Appointment {
	sorted := append([]Appointment(nil), appointments...)
	switch order {
	case SortCabin:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CabinNumber < sorted[j].CabinNumber })
	case SortCreated:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreationDateMillis > sorted[j].CreationDateMillis })
	case SortDate:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DateTimeMillis < sorted[j].DateTimeMillis })
	default:
		nowMillis := now.UnixMilli()
		upcoming := make([]Appointment, 0, len(sorted))
		past := make([]Appointment, 0, len(sorted))
		for _, appointment := range sorted {
			if appointment.DateTimeMillis >= nowMillis {
				upcoming = append(upcoming, appointment)
			} else {
				past = append(past, appointment)
			}
		}
		sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].DateTimeMillis < upcoming[j].DateTimeMillis })
		sort.SliceStable(past, func(i, j int) bool { return past[i].DateTimeMillis > past[j].DateTimeMillis })
		sorted = append(upcoming, past...)
	}
	return sorted
}

// FilterAppointments keeps appointments whose cabin or guest contains query, ignoring case.
func FilterAppointments(appointments []Appointment, query string) []Appointment {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return appointments
	}
	filtered := make([]Appointment, 0, len(appointments))
	for _, appointment := range appointments {
		if strings.Contains(strings.ToLower(appointment.CabinNumber), needle) ||
			strings.Contains(strings.ToLower(appointment.GuestName), needle) {
			filtered = append(filtered, appointment)
		}
	}
	return filtered
}

// BoardSlot is one slot on the booking board, with its booking when taken.
type BoardSlot struct {
	Slot        TimeSlot
	Label       string
	Appointment *Appointment
}

// BoardDay groups the slots of one date.
type BoardDay struct {
	Date     string
	PortName string
	Slots    []BoardSlot
}

// Board groups the stored slots by date and marks the ones an active appointment occupies.
func (s *Service) Board(ctx context.Context) ([]BoardDay, error) {
	slots, err := s.ListTimeSlots(ctx)
	if err != nil {
		return nil, err
	}
	appointments, err := s.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}

	booked := make(map[string]Appointment, len(appointments))
	for _, appointment := range appointments {
		booked[SlotKey(appointment.ScheduledAt(), s.location)] = appointment
	}

	days := make([]BoardDay, 0)
	index := make(map[string]int)
	for _, slot := range slots {
		position, ok := index[slot.Date]
		if !ok {
			portName, err := s.portNames.Get(ctx, slot.Date)
			if err != nil {
				s.logError(opBoard, reasonQueryFailed, err, zap.String("date", slot.Date))
				return nil, newServiceError(opBoard, reasonQueryFailed, err)
			}
			days = append(days, BoardDay{Date: slot.Date, PortName: portName})
			position = len(days) - 1
			index[slot.Date] = position
		}

		entry := BoardSlot{Slot: slot, Label: slot.Time}
		if instant, err := SlotInstant(slot, s.location); err == nil {
			entry.Label = instant.Format(SlotTimeLayout)
			if appointment, ok := booked[SlotKey(instant, s.location)]; ok {
				match := appointment
				entry.Appointment = &match
			}
		}
		days[position].Slots = append(days[position].Slots, entry)
	}
	return days, nil
}
