package server

import (
	"time"

	"github.com/swappy/picora/internal/booking"
)

type appointmentPayload struct {
	ID                int64   `json:"id"`
	AppointmentNumber int64   `json:"appointment_number"`
	CabinNumber       string  `json:"cabin_number"`
	GuestName         string  `json:"guest_name"`
	Photographer      string  `json:"photographer"`
	Occasion          string  `json:"occasion"`
	DateTime          int64   `json:"date_time"`
	CreationDate      int64   `json:"creation_date"`
	PhotoURI          *string `json:"photo_uri,omitempty"`
	Status            string  `json:"status"`
	Date              string  `json:"date"`
	Time              string  `json:"time"`
}

func newAppointmentPayload(appointment booking.Appointment, location *time.Location) appointmentPayload {
	scheduled := appointment.ScheduledAt().In(location)
	return appointmentPayload{
		ID:                appointment.ID,
		AppointmentNumber: appointment.AppointmentNumber,
		CabinNumber:       appointment.CabinNumber,
		GuestName:         appointment.GuestName,
		Photographer:      appointment.Photographer,
		Occasion:          appointment.Occasion,
		DateTime:          appointment.DateTimeMillis,
		CreationDate:      appointment.CreationDateMillis,
		PhotoURI:          appointment.PhotoURI,
		Status:            string(appointment.Status()),
		Date:              scheduled.Format(booking.SlotDateLayout),
		Time:              scheduled.Format(booking.SlotTimeLayout),
	}
}

func newAppointmentPayloads(appointments []booking.Appointment, location *time.Location) []appointmentPayload {
	payloads := make([]appointmentPayload, 0, len(appointments))
	for _, appointment := range appointments {
		payloads = append(payloads, newAppointmentPayload(appointment, location))
	}
	return payloads
}

// appointmentRequestPayload books either an explicit instant (date_time, epoch ms)
// or a slot given as date and time text.
type appointmentRequestPayload struct {
	CabinNumber  string `json:"cabin_number"`
	GuestName    string `json:"guest_name"`
	Photographer string `json:"photographer"`
	Occasion     string `json:"occasion"`
	DateTime     int64  `json:"date_time"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

func (p appointmentRequestPayload) hasSchedule() bool {
	return p.DateTime > 0 || (p.Date != "" && p.Time != "")
}

func (p appointmentRequestPayload) instant(location *time.Location) (int64, error) {
	if p.DateTime > 0 {
		return p.DateTime, nil
	}
	instant, err := booking.SlotInstant(booking.TimeSlot{Date: p.Date, Time: p.Time}, location)
	if err != nil {
		return 0, err
	}
	return instant.UnixMilli(), nil
}

type guestPayload struct {
	ID    int64  `json:"id"`
	Cabin string `json:"cabin"`
	Name  string `json:"name"`
}

type namedPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type timeSlotPayload struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func newGuestPayloads(guests []booking.Guest) []guestPayload {
	payloads := make([]guestPayload, 0, len(guests))
	for _, guest := range guests {
		payloads = append(payloads, guestPayload{ID: guest.ID, Cabin: guest.Cabin, Name: guest.Name})
	}
	return payloads
}

func newPhotographerPayloads(photographers []booking.Photographer) []namedPayload {
	payloads := make([]namedPayload, 0, len(photographers))
	for _, photographer := range photographers {
		payloads = append(payloads, namedPayload{ID: photographer.ID, Name: photographer.Name})
	}
	return payloads
}

func newOccasionPayloads(occasions []booking.Occasion) []namedPayload {
	payloads := make([]namedPayload, 0, len(occasions))
	for _, occasion := range occasions {
		payloads = append(payloads, namedPayload{ID: occasion.ID, Name: occasion.Name})
	}
	return payloads
}

func newTimeSlotPayloads(slots []booking.TimeSlot) []timeSlotPayload {
	payloads := make([]timeSlotPayload, 0, len(slots))
	for _, slot := range slots {
		payloads = append(payloads, timeSlotPayload{Date: slot.Date, Time: slot.Time})
	}
	return payloads
}

func timeSlotsFromPayloads(payloads []timeSlotPayload) []booking.TimeSlot {
	slots := make([]booking.TimeSlot, 0, len(payloads))
	for _, payload := range payloads {
		slots = append(slots, booking.TimeSlot{Date: payload.Date, Time: payload.Time})
	}
	return slots
}

type boardSlotPayload struct {
	Date        string              `json:"date"`
	Time        string              `json:"time"`
	Label       string              `json:"label"`
	Appointment *appointmentPayload `json:"appointment,omitempty"`
}

type boardDayPayload struct {
	Date     string             `json:"date"`
	PortName string             `json:"port_name"`
	Slots    []boardSlotPayload `json:"slots"`
}

func newBoardPayload(days []booking.BoardDay, location *time.Location) []boardDayPayload {
	payloads := make([]boardDayPayload, 0, len(days))
	for _, day := range days {
		slots := make([]boardSlotPayload, 0, len(day.Slots))
		for _, slot := range day.Slots {
			entry := boardSlotPayload{Date: slot.Slot.Date, Time: slot.Slot.Time, Label: slot.Label}
			if slot.Appointment != nil {
				appointment := newAppointmentPayload(*slot.Appointment, location)
				entry.Appointment = &appointment
			}
			slots = append(slots, entry)
		}
		payloads = append(payloads, boardDayPayload{Date: day.Date, PortName: day.PortName, Slots: slots})
	}
	return payloads
}

// snapshotBody renders the populated list of a snapshot.
func snapshotBody(snapshot booking.Snapshot, location *time.Location) any {
	switch snapshot.Topic {
	case booking.TopicAppointments, booking.TopicAppointmentsAll:
		return newAppointmentPayloads(snapshot.Appointments, location)
	case booking.TopicGuests:
		return newGuestPayloads(snapshot.Guests)
	case booking.TopicPhotographers:
		return newPhotographerPayloads(snapshot.Photographers)
	case booking.TopicOccasions:
		return newOccasionPayloads(snapshot.Occasions)
	case booking.TopicTimeSlots:
		return newTimeSlotPayloads(snapshot.TimeSlots)
	default:
		return []any{}
	}
}
