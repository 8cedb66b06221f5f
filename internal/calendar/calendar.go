// Package calendar renders appointments as iCalendar events and QR codes.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/skip2/go-qrcode"
	"github.com/swappy/picora/internal/booking"
)

const (
	productID       = "-//com.swappy.picora//EN"
	uidDomain       = "picora.com"
	eventDuration   = 30 * time.Minute
	reminderTrigger = "-PT30M"
	// DefaultQRSize is the edge length in pixels used when no size is requested.
	DefaultQRSize = 512
)

// ErrInvalidQRSize indicates a non-positive QR image size.
var ErrInvalidQRSize = errors.New("calendar: qr size must be positive")

// EventUID returns the stable iCalendar UID of an appointment.
func EventUID(appointment booking.Appointment) string {
	return strconv.FormatInt(appointment.ID, 10) + "@" + uidDomain
}

// BuildICS returns a VCALENDAR with one 30 minute VEVENT and a display reminder
// 30 minutes before it starts. now stamps the event.
func BuildICS(appointment booking.Appointment, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)

	start := appointment.ScheduledAt().UTC()
	event := cal.AddEvent(EventUID(appointment))
	event.SetDtStampTime(now.UTC())
	event.SetStartAt(start)
	event.SetEndAt(start.Add(eventDuration))
	event.SetSummary("Photo Appointment with " + appointment.GuestName)
	event.SetLocation("Cabin: " + appointment.CabinNumber)
	event.SetDescription(fmt.Sprintf("Occasion: %s\nPhotographer: %s", appointment.Occasion, appointment.Photographer))

	alarm := event.AddAlarm()
	alarm.SetAction(ical.ActionDisplay)
	alarm.SetTrigger(reminderTrigger)
	alarm.SetProperty(ical.ComponentPropertyDescription, "Reminder")

	return cal.Serialize()
}

// QRCode encodes the appointment's iCalendar text as a PNG of size x size pixels.
func QRCode(appointment booking.Appointment, now time.Time, size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidQRSize
	}
	png, err := qrcode.Encode(BuildICS(appointment, now), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("calendar: encode qr: %w", err)
	}
	return png, nil
}
