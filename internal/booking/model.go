package booking

import (
	"errors"
	"time"
)

var (
	// ErrAppointmentNotFound indicates that no appointment exists for the requested id.
	ErrAppointmentNotFound = errors.New("booking: appointment not found")
	// ErrInvalidTimeSlot indicates that a slot's date or time text could not be parsed.
	ErrInvalidTimeSlot = errors.New("booking: invalid time slot")
	// ErrInvalidSlotSeries indicates that a slot generation request is malformed.
	ErrInvalidSlotSeries = errors.New("booking: invalid slot series")
)

// Status is the tagged lifecycle state of an appointment.
type Status string

const (
	// StatusActive marks a bookable, visible appointment.
	StatusActive Status = "Active"
	// StatusDeleted marks a soft-deleted appointment retained for export history.
	StatusDeleted Status = "Deleted"
)

// Appointment is a confirmed booking of a guest, photographer and occasion at one instant.
// Guest, photographer and occasion are denormalized copies taken at booking time.
type Appointment struct {
	ID                 int64   `gorm:"column:id;primaryKey;autoIncrement"`
	AppointmentNumber  int64   `gorm:"column:appointment_number;not null;default:0"`
	CabinNumber        string  `gorm:"column:cabin_number;not null;default:''"`
	GuestName          string  `gorm:"column:guest_name;not null;default:''"`
	Photographer       string  `gorm:"column:photographer;not null;default:''"`
	Occasion           string  `gorm:"column:occasion;not null;default:''"`
	DateTimeMillis     int64   `gorm:"column:date_time;not null;index:idx_appointments_slot,priority:1"`
	CreationDateMillis int64   `gorm:"column:creation_date;not null;default:0"`
	PhotoURI           *string `gorm:"column:photo_uri"`
	IsDeleted          bool    `gorm:"column:is_deleted;not null;default:false;index:idx_appointments_slot,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Appointment) TableName() string {
	return "appointments"
}

// Status reports the tagged state derived from the soft-delete flag.
func (a Appointment) Status() Status {
	if a.IsDeleted {
		return StatusDeleted
	}
	return StatusActive
}

// ScheduledAt returns the booked instant.
func (a Appointment) ScheduledAt() time.Time {
	return time.UnixMilli(a.DateTimeMillis)
}

// CreatedAt returns the instant the booking was made.
func (a Appointment) CreatedAt() time.Time {
	return time.UnixMilli(a.CreationDateMillis)
}

// Guest is a roster entry.
type Guest struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Cabin string `gorm:"column:cabin;not null"`
	Name  string `gorm:"column:name;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Guest) TableName() string {
	return "guests"
}

// Photographer is a roster entry.
type Photographer struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Photographer) TableName() string {
	return "photographers"
}

// Occasion is a roster entry.
type Occasion struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Occasion) TableName() string {
	return "occasions"
}

// TimeSlot is a bookable (date, time) pair kept in its display form.
type TimeSlot struct {
	Date string `gorm:"column:date;primaryKey;size:32"`
	Time string `gorm:"column:time;primaryKey;size:32"`
}

// TableName provides the explicit table binding for GORM.
func (TimeSlot) TableName() string {
	return "time_slots"
}

func (slot TimeSlot) key() string {
	return slot.Date + "\x00" + slot.Time
}

// PortName is the free-text port label stored per slot date.
type PortName struct {
	Date string `gorm:"column:date;primaryKey;size:32"`
	Name string `gorm:"column:name;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (PortName) TableName() string {
	return "port_names"
}

// Models lists every persisted record type, in migration order.
func Models() []any {
	return []any{&Appointment{}, &Guest{}, &Photographer{}, &Occasion{}, &TimeSlot{}, &PortName{}}
}

// BookingOutcome reports the result of a create or update.
// Duplicate is set when another active appointment already holds the instant; nothing is written then.
type BookingOutcome struct {
	Appointment Appointment
	Duplicate   bool
}

// ImportBatch carries normalized reference data produced by a workbook import.
type ImportBatch struct {
	Guests        []Guest
	Photographers []string
	Occasions     []string
	TimeSlots     []TimeSlot
}

// ImportSummary reports which sections an import replaced.
type ImportSummary struct {
	GuestsReplaced        bool
	PhotographersReplaced bool
	OccasionsReplaced     bool
	TimeSlotsMerged       bool
	TimeSlotCount         int
}
