package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew             = "booking.service.new"
	opCreateAppointment      = "booking.create_appointment"
	opUpdateAppointment      = "booking.update_appointment"
	opSoftDelete             = "booking.soft_delete"
	opAttachPhoto            = "booking.attach_photo"
	opClearAllAppointments   = "booking.clear_all_appointments"
	opGetAppointment         = "booking.get_appointment"
	opListAppointments       = "booking.list_appointments"
	opReplaceGuests          = "booking.replace_guests"
	opReplacePhotographers   = "booking.replace_photographers"
	opReplaceOccasions       = "booking.replace_occasions"
	opReplaceTimeSlots       = "booking.replace_time_slots"
	opListRoster             = "booking.list_roster"
	opWipeAll                = "booking.wipe_all"
	opBoard                  = "booking.board"
	opSnapshot               = "booking.snapshot"
	reasonMissingDatabase    = "missing_database"
	reasonLookupFailed       = "lookup_failed"
	reasonSequenceFailed     = "sequence_failed"
	reasonInsertFailed       = "insert_failed"
	reasonSaveFailed         = "save_failed"
	reasonNotFound           = "not_found"
	reasonQueryFailed        = "query_failed"
	reasonReplaceFailed      = "replace_failed"
	reasonInvalidSlot        = "invalid_slot"
	queryActiveAtInstant     = "date_time = ? AND is_deleted = ?"
	orderDateTimeDesc        = "date_time DESC"
	defaultInsertBatchSize   = 200
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the booking coordinator.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Location *time.Location
	Logger   *zap.Logger
	Feed     *Feed
}

// Service mediates every mutation of appointments, rosters and time slots.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	location  *time.Location
	logger    *zap.Logger
	feed      *Feed
	portNames *PortNames

	// writeMu serializes mutations with their feed notifications.
	writeMu sync.Mutex
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	feed := cfg.Feed
	if feed == nil {
		feed = NewFeed()
	}

	return &Service{
		db:        cfg.Database,
		clock:     clock,
		location:  location,
		logger:    logger,
		feed:      feed,
		portNames: &PortNames{db: cfg.Database},
	}, nil
}

// Location returns the zone used to interpret slot text.
func (s *Service) Location() *time.Location {
	return s.location
}

// PortNames returns the per-date port label store sharing this service's database.
func (s *Service) PortNames() *PortNames {
	return s.portNames
}

// CreateAppointment books candidate at its DateTimeMillis.
// The duplicate check, the sequence lookup and the insert share one transaction.
func (s *Service) CreateAppointment(ctx context.Context, candidate Appointment) (BookingOutcome, error) {
	if s.db == nil {
		s.logError(opCreateAppointment, reasonMissingDatabase, errMissingDatabase)
		return BookingOutcome{}, newServiceError(opCreateAppointment, reasonMissingDatabase, errMissingDatabase)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var outcome BookingOutcome
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, found, err := findActiveAt(tx, candidate.DateTimeMillis, 0)
		if err != nil {
			s.logError(opCreateAppointment, reasonLookupFailed, err, zap.Int64("date_time", candidate.DateTimeMillis))
			return newServiceError(opCreateAppointment, reasonLookupFailed, err)
		}
		if found {
			outcome = BookingOutcome{Appointment: existing, Duplicate: true}
			return nil
		}

		var maxNumber int64
		if err := tx.Model(&Appointment{}).
			Select("COALESCE(MAX(appointment_number), 0)").
			Row().
			Scan(&maxNumber); err != nil {
			s.logError(opCreateAppointment, reasonSequenceFailed, err)
			return newServiceError(opCreateAppointment, reasonSequenceFailed, err)
		}

		record := candidate
		record.ID = 0
		record.AppointmentNumber = maxNumber + 1
		record.IsDeleted = false
		if record.CreationDateMillis == 0 {
			record.CreationDateMillis = s.clock().UnixMilli()
		}
		if err := tx.Create(&record).Error; err != nil {
			s.logError(opCreateAppointment, reasonInsertFailed, err, zap.Int64("date_time", candidate.DateTimeMillis))
			return newServiceError(opCreateAppointment, reasonInsertFailed, err)
		}
		outcome = BookingOutcome{Appointment: record}
		return nil
	})
	if txErr != nil {
		return BookingOutcome{}, txErr
	}

	if outcome.Duplicate {
		s.logger.Info("duplicate booking rejected",
			zap.Int64("date_time", candidate.DateTimeMillis),
			zap.Int64("existing_id", outcome.Appointment.ID))
		return outcome, nil
	}

	s.publish(ctx, TopicAppointments, TopicAppointmentsAll)
	return outcome, nil
}

// CreateAppointmentForSlot books the instant described by slot, interpreted in the service location.
func (s *Service) CreateAppointmentForSlot(ctx context.Context, slot TimeSlot, candidate Appointment) (BookingOutcome, error) {
	instant, err := SlotInstant(slot, s.location)
	if err != nil {
		return BookingOutcome{}, newServiceError(opCreateAppointment, reasonInvalidSlot, err)
	}
	candidate.DateTimeMillis = instant.UnixMilli()
	return s.CreateAppointment(ctx, candidate)
}

// UpdateAppointment replaces the stored record with the same id.
// The sequence number and creation date are kept from the stored row. Active records are
// re-checked against other active appointments at the same instant.
func (s *Service) UpdateAppointment(ctx context.Context, record Appointment) (BookingOutcome, error) {
	if s.db == nil {
		s.logError(opUpdateAppointment, reasonMissingDatabase, errMissingDatabase)
		return BookingOutcome{}, newServiceError(opUpdateAppointment, reasonMissingDatabase, errMissingDatabase)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var outcome BookingOutcome
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored Appointment
		err := tx.Where("id = ?", record.ID).Take(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opUpdateAppointment, reasonNotFound, ErrAppointmentNotFound)
		}
		if err != nil {
			s.logError(opUpdateAppointment, reasonLookupFailed, err, zap.Int64("appointment_id", record.ID))
			return newServiceError(opUpdateAppointment, reasonLookupFailed, err)
		}

		if !record.IsDeleted {
			existing, found, err := findActiveAt(tx, record.DateTimeMillis, record.ID)
			if err != nil {
				s.logError(opUpdateAppointment, reasonLookupFailed, err, zap.Int64("appointment_id", record.ID))
				return newServiceError(opUpdateAppointment, reasonLookupFailed, err)
			}
			if found {
				outcome = BookingOutcome{Appointment: existing, Duplicate: true}
				return nil
			}
		}

		updated := record
		updated.AppointmentNumber = stored.AppointmentNumber
		updated.CreationDateMillis = stored.CreationDateMillis
		if err := tx.Save(&updated).Error; err != nil {
			s.logError(opUpdateAppointment, reasonSaveFailed, err, zap.Int64("appointment_id", record.ID))
			return newServiceError(opUpdateAppointment, reasonSaveFailed, err)
		}
		outcome = BookingOutcome{Appointment: updated}
		return nil
	})
	if txErr != nil {
		return BookingOutcome{}, txErr
	}
	if outcome.Duplicate {
		return outcome, nil
	}

	s.publish(ctx, TopicAppointments, TopicAppointmentsAll)
	return outcome, nil
}

// SoftDelete marks the appointment deleted while keeping it for export history.
func (s *Service) SoftDelete(ctx context.Context, appointmentID int64) error {
	return s.updateColumn(ctx, opSoftDelete, appointmentID, "is_deleted", true)
}

// AttachPhoto records the photo reference of an appointment.
func (s *Service) AttachPhoto(ctx context.Context, appointmentID int64, uri string) error {
	return s.updateColumn(ctx, opAttachPhoto, appointmentID, "photo_uri", uri)
}

func (s *Service) updateColumn(ctx context.Context, operation string, appointmentID int64, column string, value any) error {
	if s.db == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(operation, reasonMissingDatabase, errMissingDatabase)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("id = ?", appointmentID).
		Update(column, value)
	if result.Error != nil {
		s.logError(operation, reasonSaveFailed, result.Error, zap.Int64("appointment_id", appointmentID))
		return newServiceError(operation, reasonSaveFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(operation, reasonNotFound, ErrAppointmentNotFound)
	}

	s.publish(ctx, TopicAppointments, TopicAppointmentsAll)
	return nil
}

// ClearAllAppointments soft-deletes every appointment in one statement.
func (s *Service) ClearAllAppointments(ctx context.Context) error {
	if s.db == nil {
		s.logError(opClearAllAppointments, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opClearAllAppointments, reasonMissingDatabase, errMissingDatabase)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("is_deleted = ?", false).
		Update("is_deleted", true).Error; err != nil {
		s.logError(opClearAllAppointments, reasonSaveFailed, err)
		return newServiceError(opClearAllAppointments, reasonSaveFailed, err)
	}

	s.publish(ctx, TopicAppointments, TopicAppointmentsAll)
	return nil
}

// GetAppointment loads one appointment, deleted or not.
func (s *Service) GetAppointment(ctx context.Context, appointmentID int64) (Appointment, error) {
	if s.db == nil {
		s.logError(opGetAppointment, reasonMissingDatabase, errMissingDatabase)
		return Appointment{}, newServiceError(opGetAppointment, reasonMissingDatabase, errMissingDatabase)
	}
	var appointment Appointment
	err := s.db.WithContext(ctx).Where("id = ?", appointmentID).Take(&appointment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Appointment{}, newServiceError(opGetAppointment, reasonNotFound, ErrAppointmentNotFound)
	}
	if err != nil {
		s.logError(opGetAppointment, reasonQueryFailed, err, zap.Int64("appointment_id", appointmentID))
		return Appointment{}, newServiceError(opGetAppointment, reasonQueryFailed, err)
	}
	return appointment, nil
}

// ListAppointments returns active appointments, latest instant first.
func (s *Service) ListAppointments(ctx context.Context) ([]Appointment, error) {
	return s.listAppointments(ctx, false)
}

// ListAppointmentsIncludingDeleted returns every appointment, latest instant first.
func (s *Service) ListAppointmentsIncludingDeleted(ctx context.Context) ([]Appointment, error) {
	return s.listAppointments(ctx, true)
}

func (s *Service) listAppointments(ctx context.Context, includeDeleted bool) ([]Appointment, error) {
	if s.db == nil {
		s.logError(opListAppointments, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListAppointments, reasonMissingDatabase, errMissingDatabase)
	}

	query := s.db.WithContext(ctx).Order(orderDateTimeDesc)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	appointments := make([]Appointment, 0)
	if err := query.Find(&appointments).Error; err != nil {
		s.logError(opListAppointments, reasonQueryFailed, err, zap.Bool("include_deleted", includeDeleted))
		return nil, newServiceError(opListAppointments, reasonQueryFailed, err)
	}
	return appointments, nil
}

func findActiveAt(tx *gorm.DB, dateTimeMillis int64, excludeID int64) (Appointment, bool, error) {
	query := tx.Where(queryActiveAtInstant, dateTimeMillis, false)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var matches []Appointment
	if err := query.Limit(1).Find(&matches).Error; err != nil {
		return Appointment{}, false, err
	}
	if len(matches) == 0 {
		return Appointment{}, false, nil
	}
	return matches[0], true, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("booking service error", attrs...)
}
