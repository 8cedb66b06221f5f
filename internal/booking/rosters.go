package booking

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReplaceGuestRoster swaps the whole guest roster. Appointments keep their own copies.
func (s *Service) ReplaceGuestRoster(ctx context.Context, guests []Guest) error {
	rows := make([]Guest, 0, len(guests))
	for _, guest := range guests {
		rows = append(rows, Guest{Cabin: guest.Cabin, Name: guest.Name})
	}
	return s.replaceRoster(ctx, opReplaceGuests, TopicGuests, func(tx *gorm.DB) error {
		return replaceAll(tx, rows)
	})
}

// ReplacePhotographers swaps the whole photographer roster.
func (s *Service) ReplacePhotographers(ctx context.Context, names []string) error {
	rows := make([]Photographer, 0, len(names))
	for _, name := range names {
		rows = append(rows, Photographer{Name: name})
	}
	return s.replaceRoster(ctx, opReplacePhotographers, TopicPhotographers, func(tx *gorm.DB) error {
		return replaceAll(tx, rows)
	})
}

// ReplaceOccasions swaps the whole occasion roster.
func (s *Service) ReplaceOccasions(ctx context.Context, names []string) error {
	rows := make([]Occasion, 0, len(names))
	for _, name := range names {
		rows = append(rows, Occasion{Name: name})
	}
	return s.replaceRoster(ctx, opReplaceOccasions, TopicOccasions, func(tx *gorm.DB) error {
		return replaceAll(tx, rows)
	})
}

func (s *Service) replaceRoster(ctx context.Context, operation string, topic Topic, apply func(tx *gorm.DB) error) error {
	if s.db == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(operation, reasonMissingDatabase, errMissingDatabase)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.WithContext(ctx).Transaction(apply); err != nil {
		s.logError(operation, reasonReplaceFailed, err)
		return newServiceError(operation, reasonReplaceFailed, err)
	}

	s.publish(ctx, topic)
	return nil
}

// ApplyImport replaces only the sections that carry data; an empty section leaves
// the stored roster untouched.
func (s *Service) ApplyImport(ctx context.Context, batch ImportBatch) (ImportSummary, error) {
	var summary ImportSummary
	if len(batch.Guests) > 0 {
		if err := s.ReplaceGuestRoster(ctx, batch.Guests); err != nil {
			return summary, err
		}
		summary.GuestsReplaced = true
	}
	if len(batch.Photographers) > 0 {
		if err := s.ReplacePhotographers(ctx, batch.Photographers); err != nil {
			return summary, err
		}
		summary.PhotographersReplaced = true
	}
	if len(batch.Occasions) > 0 {
		if err := s.ReplaceOccasions(ctx, batch.Occasions); err != nil {
			return summary, err
		}
		summary.OccasionsReplaced = true
	}
	if len(batch.TimeSlots) > 0 {
		merged, err := s.ReplaceTimeSlots(ctx, batch.TimeSlots)
		if err != nil {
			return summary, err
		}
		summary.TimeSlotsMerged = true
		summary.TimeSlotCount = len(merged)
	}

	s.logger.Info("import applied",
		zap.Int("guests", len(batch.Guests)),
		zap.Int("photographers", len(batch.Photographers)),
		zap.Int("occasions", len(batch.Occasions)),
		zap.Int("time_slots", len(batch.TimeSlots)))
	return summary, nil
}

// WipeAll hard-deletes appointments, rosters and time slots.
func (s *Service) WipeAll(ctx context.Context) error {
	if s.db == nil {
		s.logError(opWipeAll, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opWipeAll, reasonMissingDatabase, errMissingDatabase)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{&Appointment{}, &Guest{}, &Photographer{}, &Occasion{}, &TimeSlot{}} {
			if err := global.Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		s.logError(opWipeAll, reasonReplaceFailed, txErr)
		return newServiceError(opWipeAll, reasonReplaceFailed, txErr)
	}

	s.logger.Warn("all booking data wiped")
	s.publish(ctx, Topics()...)
	return nil
}

// ListGuests returns the roster in insertion order.
func (s *Service) ListGuests(ctx context.Context) ([]Guest, error) {
	guests := make([]Guest, 0)
	if err := s.listRoster(ctx, &guests); err != nil {
		return nil, err
	}
	return guests, nil
}

// ListPhotographers returns the roster in insertion order.
func (s *Service) ListPhotographers(ctx context.Context) ([]Photographer, error) {
	photographers := make([]Photographer, 0)
	if err := s.listRoster(ctx, &photographers); err != nil {
		return nil, err
	}
	return photographers, nil
}

// ListOccasions returns the roster in insertion order.
func (s *Service) ListOccasions(ctx context.Context) ([]Occasion, error) {
	occasions := make([]Occasion, 0)
	if err := s.listRoster(ctx, &occasions); err != nil {
		return nil, err
	}
	return occasions, nil
}

func (s *Service) listRoster(ctx context.Context, dest any) error {
	if s.db == nil {
		s.logError(opListRoster, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opListRoster, reasonMissingDatabase, errMissingDatabase)
	}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(dest).Error; err != nil {
		s.logError(opListRoster, reasonQueryFailed, err)
		return newServiceError(opListRoster, reasonQueryFailed, err)
	}
	return nil
}

func replaceAll[T any](tx *gorm.DB, rows []T) error {
	if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(T)).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(&rows, defaultInsertBatchSize).Error
}
