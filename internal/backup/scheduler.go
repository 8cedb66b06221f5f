// Package backup writes periodic appointment workbooks to disk.
//
// Exports run on a cron schedule and include soft-deleted appointments. A failed
// export is logged and the next tick tries again; it never stops the process.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/swappy/picora/internal/booking"
	"github.com/swappy/picora/internal/workbook"
	"go.uber.org/zap"
)

const fileTimestampLayout = "20060102-150405"

var (
	// ErrMissingSource indicates that no appointment source was configured.
	ErrMissingSource = errors.New("backup: appointment source is required")
	// ErrMissingDirectory indicates that no export directory was configured.
	ErrMissingDirectory = errors.New("backup: export directory is required")
)

// AppointmentSource lists every appointment, deleted ones included.
type AppointmentSource interface {
	ListAppointmentsIncludingDeleted(ctx context.Context) ([]booking.Appointment, error)
}

// Config describes an export schedule.
type Config struct {
	Schedule  string
	Directory string
	Source    AppointmentSource
	Location  *time.Location
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Scheduler runs workbook exports on a cron schedule.
type Scheduler struct {
	schedule  string
	directory string
	source    AppointmentSource
	location  *time.Location
	clock     func() time.Time
	logger    *zap.Logger
}

func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Source == nil {
		return nil, ErrMissingSource
	}
	if strings.TrimSpace(cfg.Directory) == "" {
		return nil, ErrMissingDirectory
	}
	schedule := strings.TrimSpace(cfg.Schedule)
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("backup: invalid schedule %q: %w", schedule, err)
		}
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		schedule:  schedule,
		directory: cfg.Directory,
		source:    cfg.Source,
		location:  location,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Enabled reports whether a schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.schedule != ""
}

// Run executes exports on the schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	runner := cron.New(cron.WithLocation(s.location))
	if _, err := runner.AddFunc(s.schedule, func() {
		if _, err := s.ExportNow(ctx); err != nil {
			s.logger.Error("scheduled export failed", zap.Error(err))
		}
	}); err != nil {
		s.logger.Error("export schedule rejected", zap.String("schedule", s.schedule), zap.Error(err))
		return
	}

	runner.Start()
	s.logger.Info("export scheduler started", zap.String("schedule", s.schedule), zap.String("directory", s.directory))
	<-ctx.Done()
	<-runner.Stop().Done()
	s.logger.Info("export scheduler stopped")
}

// ExportNow writes the current appointments to a timestamped workbook and returns its path.
func (s *Scheduler) ExportNow(ctx context.Context) (string, error) {
	appointments, err := s.source.ListAppointmentsIncludingDeleted(ctx)
	if err != nil {
		return "", fmt.Errorf("backup: list appointments: %w", err)
	}
	if err := os.MkdirAll(s.directory, 0o755); err != nil {
		return "", fmt.Errorf("backup: create directory: %w", err)
	}

	name := fmt.Sprintf("appointments-%s.xlsx", s.clock().In(s.location).Format(fileTimestampLayout))
	path := filepath.Join(s.directory, name)
	if err := WriteFile(path, appointments, s.location); err != nil {
		return "", err
	}

	s.logger.Info("appointments exported", zap.String("path", path), zap.Int("appointments", len(appointments)))
	return path, nil
}

// WriteFile writes an appointments workbook to path, removing it again on failure.
func WriteFile(path string, appointments []booking.Appointment, location *time.Location) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backup: create file: %w", err)
	}
	writeErr := workbook.WriteAppointments(file, appointments, location)
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(path)
		return fmt.Errorf("backup: write %s: %w", path, errors.Join(writeErr, closeErr))
	}
	return nil
}
