// Package photos keeps appointment photo attachments on the local disk.
package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrMissingDirectory indicates that no photo directory was configured.
	ErrMissingDirectory = errors.New("photos: directory is required")
	// ErrForeignURI indicates a URI that does not point into the store.
	ErrForeignURI = errors.New("photos: uri is outside the store")
)

// IDProvider issues unique file name suffixes.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	Directory  string
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store copies photos into one directory and addresses them by file:// URI.
type Store struct {
	directory  string
	idProvider IDProvider
	logger     *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Directory) == "" {
		return nil, ErrMissingDirectory
	}
	directory, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("photos: resolve directory: %w", err)
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("photos: create directory: %w", err)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{directory: directory, idProvider: idProvider, logger: logger}, nil
}

// Save copies source into the store as <appointmentID>-<id>.jpg and returns its URI.
// A partially written file is removed.
func (s *Store) Save(ctx context.Context, appointmentID int64, source io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	suffix, err := s.idProvider.NewID()
	if err != nil {
		return "", fmt.Errorf("photos: new id: %w", err)
	}
	path := filepath.Join(s.directory, fmt.Sprintf("%d-%s.jpg", appointmentID, suffix))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("photos: create file: %w", err)
	}
	written, copyErr := io.Copy(file, source)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			s.logger.Warn("photo cleanup failed", zap.String("path", path), zap.Error(removeErr))
		}
		return "", fmt.Errorf("photos: write file: %w", errors.Join(copyErr, closeErr))
	}

	s.logger.Info("photo stored",
		zap.Int64("appointment_id", appointmentID),
		zap.String("path", path),
		zap.Int64("bytes", written))
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// Open returns the stored photo addressed by uri.
func (s *Store) Open(uri string) (*os.File, error) {
	path, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *Store) resolve(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrForeignURI, err)
	}
	if parsed.Scheme != "file" {
		return "", ErrForeignURI
	}
	path := filepath.Clean(filepath.FromSlash(parsed.Path))
	if filepath.Dir(path) != s.directory {
		return "", ErrForeignURI
	}
	return path, nil
}
