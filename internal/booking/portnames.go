package booking

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PortNames stores the free-text port label shown for each slot date.
type PortNames struct {
	db *gorm.DB
}

// NewPortNames constructs a store over db.
func NewPortNames(db *gorm.DB) *PortNames {
	return &PortNames{db: db}
}

// Save stores value for date with the first letter of every word capitalized and returns it.
func (p *PortNames) Save(ctx context.Context, date, value string) (string, error) {
	if p == nil || p.db == nil {
		return "", errMissingDatabase
	}
	record := PortName{Date: strings.TrimSpace(date), Name: capitalizeWords(value)}
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&record).Error
	if err != nil {
		return "", err
	}
	return record.Name, nil
}

// Get returns the stored label for date, or "" when none is set.
func (p *PortNames) Get(ctx context.Context, date string) (string, error) {
	if p == nil || p.db == nil {
		return "", errMissingDatabase
	}
	var record PortName
	err := p.db.WithContext(ctx).Where("date = ?", strings.TrimSpace(date)).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.Name, nil
}

// Clear removes the label for date.
func (p *PortNames) Clear(ctx context.Context, date string) error {
	if p == nil || p.db == nil {
		return errMissingDatabase
	}
	return p.db.WithContext(ctx).Where("date = ?", strings.TrimSpace(date)).Delete(&PortName{}).Error
}

func capitalizeWords(value string) string {
	words := strings.Split(value, " ")
	for index, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		if size == 0 || !unicode.IsLower(first) {
			continue
		}
		words[index] = string(unicode.ToTitle(first)) + word[size:]
	}
	return strings.Join(words, " ")
}
