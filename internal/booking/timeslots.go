package booking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// SlotDateLayout is the display form of a slot date (dd-MM-yyyy).
	SlotDateLayout = "02-01-2006"
	// SlotTimeLayout is the display form of a slot time (hh:mm a).
	SlotTimeLayout = "03:04 PM"
	// SlotKeyLayout joins both forms and keys booked appointments onto slots.
	SlotKeyLayout = SlotDateLayout + " " + SlotTimeLayout
)

var (
	slotDateLayouts = []string{SlotDateLayout, "2-1-2006"}
	slotTimeLayouts = []string{SlotTimeLayout, "3:04 PM", "03:04PM", "3:04PM", "15:04"}
)

// ParseSlotDate parses a dd-MM-yyyy slot date as a UTC calendar day.
func ParseSlotDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range slotDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTimeSlot, value)
}

// ParseSlotTime parses an hh:mm a slot time and returns the offset from midnight.
func ParseSlotTime(value string) (time.Duration, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	for _, layout := range slotTimeLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
		}
	}
	return 0, fmt.Errorf("%w: time %q", ErrInvalidTimeSlot, value)
}

// SlotInstant resolves a slot to an instant in location.
func SlotInstant(slot TimeSlot, location *time.Location) (time.Time, error) {
	day, err := ParseSlotDate(slot.Date)
	if err != nil {
		return time.Time{}, err
	}
	offset, err := ParseSlotTime(slot.Time)
	if err != nil {
		return time.Time{}, err
	}
	if location == nil {
		location = time.Local
	}
	// Wall-clock construction keeps slots on their stated hour across DST changes.
	hour, minute := int(offset/time.Hour), int(offset%time.Hour/time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, location), nil
}

// SlotKey formats an instant the way slots are keyed for booking lookups.
func SlotKey(instant time.Time, location *time.Location) string {
	if location == nil {
		location = time.Local
	}
	return instant.In(location).Format(SlotKeyLayout)
}

func slotDateSortKey(slot TimeSlot) int64 {
	day, err := ParseSlotDate(slot.Date)
	if err != nil {
		return math.MaxInt64
	}
	return day.Unix()
}

func slotTimeSortKey(slot TimeSlot) int64 {
	offset, err := ParseSlotTime(slot.Time)
	if err != nil {
		return math.MaxInt64
	}
	return int64(offset)
}

// SortTimeSlots orders slots by parsed date, then parsed time. Unparseable values sort last
// and keep their relative order.
func SortTimeSlots(slots []TimeSlot) []TimeSlot {
	sorted := append([]TimeSlot(nil), slots...)
	sort.SliceStable(sorted, func(i, j int) bool {
		left, right := slotDateSortKey(sorted[i]), slotDateSortKey(sorted[j])
		if left != right {
			return left < right
		}
		return slotTimeSortKey(sorted[i]) < slotTimeSortKey(sorted[j])
	})
	return sorted
}

// MergeTimeSlots unions existing and incoming, drops exact (date, time) duplicates and sorts.
func MergeTimeSlots(existing, incoming []TimeSlot) []TimeSlot {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]TimeSlot, 0, len(existing)+len(incoming))
	for _, group := range [][]TimeSlot{existing, incoming} {
		for _, slot := range group {
			if _, ok := seen[slot.key()]; ok {
				continue
			}
			seen[slot.key()] = struct{}{}
			merged = append(merged, slot)
		}
	}
	return SortTimeSlots(merged)
}

// ReplaceTimeSlots merges slots into the stored set and rewrites it in sorted order.
func (s *Service) ReplaceTimeSlots(ctx context.Context, slots []TimeSlot) ([]TimeSlot, error) {
	if s.db == nil {
		s.logError(opReplaceTimeSlots, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opReplaceTimeSlots, reasonMissingDatabase, errMissingDatabase)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var merged []TimeSlot
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := make([]TimeSlot, 0)
		if err := tx.Find(&existing).Error; err != nil {
			return err
		}
		merged = MergeTimeSlots(existing, slots)
		return replaceAll(tx, merged)
	})
	if txErr != nil {
		s.logError(opReplaceTimeSlots, reasonReplaceFailed, txErr, zap.Int("incoming", len(slots)))
		return nil, newServiceError(opReplaceTimeSlots, reasonReplaceFailed, txErr)
	}

	s.publish(ctx, TopicTimeSlots)
	return merged, nil
}

// AddTimeSlot merges a single slot; the time is stored upper-cased.
func (s *Service) AddTimeSlot(ctx context.Context, date, clock string) ([]TimeSlot, error) {
	slot := TimeSlot{
		Date: strings.TrimSpace(date),
		Time: strings.ToUpper(strings.TrimSpace(clock)),
	}
	if slot.Date == "" || slot.Time == "" {
		return nil, newServiceError(opReplaceTimeSlots, reasonInvalidSlot, ErrInvalidTimeSlot)
	}
	return s.ReplaceTimeSlots(ctx, []TimeSlot{slot})
}

// ListTimeSlots returns the stored slots in slot order.
func (s *Service) ListTimeSlots(ctx context.Context) ([]TimeSlot, error) {
	if s.db == nil {
		s.logError(opListRoster, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListRoster, reasonMissingDatabase, errMissingDatabase)
	}
	slots := make([]TimeSlot, 0)
	if err := s.db.WithContext(ctx).Find(&slots).Error; err != nil {
		s.logError(opListRoster, reasonQueryFailed, err, zap.String("topic", string(TopicTimeSlots)))
		return nil, newServiceError(opListRoster, reasonQueryFailed, err)
	}
	return SortTimeSlots(slots), nil
}

// GenerateTimeSlots expands a series of slots on date from start to end inclusive, step apart.
func GenerateTimeSlots(date, start, end string, step time.Duration) ([]TimeSlot, error) {
	if step < time.Minute {
		return nil, fmt.Errorf("%w: step must be at least one minute", ErrInvalidSlotSeries)
	}
	day, err := ParseSlotDate(date)
	if err != nil {
		return nil, err
	}
	startOffset, err := ParseSlotTime(start)
	if err != nil {
		return nil, err
	}
	endOffset, err := ParseSlotTime(end)
	if err != nil {
		return nil, err
	}
	if endOffset < startOffset {
		return nil, fmt.Errorf("%w: end %q is before start %q", ErrInvalidSlotSeries, end, start)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.MINUTELY,
		Interval: int(step / time.Minute),
		Dtstart:  day.Add(startOffset),
		Until:    day.Add(endOffset),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlotSeries, err)
	}

	dateText := day.Format(SlotDateLayout)
	occurrences := rule.All()
	slots := make([]TimeSlot, 0, len(occurrences))
	for _, occurrence := range occurrences {
		slots = append(slots, TimeSlot{Date: dateText, Time: occurrence.Format(SlotTimeLayout)})
	}
	return slots, nil
}
