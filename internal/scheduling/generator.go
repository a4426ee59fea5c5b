package scheduling

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidDateRange    = errors.New("date range start must not be after end")
	ErrUnalignedDateRange  = errors.New("date range bounds must be midnight-aligned UTC dates")
	ErrInvalidWorkingHours = errors.New("invalid working hours configuration")
)

// WorkingHours describes one day of bookable time. StartOfDay and EndOfDay
// are offsets from midnight UTC.
type WorkingHours struct {
	StartOfDay   time.Duration
	EndOfDay     time.Duration
	SlotDuration time.Duration
	Weekdays     []time.Weekday
}

// DefaultWorkingHours mirrors the clinic defaults: hourly slots from 09:00
// to 18:00 UTC, Monday through Friday.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{
		StartOfDay:   9 * time.Hour,
		EndOfDay:     18 * time.Hour,
		SlotDuration: time.Hour,
		Weekdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

func (h WorkingHours) validate() error {
	if h.SlotDuration <= 0 {
		return ErrInvalidWorkingHours
	}
	if h.StartOfDay < 0 || h.EndOfDay > 24*time.Hour || h.StartOfDay >= h.EndOfDay {
		return ErrInvalidWorkingHours
	}
	if h.SlotDuration > h.EndOfDay-h.StartOfDay {
		return ErrInvalidWorkingHours
	}
	if len(h.Weekdays) == 0 {
		return ErrInvalidWorkingHours
	}
	return nil
}

func (h WorkingHours) includes(day time.Weekday) bool {
	for _, w := range h.Weekdays {
		if w == day {
			return true
		}
	}
	return false
}

// DateRange covers the days From through To inclusive. Both bounds must be
// midnight-aligned UTC instants; anything else is rejected rather than
// silently coerced.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) validate() error {
	from, to := r.From.UTC(), r.To.UTC()
	if !midnightAligned(from) || !midnightAligned(to) {
		return ErrUnalignedDateRange
	}
	if from.After(to) {
		return ErrInvalidDateRange
	}
	return nil
}

func midnightAligned(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// GenerateSlots produces the bookable slots for one doctor over a date
// range. Pure computation; persisting the result is the caller's job. On
// each included weekday it emits one slot per SlotDuration starting at
// StartOfDay, keeping only slots that end at or before EndOfDay.
//
// Generating twice for overlapping ranges yields duplicate slots; the store
// deduplicates on (doctor_id, start_utc).
func GenerateSlots(doctorID uuid.UUID, r DateRange, hours WorkingHours) ([]Slot, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if err := hours.validate(); err != nil {
		return nil, err
	}

	var slots []Slot
	for day := r.From.UTC(); !day.After(r.To.UTC()); day = day.AddDate(0, 0, 1) {
		if !hours.includes(day.Weekday()) {
			continue
		}
		for off := hours.StartOfDay; off+hours.SlotDuration <= hours.EndOfDay; off += hours.SlotDuration {
			start := day.Add(off)
			slots = append(slots, Slot{
				ID:        uuid.New(),
				DoctorID:  doctorID,
				StartUTC:  start,
				EndUTC:    start.Add(hours.SlotDuration),
				Available: true,
			})
		}
	}

	return slots, nil
}
