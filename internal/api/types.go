package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-slot-scheduling/internal/scheduling"
)

type GenerateSlotsRequest struct {
	From         string               `json:"from"` // YYYY-MM-DD, inclusive
	To           string               `json:"to"`   // YYYY-MM-DD, inclusive
	WorkingHours *WorkingHoursPayload `json:"working_hours,omitempty"`
}

type WorkingHoursPayload struct {
	StartOfDay          string   `json:"start_of_day"` // HH:MM, UTC
	EndOfDay            string   `json:"end_of_day"`   // HH:MM, UTC
	SlotDurationMinutes int      `json:"slot_duration_minutes"`
	Weekdays            []string `json:"weekdays"`
}

type GenerateSlotsResponse struct {
	Created int `json:"created"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartUTC  time.Time `json:"start_utc"`
	EndUTC    time.Time `json:"end_utc"`
	Available bool      `json:"available"`
}

type BookAppointmentRequest struct {
	DoctorID  string  `json:"doctor_id"`
	PatientID string  `json:"patient_id"`
	SlotID    string  `json:"slot_id"`
	Notes     *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	SlotID         uuid.UUID `json:"slot_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ScheduledAtUTC time.Time `json:"scheduled_at_utc"`
	Status         string    `json:"status"`
	Notes          *string   `json:"notes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		StartUTC:  s.StartUTC.UTC(),
		EndUTC:    s.EndUTC.UTC(),
		Available: s.Available,
	}
}

func toAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		SlotID:         a.SlotID,
		DoctorID:       a.DoctorID,
		PatientID:      a.PatientID,
		ScheduledAtUTC: a.ScheduledAtUTC.UTC(),
		Status:         string(a.Status),
		Notes:          a.Notes,
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// workingHours converts the payload, falling back to the clinic defaults
// when the request omits it.
func (r GenerateSlotsRequest) workingHours() (scheduling.WorkingHours, error) {
	if r.WorkingHours == nil {
		return scheduling.DefaultWorkingHours(), nil
	}

	p := r.WorkingHours
	start, err := parseDayOffset(p.StartOfDay)
	if err != nil {
		return scheduling.WorkingHours{}, fmt.Errorf("start_of_day: %w", err)
	}
	end, err := parseDayOffset(p.EndOfDay)
	if err != nil {
		return scheduling.WorkingHours{}, fmt.Errorf("end_of_day: %w", err)
	}
	if p.SlotDurationMinutes <= 0 {
		return scheduling.WorkingHours{}, fmt.Errorf("slot_duration_minutes must be positive")
	}

	var days []time.Weekday
	for _, name := range p.Weekdays {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return scheduling.WorkingHours{}, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, day)
	}

	return scheduling.WorkingHours{
		StartOfDay:   start,
		EndOfDay:     end,
		SlotDuration: time.Duration(p.SlotDurationMinutes) * time.Minute,
		Weekdays:     days,
	}, nil
}

// parseDayOffset turns "HH:MM" into an offset from midnight UTC.
func parseDayOffset(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("must be HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// parseUTCDate parses a calendar date as the midnight-aligned UTC instant
// that starts it. Anything but a bare YYYY-MM-DD is rejected.
func parseUTCDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be YYYY-MM-DD, got %q", s)
	}
	return t, nil
}
