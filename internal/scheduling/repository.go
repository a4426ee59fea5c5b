package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable is the booking conflict: the slot exists but is
	// already claimed (possibly by a concurrent caller that won the race).
	// Callers must be able to tell it apart from ErrSlotNotFound.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrAlreadyFinalized marks an appointment whose status is terminal.
	ErrAlreadyFinalized = errors.New("appointment is already cancelled or completed")
)

// Directory resolves foreign identities to doctor and patient records. The
// engine only performs not-found checks against it; account management
// lives elsewhere.
type Directory interface {
	ResolveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ResolvePatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// Repository contains all store interactions needed by the service. The
// mutating operations are atomic: each runs inside its own transaction and
// either commits fully or leaves no trace.
type Repository interface {
	// InsertSlots persists generated slots, skipping any that collide on
	// (doctor_id, start_utc). Returns how many rows were actually created.
	InsertSlots(ctx context.Context, slots []Slot) (int, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// ListAvailableSlots returns a doctor's open slots, optionally limited
	// to the single UTC day starting at *day.
	ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, day *time.Time) ([]Slot, error)

	// BookSlot atomically claims a slot: it locks the slot row, verifies it
	// belongs to doctorID and is still available, flips it unavailable and
	// inserts a scheduled appointment carrying the slot's start time.
	// Fails with ErrSlotNotFound (absent or wrong doctor) or
	// ErrSlotUnavailable (lost the race / already booked).
	BookSlot(ctx context.Context, slotID, doctorID, patientID uuid.UUID, notes *string) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)

	// CancelScheduledAppointment atomically moves a scheduled appointment to
	// cancelled and frees its slot if the slot row still exists. Fails with
	// ErrAlreadyFinalized when the appointment is no longer scheduled.
	CancelScheduledAppointment(ctx context.Context, id uuid.UUID) error

	// CompleteElapsed promotes every scheduled appointment whose
	// scheduled_at_utc lies before now to completed, returning the number
	// of rows promoted. Idempotent.
	CompleteElapsed(ctx context.Context, now time.Time) (int64, error)
}
