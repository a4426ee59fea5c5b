package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transition can leave this status.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a fixed doctor time window that can be claimed by one appointment
// at a time. Available stays true until a booking claims the slot and flips
// back to true only if that booking is cancelled.
type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartUTC  time.Time
	EndUTC    time.Time
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment references a slot by id. ScheduledAtUTC is copied from the
// slot's start at booking time and never changes afterwards, even if the
// slot row is later altered.
type Appointment struct {
	ID             uuid.UUID
	SlotID         uuid.UUID
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	ScheduledAtUTC time.Time
	Status         AppointmentStatus
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AppointmentFilter narrows ListAppointments. Nil fields are ignored.
type AppointmentFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *AppointmentStatus
}
