// Package schedulingtest provides an in-memory store implementing the
// scheduling Repository and Directory interfaces for tests.
package schedulingtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-slot-scheduling/internal/scheduling"
)

// Store mimics the Postgres repository's semantics closely enough for
// engine-level tests: the slot-claim critical section runs under one
// mutex, insertions deduplicate on (doctor_id, start_utc) and the
// cancel transition is compare-and-swap on status.
type Store struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]scheduling.Doctor
	patients     map[uuid.UUID]scheduling.Patient
	slots        map[uuid.UUID]*scheduling.Slot
	appointments map[uuid.UUID]*scheduling.Appointment

	// FailWith, when set, makes every store call return this error.
	FailWith error
}

func NewStore() *Store {
	return &Store{
		doctors:      make(map[uuid.UUID]scheduling.Doctor),
		patients:     make(map[uuid.UUID]scheduling.Patient),
		slots:        make(map[uuid.UUID]*scheduling.Slot),
		appointments: make(map[uuid.UUID]*scheduling.Appointment),
	}
}

// Seeding helpers

func (s *Store) AddDoctor() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.doctors[id] = scheduling.Doctor{ID: id, Name: "Dr. Seed"}
	return id
}

func (s *Store) AddPatient() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.patients[id] = scheduling.Patient{ID: id, Name: "Pat Seed"}
	return id
}

func (s *Store) AddSlot(doctorID uuid.UUID, start time.Time, dur time.Duration) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.slots[id] = &scheduling.Slot{
		ID:        id,
		DoctorID:  doctorID,
		StartUTC:  start.UTC(),
		EndUTC:    start.UTC().Add(dur),
		Available: true,
	}
	return id
}

// Slot returns a copy of the slot's current state.
func (s *Store) Slot(id uuid.UUID) (scheduling.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return scheduling.Slot{}, false
	}
	return *slot, true
}

// Appointment returns a copy of the appointment's current state.
func (s *Store) Appointment(id uuid.UUID) (scheduling.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	if !ok {
		return scheduling.Appointment{}, false
	}
	return *appt, true
}

// Directory

func (s *Store) ResolveDoctor(_ context.Context, id uuid.UUID) (*scheduling.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	d, ok := s.doctors[id]
	if !ok {
		return nil, scheduling.ErrDoctorNotFound
	}
	return &d, nil
}

func (s *Store) ResolvePatient(_ context.Context, id uuid.UUID) (*scheduling.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	p, ok := s.patients[id]
	if !ok {
		return nil, scheduling.ErrPatientNotFound
	}
	return &p, nil
}

// Repository

func (s *Store) InsertSlots(_ context.Context, slots []scheduling.Slot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}

	created := 0
	for _, slot := range slots {
		if s.hasSlotAtLocked(slot.DoctorID, slot.StartUTC) {
			continue
		}
		copied := slot
		s.slots[slot.ID] = &copied
		created++
	}
	return created, nil
}

func (s *Store) hasSlotAtLocked(doctorID uuid.UUID, start time.Time) bool {
	for _, existing := range s.slots {
		if existing.DoctorID == doctorID && existing.StartUTC.Equal(start) {
			return true
		}
	}
	return false
}

func (s *Store) GetSlotByID(_ context.Context, id uuid.UUID) (*scheduling.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	slot, ok := s.slots[id]
	if !ok {
		return nil, scheduling.ErrSlotNotFound
	}
	copied := *slot
	return &copied, nil
}

func (s *Store) ListAvailableSlots(_ context.Context, doctorID uuid.UUID, day *time.Time) ([]scheduling.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	var result []scheduling.Slot
	for _, slot := range s.slots {
		if slot.DoctorID != doctorID || !slot.Available {
			continue
		}
		if day != nil {
			dayStart := day.UTC()
			dayEnd := dayStart.AddDate(0, 0, 1)
			if slot.StartUTC.Before(dayStart) || !slot.StartUTC.Before(dayEnd) {
				continue
			}
		}
		result = append(result, *slot)
	}
	return result, nil
}

func (s *Store) BookSlot(_ context.Context, slotID, doctorID, patientID uuid.UUID, notes *string) (*scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	slot, ok := s.slots[slotID]
	if !ok || slot.DoctorID != doctorID {
		return nil, scheduling.ErrSlotNotFound
	}
	if !slot.Available {
		return nil, scheduling.ErrSlotUnavailable
	}

	slot.Available = false
	appt := &scheduling.Appointment{
		ID:             uuid.New(),
		SlotID:         slotID,
		DoctorID:       doctorID,
		PatientID:      patientID,
		ScheduledAtUTC: slot.StartUTC,
		Status:         scheduling.StatusScheduled,
		Notes:          notes,
	}
	s.appointments[appt.ID] = appt

	copied := *appt
	return &copied, nil
}

func (s *Store) GetAppointmentByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	appt, ok := s.appointments[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	copied := *appt
	return &copied, nil
}

func (s *Store) ListAppointments(_ context.Context, filter scheduling.AppointmentFilter) ([]scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	var result []scheduling.Appointment
	for _, appt := range s.appointments {
		if filter.DoctorID != nil && appt.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.PatientID != nil && appt.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != nil && appt.Status != *filter.Status {
			continue
		}
		result = append(result, *appt)
	}
	return result, nil
}

func (s *Store) CancelScheduledAppointment(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	appt, ok := s.appointments[id]
	if !ok {
		return scheduling.ErrAppointmentNotFound
	}
	if appt.Status != scheduling.StatusScheduled {
		return scheduling.ErrAlreadyFinalized
	}

	appt.Status = scheduling.StatusCancelled
	if slot, ok := s.slots[appt.SlotID]; ok {
		slot.Available = true
	}
	return nil
}

func (s *Store) CompleteElapsed(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}

	var completed int64
	for _, appt := range s.appointments {
		if appt.Status == scheduling.StatusScheduled && appt.ScheduledAtUTC.Before(now) {
			appt.Status = scheduling.StatusCompleted
			completed++
		}
	}
	return completed, nil
}
