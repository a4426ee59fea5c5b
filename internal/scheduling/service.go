package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
)

var (
	// ErrSlotLocked means another caller currently holds the booking lock
	// for this slot; the client should retry shortly.
	ErrSlotLocked = errors.New("slot is currently being booked, please retry")

	// ErrTooLate rejects a cancellation inside the minimum-notice window.
	ErrTooLate = errors.New("appointment cannot be cancelled inside the notice window")
)

// DefaultCancelNotice is the clinic's minimum lead time for cancelling a
// scheduled appointment.
const DefaultCancelNotice = 24 * time.Hour

type Service struct {
	repo   Repository
	dir    Directory
	locker redisclient.Locker
	notice time.Duration
	log    zerolog.Logger
}

func NewService(repo Repository, dir Directory, locker redisclient.Locker, notice time.Duration, log zerolog.Logger) *Service {
	if notice <= 0 {
		notice = DefaultCancelNotice
	}
	return &Service{
		repo:   repo,
		dir:    dir,
		locker: locker,
		notice: notice,
		log:    log,
	}
}

// GenerateSlots creates the bookable slots for a doctor over a date range
// and persists them. Slots that collide with an existing (doctor, start)
// pair are skipped, so regenerating an overlapping range is safe. Returns
// the number of slots actually created.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, r DateRange, hours WorkingHours) (int, error) {
	if _, err := s.dir.ResolveDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("resolve doctor: %w", err)
	}

	slots, err := GenerateSlots(doctorID, r, hours)
	if err != nil {
		return 0, err
	}
	if len(slots) == 0 {
		return 0, nil
	}

	created, err := s.repo.InsertSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("persist slots: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int("generated", len(slots)).
		Int("created", created).
		Msg("slots generated")

	return created, nil
}

// ListAvailableSlots returns a doctor's open slots, optionally limited to a
// single UTC day.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, day *time.Time) ([]Slot, error) {
	slots, err := s.repo.ListAvailableSlots(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// Book reserves a slot for a patient. The per-slot Redis lock sheds
// concurrent attempts early; the row lock inside BookSlot is what actually
// guarantees a single winner.
func (s *Service) Book(ctx context.Context, doctorID, patientID, slotID uuid.UUID, notes *string) (*Appointment, error) {
	if _, err := s.dir.ResolveDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	if _, err := s.dir.ResolvePatient(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	var booked *Appointment
	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		appt, err := s.repo.BookSlot(lockCtx, slotID, doctorID, patientID, notes)
		if err != nil {
			return err
		}
		booked = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotLocked
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", booked.ID.String()).
		Str("slot_id", slotID.String()).
		Str("doctor_id", doctorID.String()).
		Str("patient_id", patientID.String()).
		Time("scheduled_at", booked.ScheduledAtUTC).
		Msg("appointment booked")

	return booked, nil
}

// Cancel voids a scheduled appointment and frees its slot. now is supplied
// by the caller so the notice rule stays independently testable; it must be
// a UTC instant.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID, now time.Time) error {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status.Terminal() {
		return ErrAlreadyFinalized
	}
	if appt.ScheduledAtUTC.Sub(now.UTC()) < s.notice {
		return ErrTooLate
	}

	// The repository re-checks status under the transaction; losing the
	// race against a sweep pass surfaces as ErrAlreadyFinalized here.
	if err := s.repo.CancelScheduledAppointment(ctx, appointmentID); err != nil {
		return err
	}

	s.log.Info().
		Str("appointment_id", appointmentID.String()).
		Str("slot_id", appt.SlotID.String()).
		Msg("appointment cancelled")

	return nil
}

// GetAppointment fetches a single appointment.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments returns appointments matching the filter.
func (s *Service) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// CompleteElapsedAppointments is one sweep pass: every scheduled
// appointment whose start time lies before now becomes completed. Safe to
// repeat; a pass that finds nothing is a no-op.
func (s *Service) CompleteElapsedAppointments(ctx context.Context, now time.Time) (int64, error) {
	completed, err := s.repo.CompleteElapsed(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep elapsed appointments: %w", err)
	}
	if completed > 0 {
		s.log.Info().Int64("completed", completed).Msg("elapsed appointments promoted")
	}
	return completed, nil
}
