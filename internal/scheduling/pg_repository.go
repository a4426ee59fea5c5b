package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxIface is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db PgxIface
}

func NewPgRepository(db PgxIface) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.StartUTC, &s.EndUTC, &s.Available, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.SlotID, &a.DoctorID, &a.PatientID, &a.ScheduledAtUTC, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Directory

func (r *PgRepository) ResolveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ResolvePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// Slots

func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert slots: %w", err)
	}
	defer tx.Rollback(ctx)

	created := 0
	for _, s := range slots {
		tag, err := tx.Exec(ctx, `
			INSERT INTO slots (id, doctor_id, start_utc, end_utc, available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (doctor_id, start_utc) DO NOTHING
		`, s.ID, s.DoctorID, s.StartUTC, s.EndUTC, s.Available)
		if err != nil {
			return 0, fmt.Errorf("insert slot: %w", err)
		}
		created += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert slots: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, doctor_id, start_utc, end_utc, available, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, day *time.Time) ([]Slot, error) {
	query := `
		SELECT id, doctor_id, start_utc, end_utc, available, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1 AND available
	`
	args := []any{doctorID}

	if day != nil {
		dayStart := day.UTC()
		query += ` AND start_utc >= $2 AND start_utc < $3`
		args = append(args, dayStart, dayStart.AddDate(0, 0, 1))
	}
	query += ` ORDER BY start_utc ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Appointments

func (r *PgRepository) BookSlot(ctx context.Context, slotID, doctorID, patientID uuid.UUID, notes *string) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent claims on the same slot; exactly one
	// transaction sees available = true.
	slot, err := scanSlot(tx.QueryRow(ctx, `
		SELECT id, doctor_id, start_utc, end_utc, available, created_at, updated_at
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, slotID))
	if err != nil {
		return nil, err
	}
	if slot.DoctorID != doctorID {
		return nil, ErrSlotNotFound
	}
	if !slot.Available {
		return nil, ErrSlotUnavailable
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slots
		SET available = false,
		    updated_at = now()
		WHERE id = $1
	`, slotID); err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, doctor_id, patient_id, scheduled_at_utc, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'scheduled', $6, now(), now())
		RETURNING id, slot_id, doctor_id, patient_id, scheduled_at_utc, status, notes, created_at, updated_at
	`, uuid.New(), slotID, doctorID, patientID, slot.StartUTC, notes))
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}

	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, slot_id, doctor_id, patient_id, scheduled_at_utc, status, notes, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	query := `
		SELECT id, slot_id, doctor_id, patient_id, scheduled_at_utc, status, notes, created_at, updated_at
		FROM appointments
	`
	var (
		conds []string
		args  []any
	)
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		conds = append(conds, "doctor_id = $"+strconv.Itoa(len(args)))
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		conds = append(conds, "patient_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY scheduled_at_utc ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CancelScheduledAppointment(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancellation: %w", err)
	}
	defer tx.Rollback(ctx)

	// Compare-and-swap on status: if a sweep pass or another cancel got
	// there first the update matches nothing.
	var slotID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING slot_id
	`, id).Scan(&slotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var status AppointmentStatus
			err := tx.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAppointmentNotFound
			}
			if err != nil {
				return err
			}
			return ErrAlreadyFinalized
		}
		return fmt.Errorf("cancel appointment: %w", err)
	}

	// Free the slot if its row still exists; zero rows here is fine.
	if _, err := tx.Exec(ctx, `
		UPDATE slots
		SET available = true,
		    updated_at = now()
		WHERE id = $1
	`, slotID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancellation: %w", err)
	}

	return nil
}

func (r *PgRepository) CompleteElapsed(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    updated_at = now()
		WHERE status = 'scheduled'
		  AND scheduled_at_utc < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("complete elapsed appointments: %w", err)
	}

	return tag.RowsAffected(), nil
}
