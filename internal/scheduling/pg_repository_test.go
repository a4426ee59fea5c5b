package scheduling_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-scheduling/internal/scheduling"
)

var slotColumns = []string{"id", "doctor_id", "start_utc", "end_utc", "available", "created_at", "updated_at"}

var appointmentColumns = []string{"id", "slot_id", "doctor_id", "patient_id", "scheduled_at_utc", "status", "notes", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *scheduling.PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, scheduling.NewPgRepository(mock)
}

func TestPgBookSlotHappyPath(t *testing.T) {
	mock, repo := newMockRepo(t)

	slotID, doctorID, patientID := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id, start_utc").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows(slotColumns).
			AddRow(slotID, doctorID, start, start.Add(time.Hour), true, now, now))
	mock.ExpectExec("UPDATE slots").
		WithArgs(slotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), slotID, doctorID, patientID, start, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow(uuid.New(), slotID, doctorID, patientID, start, scheduling.StatusScheduled, nil, now, now))
	mock.ExpectCommit()

	appt, err := repo.BookSlot(context.Background(), slotID, doctorID, patientID, nil)
	require.NoError(t, err)
	assert.Equal(t, slotID, appt.SlotID)
	assert.True(t, appt.ScheduledAtUTC.Equal(start))
	assert.Equal(t, scheduling.StatusScheduled, appt.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookSlotAlreadyTaken(t *testing.T) {
	mock, repo := newMockRepo(t)

	slotID, doctorID := uuid.New(), uuid.New()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id, start_utc").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows(slotColumns).
			AddRow(slotID, doctorID, start, start.Add(time.Hour), false, now, now))
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), slotID, doctorID, uuid.New(), nil)
	assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookSlotWrongDoctor(t *testing.T) {
	mock, repo := newMockRepo(t)

	slotID := uuid.New()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id, start_utc").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows(slotColumns).
			AddRow(slotID, uuid.New(), start, start.Add(time.Hour), true, now, now))
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), slotID, uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, err, scheduling.ErrSlotNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookSlotMissing(t *testing.T) {
	mock, repo := newMockRepo(t)

	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, doctor_id, start_utc").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows(slotColumns))
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), slotID, uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, err, scheduling.ErrSlotNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelScheduledAppointment(t *testing.T) {
	mock, repo := newMockRepo(t)

	apptID, slotID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_id"}).AddRow(slotID))
	mock.ExpectExec("UPDATE slots").
		WithArgs(slotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CancelScheduledAppointment(context.Background(), apptID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelAlreadyFinalized(t *testing.T) {
	mock, repo := newMockRepo(t)

	apptID := uuid.New()

	// The CAS update matches nothing, so the repository inspects the row to
	// tell a finalized appointment apart from a missing one.
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_id"}))
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(scheduling.StatusCompleted))
	mock.ExpectRollback()

	err := repo.CancelScheduledAppointment(context.Background(), apptID)
	assert.ErrorIs(t, err, scheduling.ErrAlreadyFinalized)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelUnknownAppointment(t *testing.T) {
	mock, repo := newMockRepo(t)

	apptID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_id"}))
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	err := repo.CancelScheduledAppointment(context.Background(), apptID)
	assert.ErrorIs(t, err, scheduling.ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertSlotsCountsOnlyNewRows(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slots := []scheduling.Slot{
		{ID: uuid.New(), DoctorID: doctorID, StartUTC: start, EndUTC: start.Add(time.Hour), Available: true},
		{ID: uuid.New(), DoctorID: doctorID, StartUTC: start.Add(time.Hour), EndUTC: start.Add(2 * time.Hour), Available: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO slots").
		WithArgs(slots[0].ID, doctorID, slots[0].StartUTC, slots[0].EndUTC, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Second slot already exists; ON CONFLICT swallows it.
	mock.ExpectExec("INSERT INTO slots").
		WithArgs(slots[1].ID, doctorID, slots[1].StartUTC, slots[1].EndUTC, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	created, err := repo.InsertSlots(context.Background(), slots)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListAvailableSlotsByDay(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	day := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, doctor_id, start_utc").
		WithArgs(doctorID, day, day.AddDate(0, 0, 1)).
		WillReturnRows(pgxmock.NewRows(slotColumns).
			AddRow(uuid.New(), doctorID, start, start.Add(time.Hour), true, now, now))

	slots, err := repo.ListAvailableSlots(context.Background(), doctorID, &day)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].StartUTC.Equal(start))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCompleteElapsed(t *testing.T) {
	mock, repo := newMockRepo(t)

	now := time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE appointments").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.CompleteElapsed(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetAppointmentByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery("SELECT id, slot_id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentColumns))

	_, err := repo.GetAppointmentByID(context.Background(), id)
	assert.ErrorIs(t, err, scheduling.ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListAppointmentsBuildsFilter(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID, patientID := uuid.New(), uuid.New()
	status := scheduling.StatusScheduled
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, slot_id").
		WithArgs(doctorID, patientID, status).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow(uuid.New(), uuid.New(), doctorID, patientID, start, status, nil, now, now))

	appts, err := repo.ListAppointments(context.Background(), scheduling.AppointmentFilter{
		DoctorID:  &doctorID,
		PatientID: &patientID,
		Status:    &status,
	})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, doctorID, appts[0].DoctorID)

	require.NoError(t, mock.ExpectationsWereMet())
}
