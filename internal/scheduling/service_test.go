package scheduling_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
	"github.com/hackgods/clinic-slot-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-slot-scheduling/internal/scheduling/schedulingtest"
)

func newTestService(store *schedulingtest.Store) *scheduling.Service {
	return scheduling.NewService(store, store, redisclient.NopLocker{}, scheduling.DefaultCancelNotice, zerolog.Nop())
}

func TestBookClaimsSlot(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	patientID := store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slotID := store.AddSlot(doctorID, start, time.Hour)

	notes := "first visit"
	appt, err := svc.Book(context.Background(), doctorID, patientID, slotID, &notes)
	require.NoError(t, err)

	assert.Equal(t, scheduling.StatusScheduled, appt.Status)
	assert.Equal(t, slotID, appt.SlotID)
	assert.Equal(t, doctorID, appt.DoctorID)
	assert.Equal(t, patientID, appt.PatientID)
	assert.True(t, appt.ScheduledAtUTC.Equal(start), "scheduled_at must copy the slot start")
	require.NotNil(t, appt.Notes)
	assert.Equal(t, notes, *appt.Notes)

	slot, ok := store.Slot(slotID)
	require.True(t, ok)
	assert.False(t, slot.Available, "booked slot must be unavailable")
}

func TestBookSameSlotTwiceConflicts(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	p1, p2 := store.AddPatient(), store.AddPatient()
	slotID := store.AddSlot(doctorID, time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC), time.Hour)

	_, err := svc.Book(context.Background(), doctorID, p1, slotID, nil)
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), doctorID, p2, slotID, nil)
	assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)
}

func TestBookConcurrentlyExactlyOneWins(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	slotID := store.AddSlot(doctorID, time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC), time.Hour)

	const callers = 16
	patients := make([]uuid.UUID, callers)
	for i := range patients {
		patients[i] = store.AddPatient()
	}

	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Book(context.Background(), doctorID, patients[i], slotID, nil)
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins, "exactly one booking must win")
	assert.Equal(t, callers-1, conflicts)
}

func TestBookUnknownIdentities(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	patientID := store.AddPatient()
	slotID := store.AddSlot(doctorID, time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC), time.Hour)

	_, err := svc.Book(context.Background(), uuid.New(), patientID, slotID, nil)
	assert.ErrorIs(t, err, scheduling.ErrDoctorNotFound)

	_, err = svc.Book(context.Background(), doctorID, uuid.New(), slotID, nil)
	assert.ErrorIs(t, err, scheduling.ErrPatientNotFound)

	_, err = svc.Book(context.Background(), doctorID, patientID, uuid.New(), nil)
	assert.ErrorIs(t, err, scheduling.ErrSlotNotFound)
}

func TestBookSlotOfAnotherDoctor(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	owner := store.AddDoctor()
	other := store.AddDoctor()
	patientID := store.AddPatient()
	slotID := store.AddSlot(owner, time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC), time.Hour)

	_, err := svc.Book(context.Background(), other, patientID, slotID, nil)
	assert.ErrorIs(t, err, scheduling.ErrSlotNotFound)

	slot, _ := store.Slot(slotID)
	assert.True(t, slot.Available, "failed booking must not claim the slot")
}

func TestCancelFreesSlotForRebooking(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	p1, p2 := store.AddPatient(), store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slotID := store.AddSlot(doctorID, start, time.Hour)

	appt, err := svc.Book(context.Background(), doctorID, p1, slotID, nil)
	require.NoError(t, err)

	// Well clear of the 24h notice window.
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Cancel(context.Background(), appt.ID, now))

	got, ok := store.Appointment(appt.ID)
	require.True(t, ok)
	assert.Equal(t, scheduling.StatusCancelled, got.Status)

	slot, _ := store.Slot(slotID)
	assert.True(t, slot.Available, "cancelled booking must free the slot")

	second, err := svc.Book(context.Background(), doctorID, p2, slotID, nil)
	require.NoError(t, err)
	assert.Equal(t, p2, second.PatientID)
}

func TestCancelInsideNoticeWindow(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	patientID := store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slotID := store.AddSlot(doctorID, start, time.Hour)

	appt, err := svc.Book(context.Background(), doctorID, patientID, slotID, nil)
	require.NoError(t, err)

	// 15 hours of notice, below the 24h minimum.
	now := time.Date(2024, time.June, 2, 18, 0, 0, 0, time.UTC)
	err = svc.Cancel(context.Background(), appt.ID, now)
	assert.ErrorIs(t, err, scheduling.ErrTooLate)

	got, _ := store.Appointment(appt.ID)
	assert.Equal(t, scheduling.StatusScheduled, got.Status, "rejected cancel must not mutate the appointment")
	slot, _ := store.Slot(slotID)
	assert.False(t, slot.Available, "rejected cancel must not free the slot")
}

func TestCancelExactlyAtNoticeBoundary(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	patientID := store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slotID := store.AddSlot(doctorID, start, time.Hour)

	appt, err := svc.Book(context.Background(), doctorID, patientID, slotID, nil)
	require.NoError(t, err)

	// Exactly 24h of notice is still allowed; a second less is not.
	require.NoError(t, svc.Cancel(context.Background(), appt.ID, start.Add(-24*time.Hour)))
}

func TestCancelTerminalStates(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	patientID := store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slotID := store.AddSlot(doctorID, start, time.Hour)

	appt, err := svc.Book(context.Background(), doctorID, patientID, slotID, nil)
	require.NoError(t, err)

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Cancel(context.Background(), appt.ID, now))

	err = svc.Cancel(context.Background(), appt.ID, now)
	assert.ErrorIs(t, err, scheduling.ErrAlreadyFinalized)

	err = svc.Cancel(context.Background(), uuid.New(), now)
	assert.ErrorIs(t, err, scheduling.ErrAppointmentNotFound)
}

func TestCancelLosesRaceAgainstSweep(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	patientID := store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slotID := store.AddSlot(doctorID, start, time.Hour)

	appt, err := svc.Book(context.Background(), doctorID, patientID, slotID, nil)
	require.NoError(t, err)

	// A sweep pass finalizes the appointment before the cancel commits.
	_, err = svc.CompleteElapsedAppointments(context.Background(), start.Add(time.Minute))
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), appt.ID, start.Add(-48*time.Hour))
	assert.ErrorIs(t, err, scheduling.ErrAlreadyFinalized)

	slot, _ := store.Slot(slotID)
	assert.False(t, slot.Available, "a completed appointment never frees its slot")
}

func TestGenerateSlotsPersistsAndDeduplicates(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	r := scheduling.DateRange{
		From: time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC),
	}

	created, err := svc.GenerateSlots(context.Background(), doctorID, r, scheduling.DefaultWorkingHours())
	require.NoError(t, err)
	assert.Equal(t, 18, created)

	// Regenerating an overlapping range creates nothing new.
	created, err = svc.GenerateSlots(context.Background(), doctorID, r, scheduling.DefaultWorkingHours())
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	_, err = svc.GenerateSlots(context.Background(), uuid.New(), r, scheduling.DefaultWorkingHours())
	assert.ErrorIs(t, err, scheduling.ErrDoctorNotFound)
}

func TestListAvailableSlotsFiltersByDay(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	patientID := store.AddPatient()
	day1 := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, time.June, 4, 9, 0, 0, 0, time.UTC)
	slot1 := store.AddSlot(doctorID, day1, time.Hour)
	store.AddSlot(doctorID, day2, time.Hour)

	all, err := svc.ListAvailableSlots(context.Background(), doctorID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	day := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	justDay1, err := svc.ListAvailableSlots(context.Background(), doctorID, &day)
	require.NoError(t, err)
	require.Len(t, justDay1, 1)
	assert.Equal(t, slot1, justDay1[0].ID)

	// Booked slots drop out of the listing.
	_, err = svc.Book(context.Background(), doctorID, patientID, slot1, nil)
	require.NoError(t, err)
	justDay1, err = svc.ListAvailableSlots(context.Background(), doctorID, &day)
	require.NoError(t, err)
	assert.Empty(t, justDay1)
}

func TestListAppointmentsFilter(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	d1, d2 := store.AddDoctor(), store.AddDoctor()
	p1, p2 := store.AddPatient(), store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	s1 := store.AddSlot(d1, start, time.Hour)
	s2 := store.AddSlot(d2, start, time.Hour)

	a1, err := svc.Book(context.Background(), d1, p1, s1, nil)
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), d2, p2, s2, nil)
	require.NoError(t, err)

	byDoctor, err := svc.ListAppointments(context.Background(), scheduling.AppointmentFilter{DoctorID: &d1})
	require.NoError(t, err)
	require.Len(t, byDoctor, 1)
	assert.Equal(t, a1.ID, byDoctor[0].ID)

	byPatient, err := svc.ListAppointments(context.Background(), scheduling.AppointmentFilter{PatientID: &p2})
	require.NoError(t, err)
	require.Len(t, byPatient, 1)
	assert.Equal(t, p2, byPatient[0].PatientID)

	scheduled := scheduling.StatusScheduled
	byStatus, err := svc.ListAppointments(context.Background(), scheduling.AppointmentFilter{Status: &scheduled})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
}

func TestCompleteElapsedAppointmentsIsIdempotent(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	patientID := store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slotID := store.AddSlot(doctorID, start, time.Hour)

	appt, err := svc.Book(context.Background(), doctorID, patientID, slotID, nil)
	require.NoError(t, err)

	// Before the slot starts, nothing to do.
	n, err := svc.CompleteElapsedAppointments(context.Background(), start.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.CompleteElapsedAppointments(context.Background(), start.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _ := store.Appointment(appt.ID)
	assert.Equal(t, scheduling.StatusCompleted, got.Status)

	// Repeated passes find nothing further.
	n, err = svc.CompleteElapsedAppointments(context.Background(), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

// Full lifecycle: book, conflict, cancel with notice, rebook.
func TestBookCancelRebookScenario(t *testing.T) {
	store := schedulingtest.NewStore()
	svc := newTestService(store)

	doctorID := store.AddDoctor()
	p1, p2 := store.AddPatient(), store.AddPatient()
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	slotID := store.AddSlot(doctorID, start, time.Hour)

	a1, err := svc.Book(context.Background(), doctorID, p1, slotID, nil)
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), doctorID, p2, slotID, nil)
	require.ErrorIs(t, err, scheduling.ErrSlotUnavailable)

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Cancel(context.Background(), a1.ID, now))

	a2, err := svc.Book(context.Background(), doctorID, p2, slotID, nil)
	require.NoError(t, err)
	assert.Equal(t, p2, a2.PatientID)
	assert.True(t, a2.ScheduledAtUTC.Equal(start))
}
