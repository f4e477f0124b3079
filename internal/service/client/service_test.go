package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
	"github.com/jwalitptl/renova-api/internal/repository/memory"
	"github.com/jwalitptl/renova-api/internal/service/therapist"
	"github.com/jwalitptl/renova-api/pkg/errors"
	"github.com/jwalitptl/renova-api/pkg/logger"
	"github.com/jwalitptl/renova-api/pkg/metrics"
)

var today = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store      *memory.Store
	svc        *Service
	therapists *therapist.Service
	metrics    *metrics.Metrics
	smith      *model.Therapist
	carl       *model.Client
	dana       *model.Client
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	smith := &model.Therapist{Person: model.Person{FirstName: "Jane", LastName: "Smith", Email: "jane@example.com"}}
	require.NoError(t, store.Therapists().Create(ctx, smith))
	carl := &model.Client{Person: model.Person{FirstName: "Carl", LastName: "Client", Email: "carl@example.com"}}
	require.NoError(t, store.Clients().Create(ctx, carl))
	dana := &model.Client{Person: model.Person{FirstName: "Dana", LastName: "Client", Email: "dana@example.com"}}
	require.NoError(t, store.Clients().Create(ctx, dana))

	m := metrics.NewMetrics(prometheus.NewRegistry(), "renova", "test")
	clock := func() time.Time { return today }
	return &fixture{
		store:      store,
		svc:        NewService(clock, time.UTC, m, logger.Nop()),
		therapists: therapist.NewService(clock, time.UTC, m, logger.Nop()),
		metrics:    m,
		smith:      smith,
		carl:       carl,
		dana:       dana,
	}
}

func (f *fixture) as(t *testing.T, c *model.Client) *Context {
	t.Helper()
	cc, err := f.svc.For(context.Background(), access.NewContext(f.store, &access.Credential{ID: c.ID, Role: model.RoleClient}))
	require.NoError(t, err)
	return cc
}

func (f *fixture) therapist(t *testing.T) *therapist.Context {
	t.Helper()
	tc, err := f.therapists.For(context.Background(), access.NewContext(f.store, &access.Credential{ID: f.smith.ID, Role: model.RoleTherapist}))
	require.NoError(t, err)
	return tc
}

func (f *fixture) block(t *testing.T, start time.Time) *model.ScheduleBlock {
	t.Helper()
	b, err := f.therapist(t).CreateScheduleBlock(context.Background(), start)
	require.NoError(t, err)
	return b
}

func TestForRequiresClient(t *testing.T) {
	f := setup(t)
	_, err := f.svc.For(context.Background(), access.NewContext(f.store, &access.Credential{ID: f.smith.ID, Role: model.RoleTherapist}))
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestFindTherapists(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		th := &model.Therapist{Person: model.Person{
			FirstName: fmt.Sprintf("T%d", i),
			LastName:  "Smithson",
			Email:     fmt.Sprintf("t%d@example.com", i),
		}}
		require.NoError(t, f.store.Therapists().Create(ctx, th))
	}
	other := &model.Therapist{Person: model.Person{FirstName: "Smith", LastName: "Black", Email: "sb@example.com"}}
	require.NoError(t, f.store.Therapists().Create(ctx, other))

	cc := f.as(t, f.carl)

	all, err := cc.FindTherapists(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 10)

	found, err := cc.FindTherapists(ctx, "Smith")
	require.NoError(t, err)
	assert.Len(t, found, 10)
	for _, th := range found {
		assert.True(t, containsName(th, "Smith"), th.FullName())
	}

	lower, err := cc.FindTherapists(ctx, "smith")
	require.NoError(t, err)
	assert.Empty(t, lower)

	black, err := cc.FindTherapists(ctx, "Black")
	require.NoError(t, err)
	require.Len(t, black, 1)
	assert.Equal(t, other.ID, black[0].ID)
}

func containsName(th *model.Therapist, s string) bool {
	return strings.Contains(th.FirstName, s) || strings.Contains(th.LastName, s)
}

func TestOpenBlocks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cc := f.as(t, f.carl)

	// no patient file, no therapist given
	blocks, err := cc.OpenBlocks(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	open := f.block(t, today.Add(time.Hour))
	booked := f.block(t, today.Add(2*time.Hour))
	_, err = f.as(t, f.dana).BookAppointment(ctx, booked.ID)
	require.NoError(t, err)

	blocks, err = cc.OpenBlocks(ctx, &f.smith.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, open.ID, blocks[0].ID)

	_, err = f.therapist(t).UpdatePatientFile(ctx, f.carl.ID, model.PatientFileInput{AdmissionDate: today})
	require.NoError(t, err)
	blocks, err = cc.OpenBlocks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, open.ID, blocks[0].ID)

	missing := int64(9999)
	_, err = cc.OpenBlocks(ctx, &missing)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestOpenBlocksMatchesUnbookedBlocks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var blocks []*model.ScheduleBlock
	for i := 0; i < 6; i++ {
		blocks = append(blocks, f.block(t, today.Add(time.Duration(i)*time.Hour)))
	}
	for i, b := range blocks {
		if i%2 == 0 {
			_, err := f.as(t, f.carl).BookAppointment(ctx, b.ID)
			require.NoError(t, err)
		}
	}
	// a cancelled appointment frees its block again
	_, err := f.as(t, f.carl).CancelBlockAppointment(ctx, blocks[0].ID)
	require.NoError(t, err)

	open, err := f.as(t, f.carl).OpenBlocks(ctx, &f.smith.ID)
	require.NoError(t, err)
	openIDs := map[int64]bool{}
	for _, b := range open {
		openIDs[b.ID] = true
	}

	for _, b := range blocks {
		stored, err := f.store.ScheduleBlocks().Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, !stored.Booked(), openIDs[b.ID], "block %d", b.ID)
	}
}

func TestBookAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.block(t, today.Add(time.Hour))

	appt, err := f.as(t, f.carl).BookAppointment(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
	assert.Equal(t, f.carl.ID, appt.ClientID)

	for _, c := range []*model.Client{f.carl, f.dana} {
		_, err = f.as(t, c).BookAppointment(ctx, b.ID)
		assert.True(t, errors.Is(err, errors.ErrConflict))
	}

	_, err = f.as(t, f.carl).BookAppointment(ctx, 9999)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.BookingsTotal.WithLabelValues(metrics.BookingResultConflict)))

	events, err := f.store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "appointment.booked", events[0].EventType)
}

func TestConcurrentBookingsHaveOneWinner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.block(t, today.Add(time.Hour))

	clients := []*Context{f.as(t, f.carl), f.as(t, f.dana)}
	errs := make([]error, len(clients))
	var wg sync.WaitGroup
	for i, cc := range clients {
		wg.Add(1)
		go func(i int, cc *Context) {
			defer wg.Done()
			_, errs[i] = cc.BookAppointment(ctx, b.ID)
		}(i, cc)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, errors.ErrConflict))
	}
	assert.Equal(t, 1, wins)
}

func TestCancelAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.block(t, today.Add(time.Hour))

	appt, err := f.as(t, f.carl).BookAppointment(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.as(t, f.dana).CancelAppointment(ctx, appt.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	cancelled, err := f.as(t, f.carl).CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	stored, err := f.store.ScheduleBlocks().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, stored.Booked())

	again, err := f.as(t, f.carl).CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, again.Status)

	_, err = f.as(t, f.carl).CancelAppointment(ctx, 9999)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// the freed block can be booked again
	_, err = f.as(t, f.dana).BookAppointment(ctx, b.ID)
	require.NoError(t, err)
}

func TestDeleteAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.block(t, today.Add(time.Hour))

	err := f.as(t, f.carl).DeleteAppointment(ctx, b.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	appt, err := f.as(t, f.carl).BookAppointment(ctx, b.ID)
	require.NoError(t, err)

	err = f.as(t, f.dana).DeleteAppointment(ctx, b.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	require.NoError(t, f.as(t, f.carl).DeleteAppointment(ctx, b.ID))

	_, err = f.store.Appointments().Get(ctx, appt.ID)
	assert.Error(t, err)
	stored, err := f.store.ScheduleBlocks().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, stored.Booked())
}

func TestAppointmentsListsOwn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b1 := f.block(t, today.Add(time.Hour))
	b2 := f.block(t, today.Add(2*time.Hour))
	_, err := f.as(t, f.carl).BookAppointment(ctx, b1.ID)
	require.NoError(t, err)
	_, err = f.as(t, f.dana).BookAppointment(ctx, b2.ID)
	require.NoError(t, err)

	list, err := f.as(t, f.carl).Appointments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b1.ID, list[0].ScheduleBlockID)
	assert.Equal(t, f.smith.ID, list[0].TherapistID)
}

func TestWeekBlocks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	wed := f.block(t, time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC))

	week, err := f.as(t, f.carl).WeekBlocks(ctx, f.smith.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, week.Grid[3][14])
	assert.Equal(t, wed.ID, week.Grid[3][14].ID)

	next := today.AddDate(0, 0, 7)
	week, err = f.as(t, f.carl).WeekBlocks(ctx, f.smith.ID, &next)
	require.NoError(t, err)
	assert.Nil(t, week.Grid[3][14])

	_, err = f.as(t, f.carl).WeekBlocks(ctx, 9999, nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBookingLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	block := f.block(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))

	appt, err := f.as(t, f.carl).BookAppointment(ctx, block.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)

	confirmed, err := f.therapist(t).ConfirmAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)

	cancelled, err := f.as(t, f.carl).CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	stored, err := f.store.ScheduleBlocks().Get(ctx, block.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Appointment)

	events, err := f.store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{"appointment.booked", "appointment.confirmed", "appointment.cancelled"}, types)
}

// commitFailingStore runs every transaction and then reports a commit error.
type commitFailingStore struct {
	*memory.Store
}

func (s commitFailingStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if err := s.Store.WithTx(ctx, fn); err != nil {
		return err
	}
	return stderrors.New("commit failed")
}

func TestCancelCountsTransitionOnlyAfterCommit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.block(t, today.Add(time.Hour))

	appt, err := f.as(t, f.carl).BookAppointment(ctx, b.ID)
	require.NoError(t, err)

	failing, err := f.svc.For(ctx, access.NewContext(commitFailingStore{f.store}, &access.Credential{ID: f.carl.ID, Role: model.RoleClient}))
	require.NoError(t, err)
	_, err = failing.CancelAppointment(ctx, appt.ID)
	require.Error(t, err)

	cancelled := f.metrics.AppointmentTransitions.WithLabelValues(string(model.AppointmentStatusCancelled))
	assert.Equal(t, 0.0, testutil.ToFloat64(cancelled))

	other := f.block(t, today.Add(2*time.Hour))
	appt, err = f.as(t, f.dana).BookAppointment(ctx, other.ID)
	require.NoError(t, err)
	_, err = f.as(t, f.dana).CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	_, err = f.as(t, f.dana).CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(cancelled))
}
