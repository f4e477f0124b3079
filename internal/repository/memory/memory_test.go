package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
)

func seed(t *testing.T, store *Store) (*model.Therapist, *model.Client, *model.ScheduleBlock) {
	t.Helper()
	ctx := context.Background()

	therapist := &model.Therapist{Person: model.Person{FirstName: "John", LastName: "Smith", Email: "john@renova.test"}}
	require.NoError(t, store.Therapists().Create(ctx, therapist))

	client := &model.Client{Person: model.Person{FirstName: "Ana", LastName: "Lee", Email: "ana@renova.test"}}
	require.NoError(t, store.Clients().Create(ctx, client))

	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	block := &model.ScheduleBlock{TherapistID: therapist.ID, StartAt: start, EndAt: start.Add(time.Hour)}
	require.NoError(t, store.ScheduleBlocks().Create(ctx, block))

	return therapist, client, block
}

func TestOneActiveAppointmentPerBlock(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_, client, block := seed(t, store)

	first := &model.Appointment{ScheduleBlockID: block.ID, ClientID: client.ID, Status: model.AppointmentStatusPending}
	require.NoError(t, store.Appointments().Create(ctx, first))

	second := &model.Appointment{ScheduleBlockID: block.ID, ClientID: client.ID, Status: model.AppointmentStatusPending}
	err := store.Appointments().Create(ctx, second)
	assert.True(t, errors.Is(err, repository.ErrDuplicate))

	require.NoError(t, store.Appointments().UpdateStatus(ctx, first.ID, model.AppointmentStatusCancelled))
	require.NoError(t, store.Appointments().Create(ctx, second))

	got, err := store.ScheduleBlocks().Get(ctx, block.ID)
	require.NoError(t, err)
	require.True(t, got.Booked())
	assert.Equal(t, second.ID, got.Appointment.ID)
}

func TestWithTxRollsBack(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_, client, block := seed(t, store)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx repository.Store) error {
		appointment := &model.Appointment{ScheduleBlockID: block.ID, ClientID: client.ID, Status: model.AppointmentStatusPending}
		if err := tx.Appointments().Create(ctx, appointment); err != nil {
			return err
		}
		if err := tx.Outbox().Create(ctx, &model.OutboxEvent{EventType: "x", Payload: json.RawMessage(`{}`)}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.ScheduleBlocks().Get(ctx, block.ID)
	require.NoError(t, err)
	assert.False(t, got.Booked())

	pending, err := store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeleteBlockCascades(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	therapist, client, block := seed(t, store)

	appointment := &model.Appointment{ScheduleBlockID: block.ID, ClientID: client.ID, Status: model.AppointmentStatusConfirmed}
	require.NoError(t, store.Appointments().Create(ctx, appointment))
	require.NoError(t, store.ScheduleBlocks().Delete(ctx, block.ID))

	_, err := store.Appointments().Get(ctx, appointment.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	list, err := store.Appointments().ListByTherapist(ctx, therapist.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTherapistSearchIsCaseSensitive(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seed(t, store)

	found, err := store.Therapists().Search(ctx, "Smith", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = store.Therapists().Search(ctx, "smith", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	dup := &model.Therapist{Person: model.Person{Email: "john@renova.test"}}
	assert.True(t, errors.Is(store.Therapists().Create(ctx, dup), repository.ErrDuplicate))
}

func TestOutboxMarkFailedMovesToFailed(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	event := &model.OutboxEvent{EventType: "appointment.booked", Payload: json.RawMessage(`{}`)}
	require.NoError(t, store.Outbox().Create(ctx, event))

	require.NoError(t, store.Outbox().MarkFailed(ctx, event.ID, "down", 2))
	pending, err := store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	require.NoError(t, store.Outbox().MarkFailed(ctx, event.ID, "down", 2))
	pending, err = store.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
