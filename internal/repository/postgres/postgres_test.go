package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
)

var blockColumns = []string{
	"id", "therapist_id", "start_at", "end_at", "created_at", "updated_at",
	"appointment_id", "appointment_client_id", "appointment_status",
	"appointment_created_at", "appointment_updated_at",
}

func setupMockDB(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestScheduleBlockGetWithActiveAppointment(t *testing.T) {
	store, mock := setupMockDB(t)
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_blocks b")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(blockColumns).
			AddRow(int64(7), int64(2), start, start.Add(time.Hour), now, now,
				int64(3), int64(5), "pending", now, now))

	block, err := store.ScheduleBlocks().Get(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(2), block.TherapistID)
	require.True(t, block.Booked())
	assert.Equal(t, int64(3), block.Appointment.ID)
	assert.Equal(t, int64(5), block.Appointment.ClientID)
	assert.Equal(t, int64(7), block.Appointment.ScheduleBlockID)
	assert.Equal(t, model.AppointmentStatusPending, block.Appointment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleBlockOpenAndMissing(t *testing.T) {
	store, mock := setupMockDB(t)
	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("a.id IS NULL")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(blockColumns).
			AddRow(int64(8), int64(2), start, start.Add(time.Hour), start, start,
				nil, nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF b")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(blockColumns))

	blocks, err := store.ScheduleBlocks().ListOpen(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.False(t, blocks[0].Booked())

	_, err = store.ScheduleBlocks().GetForUpdate(context.Background(), 99)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCreateDuplicate(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(int64(7), int64(5), "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "appointments_active_block_key"})

	err := store.Appointments().Create(context.Background(), &model.Appointment{
		ScheduleBlockID: 7,
		ClientID:        5,
		Status:          model.AppointmentStatusPending,
	})
	assert.True(t, errors.Is(err, repository.ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCreateReturnsID(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO clients")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	client := &model.Client{Person: model.Person{FirstName: "Ana", LastName: "Lee", Email: "ana@example.com"}}
	require.NoError(t, store.Clients().Create(context.Background(), client))

	assert.Equal(t, int64(11), client.ID)
	assert.False(t, client.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTherapistSearchUsesSubstringMatch(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("strpos(first_name, $1) > 0 OR strpos(last_name, $1) > 0")).
		WithArgs("Smith", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "status"}).
			AddRow(int64(1), "John", "Smith", "fulltime").
			AddRow(int64(2), "Smithers", "Day", "pending"))

	therapists, err := store.Therapists().Search(context.Background(), "Smith", 10)
	require.NoError(t, err)
	require.Len(t, therapists, 2)
	assert.Equal(t, "Smith", therapists[0].LastName)
	assert.Equal(t, model.EmploymentPending, therapists[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusNotFound(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET status")).
		WithArgs("confirmed", sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Appointments().UpdateStatus(context.Background(), 42, model.AppointmentStatusConfirmed)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommitAndRollback(t *testing.T) {
	store, mock := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_blocks")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(ctx, func(tx repository.Store) error {
		return tx.ScheduleBlocks().Delete(ctx, 7)
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = store.WithTx(ctx, func(tx repository.Store) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkFailed(t *testing.T) {
	store, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events")).
		WithArgs("broker down", 5, "FAILED", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Outbox().MarkFailed(context.Background(), id, "broker down", 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
