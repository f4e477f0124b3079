package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/renova-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	ClientRepository interface {
		Create(ctx context.Context, client *model.Client) error
		Get(ctx context.Context, id int64) (*model.Client, error)
		GetByEmail(ctx context.Context, email string) (*model.Client, error)
		UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	}

	OwnerRepository interface {
		Create(ctx context.Context, owner *model.Owner) error
		Get(ctx context.Context, id int64) (*model.Owner, error)
		GetByEmail(ctx context.Context, email string) (*model.Owner, error)
		UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	}

	TherapistRepository interface {
		Create(ctx context.Context, therapist *model.Therapist) error
		Get(ctx context.Context, id int64) (*model.Therapist, error)
		GetByEmail(ctx context.Context, email string) (*model.Therapist, error)
		UpdatePasswordHash(ctx context.Context, id int64, hash string) error
		// Search matches text as a case-sensitive substring of the first or
		// last name.
		Search(ctx context.Context, text string, limit int) ([]*model.Therapist, error)
		List(ctx context.Context, limit int) ([]*model.Therapist, error)
		ListByStatus(ctx context.Context, status model.EmploymentStatus) ([]*model.Therapist, error)
		UpdateStatus(ctx context.Context, id int64, status model.EmploymentStatus) error
	}

	// ScheduleBlockRepository loads blocks together with their active
	// appointment, if any.
	ScheduleBlockRepository interface {
		Create(ctx context.Context, block *model.ScheduleBlock) error
		Get(ctx context.Context, id int64) (*model.ScheduleBlock, error)
		// GetForUpdate locks the block row until the surrounding transaction ends.
		GetForUpdate(ctx context.Context, id int64) (*model.ScheduleBlock, error)
		Update(ctx context.Context, block *model.ScheduleBlock) error
		Delete(ctx context.Context, id int64) error
		// ListInRange returns blocks with from <= start_at < to.
		ListInRange(ctx context.Context, therapistID int64, from, to time.Time) ([]*model.ScheduleBlock, error)
		ListOpen(ctx context.Context, therapistID int64) ([]*model.ScheduleBlock, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		GetActiveByBlock(ctx context.Context, blockID int64) (*model.Appointment, error)
		UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus) error
		Delete(ctx context.Context, id int64) error
		ListByClient(ctx context.Context, clientID int64) ([]*model.AppointmentDetail, error)
		ListByTherapist(ctx context.Context, therapistID int64) ([]*model.AppointmentDetail, error)
	}

	PatientFileRepository interface {
		GetByClient(ctx context.Context, clientID int64) (*model.PatientFile, error)
		Upsert(ctx context.Context, file *model.PatientFile) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		ListPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed records the failure and moves the event to FAILED once
		// its retry count reaches maxRetries.
		MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int) error
	}

	// Store is the storage handle passed into every request context.
	Store interface {
		Clients() ClientRepository
		Therapists() TherapistRepository
		Owners() OwnerRepository
		ScheduleBlocks() ScheduleBlockRepository
		Appointments() AppointmentRepository
		PatientFiles() PatientFileRepository
		Outbox() OutboxRepository

		// WithTx runs fn against a Store bound to a single transaction. The
		// transaction commits when fn returns nil and rolls back otherwise.
		WithTx(ctx context.Context, fn func(tx Store) error) error
		Ping(ctx context.Context) error
	}
)
