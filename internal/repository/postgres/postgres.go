package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/renova-api/internal/repository"
)

// Store implements repository.Store on PostgreSQL. Repositories run on
// sqlx.ExtContext so the same code serves the pool and a transaction.
type Store struct {
	db   *sqlx.DB
	ext  sqlx.ExtContext
	inTx bool
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

func (s *Store) Clients() repository.ClientRepository {
	return &clientRepository{people: personTable{db: s.ext, table: "clients"}}
}

func (s *Store) Owners() repository.OwnerRepository {
	return &ownerRepository{people: personTable{db: s.ext, table: "owners"}}
}

func (s *Store) Therapists() repository.TherapistRepository {
	return &therapistRepository{db: s.ext, people: personTable{db: s.ext, table: "therapists"}}
}

func (s *Store) ScheduleBlocks() repository.ScheduleBlockRepository {
	return &scheduleBlockRepository{db: s.ext}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{db: s.ext}
}

func (s *Store) PatientFiles() repository.PatientFileRepository {
	return &patientFileRepository{db: s.ext}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{db: s.ext}
}

// WithTx executes fn within a transaction. Nested calls reuse the
// transaction that is already open.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, ext: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	return mapError("commit transaction", tx.Commit())
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
