// Package memory is an in-process implementation of repository.Store. It
// backs the "memory" database driver for local runs and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
)

type data struct {
	nextID       int64
	clients      map[int64]model.Client
	owners       map[int64]model.Owner
	therapists   map[int64]model.Therapist
	blocks       map[int64]model.ScheduleBlock
	appointments map[int64]model.Appointment
	patientFiles map[int64]model.PatientFile
	outbox       []model.OutboxEvent
	outboxIndex  map[uuid.UUID]int
}

func newData() *data {
	return &data{
		clients:      map[int64]model.Client{},
		owners:       map[int64]model.Owner{},
		therapists:   map[int64]model.Therapist{},
		blocks:       map[int64]model.ScheduleBlock{},
		appointments: map[int64]model.Appointment{},
		patientFiles: map[int64]model.PatientFile{},
		outboxIndex:  map[uuid.UUID]int{},
	}
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *data) clone() *data {
	c := &data{
		nextID:       d.nextID,
		clients:      make(map[int64]model.Client, len(d.clients)),
		owners:       make(map[int64]model.Owner, len(d.owners)),
		therapists:   make(map[int64]model.Therapist, len(d.therapists)),
		blocks:       make(map[int64]model.ScheduleBlock, len(d.blocks)),
		appointments: make(map[int64]model.Appointment, len(d.appointments)),
		patientFiles: make(map[int64]model.PatientFile, len(d.patientFiles)),
		outbox:       append([]model.OutboxEvent(nil), d.outbox...),
		outboxIndex:  make(map[uuid.UUID]int, len(d.outboxIndex)),
	}
	for k, v := range d.clients {
		c.clients[k] = v
	}
	for k, v := range d.owners {
		c.owners[k] = v
	}
	for k, v := range d.therapists {
		c.therapists[k] = v
	}
	for k, v := range d.blocks {
		c.blocks[k] = v
	}
	for k, v := range d.appointments {
		c.appointments[k] = v
	}
	for k, v := range d.patientFiles {
		c.patientFiles[k] = v
	}
	for k, v := range d.outboxIndex {
		c.outboxIndex[k] = v
	}
	return c
}

// activeAppointment returns the non-cancelled appointment of a block.
func (d *data) activeAppointment(blockID int64) (model.Appointment, bool) {
	for _, a := range d.appointments {
		if a.ScheduleBlockID == blockID && a.Active() {
			return a, true
		}
	}
	return model.Appointment{}, false
}

// withAppointment returns a copy of the block with its active appointment attached.
func (d *data) withAppointment(b model.ScheduleBlock) *model.ScheduleBlock {
	if a, ok := d.activeAppointment(b.ID); ok {
		b.Appointment = &a
	} else {
		b.Appointment = nil
	}
	return &b
}

func sortBlocks(blocks []*model.ScheduleBlock) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].StartAt.Equal(blocks[j].StartAt) {
			return blocks[i].ID < blocks[j].ID
		}
		return blocks[i].StartAt.Before(blocks[j].StartAt)
	})
}

type state struct {
	mu   sync.Mutex
	data *data
}

// Store implements repository.Store in memory. A transaction holds the
// store lock until it finishes, so transactions are fully serialized.
type Store struct {
	state *state
	inTx  bool
}

func NewStore() *Store {
	return &Store{state: &state{data: newData()}}
}

func (s *Store) do(fn func(d *data) error) error {
	if s.inTx {
		return fn(s.state.data)
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return fn(s.state.data)
}

func (s *Store) Clients() repository.ClientRepository               { return &clientRepository{s} }
func (s *Store) Owners() repository.OwnerRepository                 { return &ownerRepository{s} }
func (s *Store) Therapists() repository.TherapistRepository         { return &therapistRepository{s} }
func (s *Store) ScheduleBlocks() repository.ScheduleBlockRepository { return &scheduleBlockRepository{s} }
func (s *Store) Appointments() repository.AppointmentRepository     { return &appointmentRepository{s} }
func (s *Store) PatientFiles() repository.PatientFileRepository     { return &patientFileRepository{s} }
func (s *Store) Outbox() repository.OutboxRepository                { return &outboxRepository{s} }

// WithTx snapshots the data before running fn and restores the snapshot
// when fn fails or panics.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	snapshot := s.state.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state.data = snapshot
			panic(p)
		}
		if err != nil {
			s.state.data = snapshot
		}
	}()

	return fn(&Store{state: s.state, inTx: true})
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
