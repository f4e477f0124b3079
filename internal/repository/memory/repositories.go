package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
)

func notFound(what string) error {
	return fmt.Errorf("failed to get %s: %w", what, repository.ErrNotFound)
}

func duplicate(what string) error {
	return fmt.Errorf("failed to create %s: %w", what, repository.ErrDuplicate)
}

func now() time.Time {
	return time.Now().UTC()
}

type clientRepository struct{ s *Store }

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	return r.s.do(func(d *data) error {
		for _, c := range d.clients {
			if c.Email == client.Email {
				return duplicate("client")
			}
		}
		client.ID = d.id()
		client.Touch(now())
		d.clients[client.ID] = *client
		return nil
	})
}

func (r *clientRepository) Get(ctx context.Context, id int64) (*model.Client, error) {
	var out model.Client
	err := r.s.do(func(d *data) error {
		c, ok := d.clients[id]
		if !ok {
			return notFound("client")
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *clientRepository) GetByEmail(ctx context.Context, email string) (*model.Client, error) {
	var out *model.Client
	err := r.s.do(func(d *data) error {
		for _, c := range d.clients {
			if c.Email == email {
				c := c
				out = &c
				return nil
			}
		}
		return notFound("client")
	})
	return out, err
}

func (r *clientRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.s.do(func(d *data) error {
		c, ok := d.clients[id]
		if !ok {
			return notFound("client")
		}
		c.PasswordHash = hash
		c.UpdatedAt = now()
		d.clients[id] = c
		return nil
	})
}

type ownerRepository struct{ s *Store }

func (r *ownerRepository) Create(ctx context.Context, owner *model.Owner) error {
	return r.s.do(func(d *data) error {
		for _, o := range d.owners {
			if o.Email == owner.Email {
				return duplicate("owner")
			}
		}
		owner.ID = d.id()
		owner.Touch(now())
		d.owners[owner.ID] = *owner
		return nil
	})
}

func (r *ownerRepository) Get(ctx context.Context, id int64) (*model.Owner, error) {
	var out model.Owner
	err := r.s.do(func(d *data) error {
		o, ok := d.owners[id]
		if !ok {
			return notFound("owner")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ownerRepository) GetByEmail(ctx context.Context, email string) (*model.Owner, error) {
	var out *model.Owner
	err := r.s.do(func(d *data) error {
		for _, o := range d.owners {
			if o.Email == email {
				o := o
				out = &o
				return nil
			}
		}
		return notFound("owner")
	})
	return out, err
}

func (r *ownerRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.s.do(func(d *data) error {
		o, ok := d.owners[id]
		if !ok {
			return notFound("owner")
		}
		o.PasswordHash = hash
		o.UpdatedAt = now()
		d.owners[id] = o
		return nil
	})
}

type therapistRepository struct{ s *Store }

func (r *therapistRepository) Create(ctx context.Context, therapist *model.Therapist) error {
	return r.s.do(func(d *data) error {
		for _, t := range d.therapists {
			if t.Email == therapist.Email {
				return duplicate("therapist")
			}
		}
		if therapist.Status == "" {
			therapist.Status = model.EmploymentPending
		}
		therapist.ID = d.id()
		therapist.Touch(now())
		d.therapists[therapist.ID] = *therapist
		return nil
	})
}

func (r *therapistRepository) Get(ctx context.Context, id int64) (*model.Therapist, error) {
	var out model.Therapist
	err := r.s.do(func(d *data) error {
		t, ok := d.therapists[id]
		if !ok {
			return notFound("therapist")
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *therapistRepository) GetByEmail(ctx context.Context, email string) (*model.Therapist, error) {
	var out *model.Therapist
	err := r.s.do(func(d *data) error {
		for _, t := range d.therapists {
			if t.Email == email {
				t := t
				out = &t
				return nil
			}
		}
		return notFound("therapist")
	})
	return out, err
}

func (r *therapistRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.s.do(func(d *data) error {
		t, ok := d.therapists[id]
		if !ok {
			return notFound("therapist")
		}
		t.PasswordHash = hash
		t.UpdatedAt = now()
		d.therapists[id] = t
		return nil
	})
}

// filter returns therapists accepted by keep, ordered by id. limit <= 0
// means no limit.
func (r *therapistRepository) filter(keep func(model.Therapist) bool, limit int) ([]*model.Therapist, error) {
	out := []*model.Therapist{}
	err := r.s.do(func(d *data) error {
		ids := make([]int64, 0, len(d.therapists))
		for id := range d.therapists {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			t := d.therapists[id]
			if !keep(t) {
				continue
			}
			out = append(out, &t)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *therapistRepository) Search(ctx context.Context, text string, limit int) ([]*model.Therapist, error) {
	return r.filter(func(t model.Therapist) bool {
		return strings.Contains(t.FirstName, text) || strings.Contains(t.LastName, text)
	}, limit)
}

func (r *therapistRepository) List(ctx context.Context, limit int) ([]*model.Therapist, error) {
	return r.filter(func(model.Therapist) bool { return true }, limit)
}

func (r *therapistRepository) ListByStatus(ctx context.Context, status model.EmploymentStatus) ([]*model.Therapist, error) {
	return r.filter(func(t model.Therapist) bool { return t.Status == status }, 0)
}

func (r *therapistRepository) UpdateStatus(ctx context.Context, id int64, status model.EmploymentStatus) error {
	return r.s.do(func(d *data) error {
		t, ok := d.therapists[id]
		if !ok {
			return notFound("therapist")
		}
		t.Status = status
		t.UpdatedAt = now()
		d.therapists[id] = t
		return nil
	})
}

type scheduleBlockRepository struct{ s *Store }

func (r *scheduleBlockRepository) Create(ctx context.Context, block *model.ScheduleBlock) error {
	return r.s.do(func(d *data) error {
		if _, ok := d.therapists[block.TherapistID]; !ok {
			return fmt.Errorf("failed to create schedule block: unknown therapist %d", block.TherapistID)
		}
		block.ID = d.id()
		block.Touch(now())
		stored := *block
		stored.Appointment = nil
		d.blocks[block.ID] = stored
		return nil
	})
}

func (r *scheduleBlockRepository) Get(ctx context.Context, id int64) (*model.ScheduleBlock, error) {
	var out *model.ScheduleBlock
	err := r.s.do(func(d *data) error {
		b, ok := d.blocks[id]
		if !ok {
			return notFound("schedule block")
		}
		out = d.withAppointment(b)
		return nil
	})
	return out, err
}

// GetForUpdate is Get; the store lock held by the transaction already
// serializes writers.
func (r *scheduleBlockRepository) GetForUpdate(ctx context.Context, id int64) (*model.ScheduleBlock, error) {
	return r.Get(ctx, id)
}

func (r *scheduleBlockRepository) Update(ctx context.Context, block *model.ScheduleBlock) error {
	return r.s.do(func(d *data) error {
		b, ok := d.blocks[block.ID]
		if !ok {
			return notFound("schedule block")
		}
		b.StartAt = block.StartAt
		b.EndAt = block.EndAt
		b.UpdatedAt = now()
		block.UpdatedAt = b.UpdatedAt
		d.blocks[b.ID] = b
		return nil
	})
}

func (r *scheduleBlockRepository) Delete(ctx context.Context, id int64) error {
	return r.s.do(func(d *data) error {
		if _, ok := d.blocks[id]; !ok {
			return notFound("schedule block")
		}
		delete(d.blocks, id)
		for aid, a := range d.appointments {
			if a.ScheduleBlockID == id {
				delete(d.appointments, aid)
			}
		}
		return nil
	})
}

func (r *scheduleBlockRepository) list(keep func(d *data, b model.ScheduleBlock) bool) ([]*model.ScheduleBlock, error) {
	out := []*model.ScheduleBlock{}
	err := r.s.do(func(d *data) error {
		for _, b := range d.blocks {
			if keep(d, b) {
				out = append(out, d.withAppointment(b))
			}
		}
		return nil
	})
	sortBlocks(out)
	return out, err
}

func (r *scheduleBlockRepository) ListInRange(ctx context.Context, therapistID int64, from, to time.Time) ([]*model.ScheduleBlock, error) {
	return r.list(func(_ *data, b model.ScheduleBlock) bool {
		return b.TherapistID == therapistID && !b.StartAt.Before(from) && b.StartAt.Before(to)
	})
}

func (r *scheduleBlockRepository) ListOpen(ctx context.Context, therapistID int64) ([]*model.ScheduleBlock, error) {
	return r.list(func(d *data, b model.ScheduleBlock) bool {
		if b.TherapistID != therapistID {
			return false
		}
		_, booked := d.activeAppointment(b.ID)
		return !booked
	})
}

type appointmentRepository struct{ s *Store }

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	return r.s.do(func(d *data) error {
		if _, ok := d.blocks[appointment.ScheduleBlockID]; !ok {
			return fmt.Errorf("failed to create appointment: unknown schedule block %d", appointment.ScheduleBlockID)
		}
		if _, ok := d.clients[appointment.ClientID]; !ok {
			return fmt.Errorf("failed to create appointment: unknown client %d", appointment.ClientID)
		}
		if appointment.Active() {
			if _, booked := d.activeAppointment(appointment.ScheduleBlockID); booked {
				return duplicate("appointment")
			}
		}
		appointment.ID = d.id()
		appointment.Touch(now())
		d.appointments[appointment.ID] = *appointment
		return nil
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	var out model.Appointment
	err := r.s.do(func(d *data) error {
		a, ok := d.appointments[id]
		if !ok {
			return notFound("appointment")
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *appointmentRepository) GetActiveByBlock(ctx context.Context, blockID int64) (*model.Appointment, error) {
	var out model.Appointment
	err := r.s.do(func(d *data) error {
		a, ok := d.activeAppointment(blockID)
		if !ok {
			return notFound("active appointment")
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus) error {
	return r.s.do(func(d *data) error {
		a, ok := d.appointments[id]
		if !ok {
			return notFound("appointment")
		}
		if status != model.AppointmentStatusCancelled && !a.Active() {
			if other, booked := d.activeAppointment(a.ScheduleBlockID); booked && other.ID != id {
				return duplicate("appointment")
			}
		}
		a.Status = status
		a.UpdatedAt = now()
		d.appointments[id] = a
		return nil
	})
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	return r.s.do(func(d *data) error {
		if _, ok := d.appointments[id]; !ok {
			return notFound("appointment")
		}
		delete(d.appointments, id)
		return nil
	})
}

func (r *appointmentRepository) list(keep func(a model.Appointment, b model.ScheduleBlock) bool) ([]*model.AppointmentDetail, error) {
	out := []*model.AppointmentDetail{}
	err := r.s.do(func(d *data) error {
		for _, a := range d.appointments {
			b, ok := d.blocks[a.ScheduleBlockID]
			if !ok || !keep(a, b) {
				continue
			}
			out = append(out, &model.AppointmentDetail{
				Appointment: a,
				TherapistID: b.TherapistID,
				StartAt:     b.StartAt,
				EndAt:       b.EndAt,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, err
}

func (r *appointmentRepository) ListByClient(ctx context.Context, clientID int64) ([]*model.AppointmentDetail, error) {
	return r.list(func(a model.Appointment, _ model.ScheduleBlock) bool { return a.ClientID == clientID })
}

func (r *appointmentRepository) ListByTherapist(ctx context.Context, therapistID int64) ([]*model.AppointmentDetail, error) {
	return r.list(func(_ model.Appointment, b model.ScheduleBlock) bool { return b.TherapistID == therapistID })
}

type patientFileRepository struct{ s *Store }

func (r *patientFileRepository) GetByClient(ctx context.Context, clientID int64) (*model.PatientFile, error) {
	var out model.PatientFile
	err := r.s.do(func(d *data) error {
		f, ok := d.patientFiles[clientID]
		if !ok {
			return notFound("patient file")
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *patientFileRepository) Upsert(ctx context.Context, file *model.PatientFile) error {
	return r.s.do(func(d *data) error {
		if _, ok := d.clients[file.ClientID]; !ok {
			return fmt.Errorf("failed to upsert patient file: unknown client %d", file.ClientID)
		}
		if existing, ok := d.patientFiles[file.ClientID]; ok {
			file.CreatedAt = existing.CreatedAt
		}
		file.Touch(now())
		d.patientFiles[file.ClientID] = *file
		return nil
	})
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	return r.s.do(func(d *data) error {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		event.Status = model.OutboxStatusPending
		event.CreatedAt = now()
		d.outboxIndex[event.ID] = len(d.outbox)
		d.outbox = append(d.outbox, *event)
		return nil
	})
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	out := []*model.OutboxEvent{}
	err := r.s.do(func(d *data) error {
		for _, e := range d.outbox {
			if e.Status != model.OutboxStatusPending {
				continue
			}
			e := e
			out = append(out, &e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.s.do(func(d *data) error {
		i, ok := d.outboxIndex[id]
		if !ok {
			return notFound("outbox event")
		}
		t := now()
		d.outbox[i].Status = model.OutboxStatusProcessed
		d.outbox[i].ProcessedAt = &t
		d.outbox[i].ErrorMessage = nil
		return nil
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int) error {
	return r.s.do(func(d *data) error {
		i, ok := d.outboxIndex[id]
		if !ok {
			return notFound("outbox event")
		}
		d.outbox[i].RetryCount++
		d.outbox[i].ErrorMessage = &reason
		if d.outbox[i].RetryCount >= maxRetries {
			d.outbox[i].Status = model.OutboxStatusFailed
		}
		return nil
	})
}
