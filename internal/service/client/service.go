package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
	"github.com/jwalitptl/renova-api/internal/service/schedule"
	"github.com/jwalitptl/renova-api/pkg/errors"
	"github.com/jwalitptl/renova-api/pkg/event"
	"github.com/jwalitptl/renova-api/pkg/logger"
	"github.com/jwalitptl/renova-api/pkg/metrics"
)

type Service struct {
	clock   schedule.Clock
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(clock schedule.Clock, loc *time.Location, m *metrics.Metrics, log *logger.Logger) *Service {
	if clock == nil {
		clock = schedule.SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{clock: clock, loc: loc, metrics: m, logger: log.With("client")}
}

// For binds the service to the client behind ac.
func (s *Service) For(ctx context.Context, ac *access.Context) (*Context, error) {
	cl, err := ac.Client(ctx)
	if err != nil {
		return nil, err
	}
	return &Context{svc: s, store: ac.Store(), client: cl}, nil
}

// Context exposes the operations available to one client
type Context struct {
	svc    *Service
	store  repository.Store
	client *model.Client
}

func (c *Context) Client() *model.Client {
	return c.client
}

// FindTherapists returns up to ten therapists. A non-empty search keeps
// those whose first or last name contains it, case-sensitively.
func (c *Context) FindTherapists(ctx context.Context, search string) ([]*model.Therapist, error) {
	var (
		list []*model.Therapist
		err  error
	)
	if search == "" {
		list, err = c.store.Therapists().List(ctx, schedule.MaxTherapistResults)
	} else {
		list, err = c.store.Therapists().Search(ctx, search, schedule.MaxTherapistResults)
	}
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to search therapists: %w", err))
	}
	return list, nil
}

func (c *Context) GetTherapist(ctx context.Context, id int64) (*model.Therapist, error) {
	th, err := c.store.Therapists().Get(ctx, id)
	if err != nil {
		return nil, schedule.StoreError("therapist", err)
	}
	return th, nil
}

// PatientFile returns the caller's patient file.
func (c *Context) PatientFile(ctx context.Context) (*model.PatientFile, error) {
	file, err := c.store.PatientFiles().GetByClient(ctx, c.client.ID)
	if err != nil {
		return nil, schedule.StoreError("patient file", err)
	}
	return file, nil
}

// OpenBlocks lists the unbooked blocks of therapistID, or of the caller's
// primary therapist when therapistID is nil. Without a patient file the
// list is empty.
func (c *Context) OpenBlocks(ctx context.Context, therapistID *int64) ([]*model.ScheduleBlock, error) {
	var id int64
	if therapistID != nil {
		th, err := c.GetTherapist(ctx, *therapistID)
		if err != nil {
			return nil, err
		}
		id = th.ID
	} else {
		file, err := c.store.PatientFiles().GetByClient(ctx, c.client.ID)
		if stderrors.Is(err, repository.ErrNotFound) {
			return []*model.ScheduleBlock{}, nil
		}
		if err != nil {
			return nil, errors.Internal(err)
		}
		id = file.PrimaryTherapistID
	}

	blocks, err := c.store.ScheduleBlocks().ListOpen(ctx, id)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to list open blocks: %w", err))
	}
	return blocks, nil
}

// BookAppointment creates a pending appointment for the caller on blockID.
func (c *Context) BookAppointment(ctx context.Context, blockID int64) (*model.Appointment, error) {
	var appt *model.Appointment
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		block, err := tx.ScheduleBlocks().GetForUpdate(ctx, blockID)
		if err != nil {
			return schedule.StoreError("schedule block", err)
		}
		if block.Booked() {
			return errors.Conflict("schedule block is already booked", schedule.ErrBlockBooked)
		}

		appt = &model.Appointment{
			ScheduleBlockID: block.ID,
			ClientID:        c.client.ID,
			Status:          model.AppointmentStatusPending,
		}
		if err := tx.Appointments().Create(ctx, appt); err != nil {
			if stderrors.Is(err, repository.ErrDuplicate) {
				return errors.Conflict("schedule block is already booked", schedule.ErrBlockBooked)
			}
			return errors.Internal(err)
		}

		payload := event.NewAppointmentPayload(appt, block, c.client, c.svc.clock())
		if err := event.Write(ctx, tx.Outbox(), event.AppointmentBooked, payload); err != nil {
			return errors.Internal(err)
		}
		return nil
	})

	c.recordBooking(err)
	if err != nil {
		return nil, err
	}
	c.svc.metrics.AppointmentTransitions.WithLabelValues(string(model.AppointmentStatusPending)).Inc()
	c.svc.logger.Info("Appointment booked",
		"client_id", c.client.ID,
		"block_id", blockID,
		"appointment_id", appt.ID)
	return appt, nil
}

func (c *Context) recordBooking(err error) {
	result := metrics.BookingResultBooked
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrConflict):
		result = metrics.BookingResultConflict
	default:
		result = metrics.BookingResultError
	}
	c.svc.metrics.BookingsTotal.WithLabelValues(result).Inc()
}

// CancelAppointment cancels one of the caller's appointments and frees its
// block. Cancelling twice is a no-op.
func (c *Context) CancelAppointment(ctx context.Context, appointmentID int64) (*model.Appointment, error) {
	var (
		appt      *model.Appointment
		cancelled bool
	)
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		appt, err = tx.Appointments().Get(ctx, appointmentID)
		if err != nil {
			return schedule.StoreError("appointment", err)
		}
		if appt.ClientID != c.client.ID {
			return errors.Forbidden("appointment belongs to another client", nil)
		}
		if !appt.Active() {
			return nil
		}

		block, err := tx.ScheduleBlocks().GetForUpdate(ctx, appt.ScheduleBlockID)
		if err != nil {
			return schedule.StoreError("schedule block", err)
		}

		appt.Cancel()
		if err := tx.Appointments().UpdateStatus(ctx, appt.ID, appt.Status); err != nil {
			return schedule.StoreError("appointment", err)
		}

		// the block must be bookable again before we commit
		_, err = tx.Appointments().GetActiveByBlock(ctx, block.ID)
		switch {
		case stderrors.Is(err, repository.ErrNotFound):
		case err != nil:
			return errors.Internal(err)
		default:
			return errors.Internal(fmt.Errorf("block %d still has an active appointment", block.ID))
		}

		payload := event.NewAppointmentPayload(appt, block, c.client, c.svc.clock())
		if err := event.Write(ctx, tx.Outbox(), event.AppointmentCancelled, payload); err != nil {
			return errors.Internal(err)
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cancelled {
		c.svc.metrics.AppointmentTransitions.WithLabelValues(string(model.AppointmentStatusCancelled)).Inc()
	}
	return appt, nil
}

// CancelBlockAppointment cancels the caller's active appointment on blockID.
func (c *Context) CancelBlockAppointment(ctx context.Context, blockID int64) (*model.Appointment, error) {
	block, err := c.store.ScheduleBlocks().Get(ctx, blockID)
	if err != nil {
		return nil, schedule.StoreError("schedule block", err)
	}
	if !block.Booked() {
		return nil, errors.NotFound("appointment", nil)
	}
	return c.CancelAppointment(ctx, block.Appointment.ID)
}

// DeleteAppointment removes the caller's active appointment on blockID.
func (c *Context) DeleteAppointment(ctx context.Context, blockID int64) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		block, err := tx.ScheduleBlocks().GetForUpdate(ctx, blockID)
		if err != nil {
			return schedule.StoreError("schedule block", err)
		}
		if !block.Booked() {
			return errors.NotFound("appointment", nil)
		}
		appt := block.Appointment
		if appt.ClientID != c.client.ID {
			return errors.Forbidden("appointment belongs to another client", nil)
		}

		if err := tx.Appointments().Delete(ctx, appt.ID); err != nil {
			return schedule.StoreError("appointment", err)
		}

		payload := event.NewAppointmentPayload(appt, block, c.client, c.svc.clock())
		if err := event.Write(ctx, tx.Outbox(), event.AppointmentDeleted, payload); err != nil {
			return errors.Internal(err)
		}
		return nil
	})
}

// Appointments lists the caller's appointments.
func (c *Context) Appointments(ctx context.Context) ([]*model.AppointmentDetail, error) {
	list, err := c.store.Appointments().ListByClient(ctx, c.client.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return list, nil
}

// WeekBlocks returns therapistID's grid for the week containing reference,
// defaulting to the current week.
func (c *Context) WeekBlocks(ctx context.Context, therapistID int64, reference *time.Time) (*schedule.Week, error) {
	if _, err := c.GetTherapist(ctx, therapistID); err != nil {
		return nil, err
	}
	ref := c.svc.clock().In(c.svc.loc)
	if reference != nil {
		ref = reference.In(c.svc.loc)
	}
	return schedule.LoadWeek(ctx, c.store.ScheduleBlocks(), therapistID, ref)
}
