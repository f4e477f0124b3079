package therapist

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

// ErrNotPrimaryTherapist is wrapped by the Forbidden returned when a
// therapist edits a patient file owned by another therapist.
var ErrNotPrimaryTherapist = stderrors.New("caller is not the primary therapist")

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
	return &Service{clock: clock, loc: loc, metrics: m, logger: log.With("therapist")}
}

// For binds the service to the therapist behind ac.
func (s *Service) For(ctx context.Context, ac *access.Context) (*Context, error) {
	th, err := ac.Therapist(ctx)
	if err != nil {
		return nil, err
	}
	return &Context{svc: s, store: ac.Store(), therapist: th}, nil
}

// Context exposes the operations available to one therapist
type Context struct {
	svc       *Service
	store     repository.Store
	therapist *model.Therapist
}

func (c *Context) Therapist() *model.Therapist {
	return c.therapist
}

func (c *Context) reference(day *time.Time) time.Time {
	if day != nil {
		return day.In(c.svc.loc)
	}
	return c.svc.clock().In(c.svc.loc)
}

// ownBlock loads a block and checks it belongs to the caller.
func (c *Context) ownBlock(ctx context.Context, tx repository.Store, id int64, lock bool) (*model.ScheduleBlock, error) {
	get := tx.ScheduleBlocks().Get
	if lock {
		get = tx.ScheduleBlocks().GetForUpdate
	}
	block, err := get(ctx, id)
	if err != nil {
		return nil, schedule.StoreError("schedule block", err)
	}
	if block.TherapistID != c.therapist.ID {
		return nil, errors.Forbidden("schedule block belongs to another therapist", nil)
	}
	return block, nil
}

// CreateScheduleBlock adds a one-hour block starting at start. Overlapping
// blocks are accepted.
func (c *Context) CreateScheduleBlock(ctx context.Context, start time.Time) (*model.ScheduleBlock, error) {
	block := &model.ScheduleBlock{
		TherapistID: c.therapist.ID,
		StartAt:     start,
		EndAt:       start.Add(model.BlockDuration),
	}
	if err := c.store.ScheduleBlocks().Create(ctx, block); err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to create schedule block: %w", err))
	}

	c.svc.metrics.ScheduleBlocksCreated.Inc()
	c.svc.logger.Debug("Schedule block created",
		"therapist_id", c.therapist.ID,
		"block_id", block.ID,
		"start_at", block.StartAt)
	return block, nil
}

// CreateScheduleBlockAt creates the block for a weekday/hour cell of the
// week containing reference (today when nil).
func (c *Context) CreateScheduleBlockAt(ctx context.Context, weekday time.Weekday, hour int, reference *time.Time) (*model.ScheduleBlock, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return nil, errors.BadRequest("weekday must be between 0 and 6", nil)
	}
	if hour < 0 || hour > 23 {
		return nil, errors.BadRequest("hour must be between 0 and 23", nil)
	}
	return c.CreateScheduleBlock(ctx, schedule.SlotStart(c.reference(reference), weekday, hour))
}

func (c *Context) GetScheduleBlock(ctx context.Context, id int64) (*model.ScheduleBlock, error) {
	return c.ownBlock(ctx, c.store, id, false)
}

// DeleteScheduleBlock removes the block together with its appointments.
func (c *Context) DeleteScheduleBlock(ctx context.Context, id int64) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		block, err := c.ownBlock(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if block.Booked() {
			payload := event.NewAppointmentPayload(block.Appointment, block, c.therapist, c.svc.clock())
			if err := event.Write(ctx, tx.Outbox(), event.AppointmentDeleted, payload); err != nil {
				return errors.Internal(err)
			}
		}

		if err := tx.ScheduleBlocks().Delete(ctx, id); err != nil {
			return schedule.StoreError("schedule block", err)
		}
		return nil
	})
}

// UpdateScheduleBlock overwrites the block's timing. A booked block keeps
// its appointment.
func (c *Context) UpdateScheduleBlock(ctx context.Context, id int64, start, end time.Time) (*model.ScheduleBlock, error) {
	if !end.After(start) {
		return nil, errors.BadRequest("end must be after start", nil)
	}

	var block *model.ScheduleBlock
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		block, err = c.ownBlock(ctx, tx, id, true)
		if err != nil {
			return err
		}
		block.StartAt = start
		block.EndAt = end
		if err := tx.ScheduleBlocks().Update(ctx, block); err != nil {
			return schedule.StoreError("schedule block", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// WeekBlocks returns the caller's grid for the week containing reference,
// defaulting to the current week.
func (c *Context) WeekBlocks(ctx context.Context, reference *time.Time) (*schedule.Week, error) {
	return schedule.LoadWeek(ctx, c.store.ScheduleBlocks(), c.therapist.ID, c.reference(reference))
}

// CreateAppointment books clientID into one of the caller's blocks. The
// appointment is confirmed straight away.
func (c *Context) CreateAppointment(ctx context.Context, blockID, clientID int64) (*model.Appointment, error) {
	var appt *model.Appointment
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		block, err := tx.ScheduleBlocks().GetForUpdate(ctx, blockID)
		if err != nil {
			return schedule.StoreError("schedule block", err)
		}
		// a booked block conflicts whoever owns it
		if block.Booked() {
			return errors.Conflict("schedule block is already booked", schedule.ErrBlockBooked)
		}
		if block.TherapistID != c.therapist.ID {
			return errors.Forbidden("schedule block belongs to another therapist", nil)
		}
		if _, err := tx.Clients().Get(ctx, clientID); err != nil {
			return schedule.StoreError("client", err)
		}

		appt = &model.Appointment{
			ScheduleBlockID: block.ID,
			ClientID:        clientID,
			Status:          model.AppointmentStatusConfirmed,
		}
		if err := tx.Appointments().Create(ctx, appt); err != nil {
			if stderrors.Is(err, repository.ErrDuplicate) {
				return errors.Conflict("schedule block is already booked", schedule.ErrBlockBooked)
			}
			return errors.Internal(err)
		}

		payload := event.NewAppointmentPayload(appt, block, c.therapist, c.svc.clock())
		if err := event.Write(ctx, tx.Outbox(), event.AppointmentConfirmed, payload); err != nil {
			return errors.Internal(err)
		}
		return nil
	})

	c.recordBooking(err)
	if err != nil {
		return nil, err
	}
	c.svc.metrics.AppointmentTransitions.WithLabelValues(string(model.AppointmentStatusConfirmed)).Inc()
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

// ConfirmAppointment moves a pending appointment on one of the caller's
// blocks to confirmed. Confirming a confirmed appointment is a no-op.
func (c *Context) ConfirmAppointment(ctx context.Context, appointmentID int64) (*model.Appointment, error) {
	var (
		appt      *model.Appointment
		confirmed bool
	)
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		appt, err = tx.Appointments().Get(ctx, appointmentID)
		if err != nil {
			return schedule.StoreError("appointment", err)
		}
		block, err := c.ownBlock(ctx, tx, appt.ScheduleBlockID, true)
		if err != nil {
			return err
		}
		confirmed, err = c.confirm(ctx, tx, appt, block)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.recordConfirm(confirmed)
	return appt, nil
}

// ConfirmBlockAppointment confirms the active appointment of a block.
func (c *Context) ConfirmBlockAppointment(ctx context.Context, blockID int64) (*model.Appointment, error) {
	var (
		appt      *model.Appointment
		confirmed bool
	)
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		block, err := c.ownBlock(ctx, tx, blockID, true)
		if err != nil {
			return err
		}
		if !block.Booked() {
			return errors.NotFound("appointment", nil)
		}
		appt = block.Appointment
		confirmed, err = c.confirm(ctx, tx, appt, block)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.recordConfirm(confirmed)
	return appt, nil
}

// confirm reports whether appt changed state.
func (c *Context) confirm(ctx context.Context, tx repository.Store, appt *model.Appointment, block *model.ScheduleBlock) (bool, error) {
	if appt.Status == model.AppointmentStatusConfirmed {
		return false, nil
	}
	if err := appt.Confirm(); err != nil {
		return false, errors.Conflict("appointment is cancelled", err)
	}
	if err := tx.Appointments().UpdateStatus(ctx, appt.ID, appt.Status); err != nil {
		return false, schedule.StoreError("appointment", err)
	}

	payload := event.NewAppointmentPayload(appt, block, c.therapist, c.svc.clock())
	if err := event.Write(ctx, tx.Outbox(), event.AppointmentConfirmed, payload); err != nil {
		return false, errors.Internal(err)
	}
	return true, nil
}

func (c *Context) recordConfirm(confirmed bool) {
	if confirmed {
		c.svc.metrics.AppointmentTransitions.WithLabelValues(string(model.AppointmentStatusConfirmed)).Inc()
	}
}

// Appointments lists the appointments on all of the caller's blocks.
func (c *Context) Appointments(ctx context.Context) ([]*model.AppointmentDetail, error) {
	list, err := c.store.Appointments().ListByTherapist(ctx, c.therapist.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return list, nil
}

// UpdatePatientFile creates or replaces clientID's patient file with the
// caller as primary therapist.
func (c *Context) UpdatePatientFile(ctx context.Context, clientID int64, input model.PatientFileInput) (*model.PatientFile, error) {
	var file *model.PatientFile
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Clients().Get(ctx, clientID); err != nil {
			return schedule.StoreError("client", err)
		}

		existing, err := tx.PatientFiles().GetByClient(ctx, clientID)
		switch {
		case err == nil:
			if existing.PrimaryTherapistID != c.therapist.ID {
				return errors.Forbidden("only the primary therapist may update this patient file", ErrNotPrimaryTherapist)
			}
		case stderrors.Is(err, repository.ErrNotFound):
		default:
			return errors.Internal(err)
		}

		file = &model.PatientFile{
			ClientID:           clientID,
			PrimaryTherapistID: c.therapist.ID,
			AdmissionDate:      input.AdmissionDate,
			DischargeDate:      input.DischargeDate,
			InsuranceNumber:    input.InsuranceNumber,
			BloodType:          input.BloodType,
			IsActive:           input.IsActive,
		}
		if err := tx.PatientFiles().Upsert(ctx, file); err != nil {
			return schedule.StoreError("patient file", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}
