package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/renova-api/internal/model"
)

const appointmentColumns = `id, schedule_block_id, client_id, status, created_at, updated_at`

const appointmentDetailSelect = `
	SELECT a.id, a.schedule_block_id, a.client_id, a.status, a.created_at, a.updated_at,
		b.therapist_id, b.start_at, b.end_at
	FROM appointments a
	JOIN schedule_blocks b ON b.id = a.schedule_block_id
`

type appointmentRepository struct {
	db sqlx.ExtContext
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (schedule_block_id, client_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	appointment.Touch(time.Now().UTC())

	err := r.db.QueryRowxContext(ctx, query,
		appointment.ScheduleBlockID,
		appointment.ClientID,
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	).Scan(&appointment.ID)
	return mapError("create appointment", err)
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	var appointment model.Appointment
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, &appointment, query, id); err != nil {
		return nil, mapError("get appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) GetActiveByBlock(ctx context.Context, blockID int64) (*model.Appointment, error) {
	var appointment model.Appointment
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE schedule_block_id = $1 AND status <> 'cancelled'`
	if err := sqlx.GetContext(ctx, r.db, &appointment, query, blockID); err != nil {
		return nil, mapError("get active appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus) error {
	query := `UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return mapError("update appointment status", err)
	}
	return expectOne("update appointment status", result)
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return mapError("delete appointment", err)
	}
	return expectOne("delete appointment", result)
}

func (r *appointmentRepository) ListByClient(ctx context.Context, clientID int64) ([]*model.AppointmentDetail, error) {
	appointments := []*model.AppointmentDetail{}
	query := appointmentDetailSelect + ` WHERE a.client_id = $1 ORDER BY b.start_at`
	if err := sqlx.SelectContext(ctx, r.db, &appointments, query, clientID); err != nil {
		return nil, mapError("list client appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByTherapist(ctx context.Context, therapistID int64) ([]*model.AppointmentDetail, error) {
	appointments := []*model.AppointmentDetail{}
	query := appointmentDetailSelect + ` WHERE b.therapist_id = $1 ORDER BY b.start_at`
	if err := sqlx.SelectContext(ctx, r.db, &appointments, query, therapistID); err != nil {
		return nil, mapError("list therapist appointments", err)
	}
	return appointments, nil
}
