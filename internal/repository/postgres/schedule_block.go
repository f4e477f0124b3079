package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/renova-api/internal/model"
)

// blockSelect joins each block with its active appointment
const blockSelect = `
	SELECT b.id, b.therapist_id, b.start_at, b.end_at, b.created_at, b.updated_at,
		a.id AS appointment_id,
		a.client_id AS appointment_client_id,
		a.status AS appointment_status,
		a.created_at AS appointment_created_at,
		a.updated_at AS appointment_updated_at
	FROM schedule_blocks b
	LEFT JOIN appointments a
		ON a.schedule_block_id = b.id AND a.status <> 'cancelled'
`

type blockRow struct {
	model.ScheduleBlock
	AppointmentID        sql.NullInt64  `db:"appointment_id"`
	AppointmentClientID  sql.NullInt64  `db:"appointment_client_id"`
	AppointmentStatus    sql.NullString `db:"appointment_status"`
	AppointmentCreatedAt sql.NullTime   `db:"appointment_created_at"`
	AppointmentUpdatedAt sql.NullTime   `db:"appointment_updated_at"`
}

func (r *blockRow) toModel() *model.ScheduleBlock {
	block := r.ScheduleBlock
	if r.AppointmentID.Valid {
		block.Appointment = &model.Appointment{
			ID:              r.AppointmentID.Int64,
			ScheduleBlockID: block.ID,
			ClientID:        r.AppointmentClientID.Int64,
			Status:          model.AppointmentStatus(r.AppointmentStatus.String),
			Timestamps: model.Timestamps{
				CreatedAt: r.AppointmentCreatedAt.Time,
				UpdatedAt: r.AppointmentUpdatedAt.Time,
			},
		}
	}
	return &block
}

func toBlocks(rows []blockRow) []*model.ScheduleBlock {
	blocks := make([]*model.ScheduleBlock, 0, len(rows))
	for i := range rows {
		blocks = append(blocks, rows[i].toModel())
	}
	return blocks
}

type scheduleBlockRepository struct {
	db sqlx.ExtContext
}

func (r *scheduleBlockRepository) Create(ctx context.Context, block *model.ScheduleBlock) error {
	query := `
		INSERT INTO schedule_blocks (therapist_id, start_at, end_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	block.Touch(time.Now().UTC())

	err := r.db.QueryRowxContext(ctx, query,
		block.TherapistID,
		block.StartAt,
		block.EndAt,
		block.CreatedAt,
		block.UpdatedAt,
	).Scan(&block.ID)
	return mapError("create schedule block", err)
}

func (r *scheduleBlockRepository) Get(ctx context.Context, id int64) (*model.ScheduleBlock, error) {
	var row blockRow
	if err := sqlx.GetContext(ctx, r.db, &row, blockSelect+` WHERE b.id = $1`, id); err != nil {
		return nil, mapError("get schedule block", err)
	}
	return row.toModel(), nil
}

func (r *scheduleBlockRepository) GetForUpdate(ctx context.Context, id int64) (*model.ScheduleBlock, error) {
	var row blockRow
	if err := sqlx.GetContext(ctx, r.db, &row, blockSelect+` WHERE b.id = $1 FOR UPDATE OF b`, id); err != nil {
		return nil, mapError("lock schedule block", err)
	}
	return row.toModel(), nil
}

func (r *scheduleBlockRepository) Update(ctx context.Context, block *model.ScheduleBlock) error {
	query := `
		UPDATE schedule_blocks
		SET start_at = $1, end_at = $2, updated_at = $3
		WHERE id = $4
	`
	block.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query, block.StartAt, block.EndAt, block.UpdatedAt, block.ID)
	if err != nil {
		return mapError("update schedule block", err)
	}
	return expectOne("update schedule block", result)
}

func (r *scheduleBlockRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedule_blocks WHERE id = $1`, id)
	if err != nil {
		return mapError("delete schedule block", err)
	}
	return expectOne("delete schedule block", result)
}

func (r *scheduleBlockRepository) ListInRange(ctx context.Context, therapistID int64, from, to time.Time) ([]*model.ScheduleBlock, error) {
	query := blockSelect + `
		WHERE b.therapist_id = $1 AND b.start_at >= $2 AND b.start_at < $3
		ORDER BY b.start_at`

	var rows []blockRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, therapistID, from, to); err != nil {
		return nil, mapError("list schedule blocks", err)
	}
	return toBlocks(rows), nil
}

func (r *scheduleBlockRepository) ListOpen(ctx context.Context, therapistID int64) ([]*model.ScheduleBlock, error) {
	query := blockSelect + `
		WHERE b.therapist_id = $1 AND a.id IS NULL
		ORDER BY b.start_at`

	var rows []blockRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, therapistID); err != nil {
		return nil, mapError("list open schedule blocks", err)
	}
	return toBlocks(rows), nil
}
