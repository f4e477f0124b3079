package model

import "time"

// BlockDuration is the length of a schedule block created from a start time
const BlockDuration = time.Hour

// ScheduleBlock is a one-hour availability slot owned by a therapist.
// Appointment is the block's active appointment, nil when the block is open.
type ScheduleBlock struct {
	ID          int64        `db:"id" json:"id"`
	TherapistID int64        `db:"therapist_id" json:"therapist_id"`
	StartAt     time.Time    `db:"start_at" json:"start_at"`
	EndAt       time.Time    `db:"end_at" json:"end_at"`
	Appointment *Appointment `db:"-" json:"appointment,omitempty"`
	Timestamps
}

func (b *ScheduleBlock) Booked() bool {
	return b.Appointment != nil
}

// WeekGrid is indexed by [weekday][hour], Sunday = 0
type WeekGrid [7][24]*ScheduleBlock

// CreateScheduleBlockRequest creates a block either from an explicit start
// or from a weekday/hour pair relative to a reference date.
type CreateScheduleBlockRequest struct {
	StartAt *time.Time `json:"start_at"`
	Weekday *int       `json:"weekday" binding:"omitempty,gte=0,lte=6"`
	Hour    *int       `json:"hour" binding:"omitempty,gte=0,lte=23"`
	Date    *time.Time `json:"date"`
}

type UpdateScheduleBlockRequest struct {
	StartAt time.Time `json:"start_at" binding:"required"`
	EndAt   time.Time `json:"end_at" binding:"required,gtfield=StartAt"`
}

type CreateAppointmentRequest struct {
	ClientID int64 `json:"client_id" binding:"required,gt=0"`
}
