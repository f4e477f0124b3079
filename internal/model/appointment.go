package model

import (
	"errors"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// ErrAppointmentCancelled is returned when a cancelled appointment is confirmed
var ErrAppointmentCancelled = errors.New("appointment is cancelled")

type Appointment struct {
	ID              int64             `db:"id" json:"id"`
	ScheduleBlockID int64             `db:"schedule_block_id" json:"schedule_block_id"`
	ClientID        int64             `db:"client_id" json:"client_id"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Timestamps
}

// Active reports whether the appointment still holds its block.
func (a *Appointment) Active() bool {
	return a.Status != AppointmentStatusCancelled
}

// Confirm moves a pending appointment to confirmed. Confirming twice is a no-op.
func (a *Appointment) Confirm() error {
	switch a.Status {
	case AppointmentStatusPending, AppointmentStatusConfirmed:
		a.Status = AppointmentStatusConfirmed
		return nil
	default:
		return ErrAppointmentCancelled
	}
}

func (a *Appointment) Cancel() {
	a.Status = AppointmentStatusCancelled
}

// AppointmentDetail is an appointment joined with the timing of its block,
// used for the client and therapist appointment listings.
type AppointmentDetail struct {
	Appointment
	TherapistID int64     `db:"therapist_id" json:"therapist_id"`
	StartAt     time.Time `db:"start_at" json:"start_at"`
	EndAt       time.Time `db:"end_at" json:"end_at"`
}
