package event

import (
	"time"

	"github.com/jwalitptl/renova-api/internal/model"
)

type EventType string

// Appointment lifecycle events. The event type doubles as the broker channel.
const (
	AppointmentBooked    EventType = "appointment.booked"
	AppointmentConfirmed EventType = "appointment.confirmed"
	AppointmentCancelled EventType = "appointment.cancelled"
	AppointmentDeleted   EventType = "appointment.deleted"
)

// AppointmentEvents lists every appointment event type.
var AppointmentEvents = []EventType{
	AppointmentBooked,
	AppointmentConfirmed,
	AppointmentCancelled,
	AppointmentDeleted,
}

func (t EventType) String() string {
	return string(t)
}

// AppointmentPayload is the body of every appointment event
type AppointmentPayload struct {
	AppointmentID   int64                   `json:"appointment_id"`
	ScheduleBlockID int64                   `json:"schedule_block_id"`
	ClientID        int64                   `json:"client_id"`
	TherapistID     int64                   `json:"therapist_id"`
	Status          model.AppointmentStatus `json:"status"`
	StartAt         time.Time               `json:"start_at"`
	EndAt           time.Time               `json:"end_at"`
	ActorRole       model.Role              `json:"actor_role"`
	ActorID         int64                   `json:"actor_id"`
	OccurredAt      time.Time               `json:"occurred_at"`
}

// NewAppointmentPayload describes appointment a on block b.
func NewAppointmentPayload(a *model.Appointment, b *model.ScheduleBlock, actor model.User, at time.Time) AppointmentPayload {
	p := AppointmentPayload{
		AppointmentID:   a.ID,
		ScheduleBlockID: b.ID,
		ClientID:        a.ClientID,
		TherapistID:     b.TherapistID,
		Status:          a.Status,
		StartAt:         b.StartAt,
		EndAt:           b.EndAt,
		OccurredAt:      at.UTC(),
	}
	if actor != nil {
		p.ActorRole = actor.UserRole()
		p.ActorID = actor.UserID()
	}
	return p
}
