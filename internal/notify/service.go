// Package notify turns appointment events into e-mails for the party that
// did not trigger them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/renova-api/internal/email"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
	"github.com/jwalitptl/renova-api/pkg/event"
	"github.com/jwalitptl/renova-api/pkg/logger"
	"github.com/jwalitptl/renova-api/pkg/messaging"
	"github.com/jwalitptl/renova-api/pkg/metrics"
)

const (
	statusSent    = "sent"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

type Service struct {
	store   repository.Store
	mail    email.Service
	loc     *time.Location
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(store repository.Store, mail email.Service, loc *time.Location, log *logger.Logger, m *metrics.Metrics) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, mail: mail, loc: loc, logger: log.With("notify"), metrics: m}
}

// Start subscribes to every appointment event.
func (s *Service) Start(ctx context.Context, broker messaging.MessageBroker) error {
	topics := make([]string, 0, len(event.AppointmentEvents))
	for _, t := range event.AppointmentEvents {
		topics = append(topics, t.String())
	}
	return broker.Subscribe(ctx, s.Handle, topics...)
}

type recipient struct {
	email string
	name  string
}

// Handle sends the e-mail for one appointment event.
func (s *Service) Handle(ctx context.Context, msg messaging.Message) error {
	var p event.AppointmentPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		s.record(msg.Type, statusFailed)
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}

	to, err := s.recipient(ctx, p)
	if err != nil {
		s.record(msg.Type, statusFailed)
		return err
	}

	subject, body, ok := compose(event.EventType(msg.Type), p, to.name, s.loc)
	if !ok {
		s.record(msg.Type, statusSkipped)
		return nil
	}

	if err := s.mail.Send(ctx, to.email, subject, body); err != nil {
		s.record(msg.Type, statusFailed)
		return err
	}
	s.record(msg.Type, statusSent)
	s.logger.Debug("Notification sent", "type", msg.Type, "appointment_id", p.AppointmentID)
	return nil
}

// recipient is the therapist when the client acted and the client otherwise.
func (s *Service) recipient(ctx context.Context, p event.AppointmentPayload) (recipient, error) {
	if p.ActorRole == model.RoleClient {
		th, err := s.store.Therapists().Get(ctx, p.TherapistID)
		if err != nil {
			return recipient{}, fmt.Errorf("failed to load therapist %d: %w", p.TherapistID, err)
		}
		return recipient{email: th.Email, name: th.FullName()}, nil
	}

	cl, err := s.store.Clients().Get(ctx, p.ClientID)
	if err != nil {
		return recipient{}, fmt.Errorf("failed to load client %d: %w", p.ClientID, err)
	}
	return recipient{email: cl.Email, name: cl.FullName()}, nil
}

func compose(t event.EventType, p event.AppointmentPayload, name string, loc *time.Location) (string, string, bool) {
	when := p.StartAt.In(loc).Format("Monday, January 2 2006 at 15:04")

	var subject, line string
	switch t {
	case event.AppointmentBooked:
		subject = "New appointment request"
		line = fmt.Sprintf("A client requested the appointment on %s.", when)
	case event.AppointmentConfirmed:
		subject = "Appointment confirmed"
		line = fmt.Sprintf("Your appointment on %s is confirmed.", when)
	case event.AppointmentCancelled:
		subject = "Appointment cancelled"
		line = fmt.Sprintf("The appointment on %s was cancelled.", when)
	case event.AppointmentDeleted:
		subject = "Appointment removed"
		line = fmt.Sprintf("The appointment on %s was removed from the schedule.", when)
	default:
		return "", "", false
	}
	return subject, fmt.Sprintf("Hello %s,\n\n%s\n\nRenova", name, line), true
}

func (s *Service) record(eventType, status string) {
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(eventType, status).Inc()
	}
}
