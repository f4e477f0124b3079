package owner

import (
	"context"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
	"github.com/jwalitptl/renova-api/internal/service/schedule"
	"github.com/jwalitptl/renova-api/pkg/errors"
	"github.com/jwalitptl/renova-api/pkg/logger"
)

type Service struct {
	logger *logger.Logger
}

func NewService(log *logger.Logger) *Service {
	return &Service{logger: log.With("owner")}
}

// For binds the service to the owner behind ac.
func (s *Service) For(ctx context.Context, ac *access.Context) (*Context, error) {
	o, err := ac.Owner(ctx)
	if err != nil {
		return nil, err
	}
	return &Context{svc: s, store: ac.Store(), owner: o}, nil
}

type Context struct {
	svc   *Service
	store repository.Store
	owner *model.Owner
}

// PendingTherapists lists therapists awaiting confirmation.
func (c *Context) PendingTherapists(ctx context.Context) ([]*model.Therapist, error) {
	list, err := c.store.Therapists().ListByStatus(ctx, model.EmploymentPending)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return list, nil
}

// ConfirmTherapist sets a therapist's employment status. Confirming as
// pending leaves the therapist unchanged.
func (c *Context) ConfirmTherapist(ctx context.Context, id int64, status model.EmploymentStatus) (*model.Therapist, error) {
	switch status {
	case model.EmploymentFullTime, model.EmploymentPartTime, model.EmploymentPending:
	default:
		return nil, errors.BadRequest("unknown employment status", nil)
	}

	var th *model.Therapist
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		th, err = tx.Therapists().Get(ctx, id)
		if err != nil {
			return schedule.StoreError("therapist", err)
		}
		if !th.Confirm(status) {
			return nil
		}
		if err := tx.Therapists().UpdateStatus(ctx, id, th.Status); err != nil {
			return schedule.StoreError("therapist", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.svc.logger.Info("Therapist status updated",
		"owner_id", c.owner.ID,
		"therapist_id", id,
		"status", string(th.Status))
	return th, nil
}
