package owner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository/memory"
	"github.com/jwalitptl/renova-api/pkg/errors"
	"github.com/jwalitptl/renova-api/pkg/logger"
)

func TestPendingAndConfirm(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	o := &model.Owner{Person: model.Person{FirstName: "Olga", Email: "olga@example.com"}}
	require.NoError(t, store.Owners().Create(ctx, o))
	pending := &model.Therapist{Person: model.Person{FirstName: "Pat", Email: "pat@example.com"}}
	require.NoError(t, store.Therapists().Create(ctx, pending))
	hired := &model.Therapist{Person: model.Person{FirstName: "Hal", Email: "hal@example.com"}, Status: model.EmploymentFullTime}
	require.NoError(t, store.Therapists().Create(ctx, hired))

	svc := NewService(logger.Nop())
	oc, err := svc.For(ctx, access.NewContext(store, &access.Credential{ID: o.ID, Role: model.RoleOwner}))
	require.NoError(t, err)

	list, err := oc.PendingTherapists(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	th, err := oc.ConfirmTherapist(ctx, pending.ID, model.EmploymentPending)
	require.NoError(t, err)
	assert.Equal(t, model.EmploymentPending, th.Status)

	th, err = oc.ConfirmTherapist(ctx, pending.ID, model.EmploymentPartTime)
	require.NoError(t, err)
	assert.Equal(t, model.EmploymentPartTime, th.Status)

	list, err = oc.PendingTherapists(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = oc.ConfirmTherapist(ctx, 9999, model.EmploymentFullTime)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = oc.ConfirmTherapist(ctx, pending.ID, "contractor")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestForRequiresOwner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	th := &model.Therapist{Person: model.Person{Email: "t@example.com"}}
	require.NoError(t, store.Therapists().Create(ctx, th))

	_, err := NewService(logger.Nop()).For(ctx, access.NewContext(store, &access.Credential{ID: th.ID, Role: model.RoleTherapist}))
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}
