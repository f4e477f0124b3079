// Package access resolves the session credential of a request into a
// role-scoped handle on the store.
package access

import (
	"context"
	stderrors "errors"

	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
	"github.com/jwalitptl/renova-api/pkg/errors"
)

// ErrNoCredential is wrapped by the Unauthorized error of a request that
// carries no usable credential.
var ErrNoCredential = stderrors.New("authentication required")

// Requirement describes what an endpoint needs from the credential
type Requirement struct {
	mandatory bool
	role      model.Role
}

var (
	// Optional lets anonymous requests through as unauthenticated contexts
	Optional = Requirement{}
	// Authenticated rejects requests without a valid credential
	Authenticated = Requirement{mandatory: true}
)

// RequireRole rejects requests that are not authenticated as role.
func RequireRole(role model.Role) Requirement {
	return Requirement{mandatory: true, role: role}
}

func (r Requirement) Mandatory() bool { return r.mandatory }

type Resolver struct {
	store  repository.Store
	tokens *TokenIssuer
}

func NewResolver(store repository.Store, tokens *TokenIssuer) *Resolver {
	return &Resolver{store: store, tokens: tokens}
}

// Resolve turns a raw token into a Context according to req.
func (r *Resolver) Resolve(ctx context.Context, token string, req Requirement) (*Context, error) {
	anonymous := &Context{store: r.store}

	if token == "" {
		if req.mandatory {
			return nil, errors.Unauthorized(ErrNoCredential)
		}
		return anonymous, nil
	}

	cred, err := r.tokens.Parse(token)
	if err != nil {
		if req.mandatory {
			return nil, errors.Forbidden("invalid credential", err)
		}
		return anonymous, nil
	}

	ac := &Context{store: r.store, cred: &cred}
	if req.role != "" {
		if cred.Role != req.role {
			return nil, errors.Forbidden("", nil)
		}
		if _, err := ac.User(ctx); err != nil {
			return nil, err
		}
	}
	return ac, nil
}

// Context is the per-request view of the caller. The zero credential is
// the unauthenticated context.
type Context struct {
	store repository.Store
	cred  *Credential
	user  model.User
}

// NewContext builds a context for cred directly, bypassing token parsing.
// A nil cred yields the unauthenticated context.
func NewContext(store repository.Store, cred *Credential) *Context {
	return &Context{store: store, cred: cred}
}

func (c *Context) Authenticated() bool {
	return c.cred != nil
}

// Credential returns the caller's credential, if any.
func (c *Context) Credential() (Credential, bool) {
	if c.cred == nil {
		return Credential{}, false
	}
	return *c.cred, true
}

func (c *Context) Store() repository.Store {
	return c.store
}

// User loads the record the credential points at. Unknown roles and
// missing rows are both Forbidden.
func (c *Context) User(ctx context.Context) (model.User, error) {
	if c.cred == nil {
		return nil, errors.Unauthorized(ErrNoCredential)
	}
	if c.user != nil {
		return c.user, nil
	}

	var (
		user model.User
		err  error
	)
	switch c.cred.Role {
	case model.RoleClient:
		var v *model.Client
		v, err = c.store.Clients().Get(ctx, c.cred.ID)
		user = v
	case model.RoleTherapist:
		var v *model.Therapist
		v, err = c.store.Therapists().Get(ctx, c.cred.ID)
		user = v
	case model.RoleOwner:
		var v *model.Owner
		v, err = c.store.Owners().Get(ctx, c.cred.ID)
		user = v
	default:
		return nil, errors.Forbidden("unknown role", nil)
	}

	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.Forbidden("", err)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	c.user = user
	return user, nil
}

func (c *Context) require(ctx context.Context, role model.Role) (model.User, error) {
	if c.cred == nil {
		return nil, errors.Unauthorized(ErrNoCredential)
	}
	if c.cred.Role != role {
		return nil, errors.Forbidden("", nil)
	}
	return c.User(ctx)
}

func (c *Context) Client(ctx context.Context) (*model.Client, error) {
	u, err := c.require(ctx, model.RoleClient)
	if err != nil {
		return nil, err
	}
	return u.(*model.Client), nil
}

func (c *Context) Therapist(ctx context.Context) (*model.Therapist, error) {
	u, err := c.require(ctx, model.RoleTherapist)
	if err != nil {
		return nil, err
	}
	return u.(*model.Therapist), nil
}

func (c *Context) Owner(ctx context.Context) (*model.Owner, error) {
	u, err := c.require(ctx, model.RoleOwner)
	if err != nil {
		return nil, err
	}
	return u.(*model.Owner), nil
}
