package auth

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
	"github.com/jwalitptl/renova-api/pkg/logger"
	"github.com/jwalitptl/renova-api/pkg/security"
)

var ErrInvalidCredentials = stderrors.New("invalid credentials")

// Session is the outcome of a successful login
type Session struct {
	User  model.User `json:"user"`
	Token string     `json:"-"`
}

type Service struct {
	store     repository.Store
	hasher    security.PasswordHasher
	tokens    *access.TokenIssuer
	encryptor security.Encryptor
	clock     schedule.Clock
	logger    *logger.Logger
}

// NewService creates the auth service. encryptor may be nil, in which case
// void cheques are stored as given.
func NewService(
	store repository.Store,
	hasher security.PasswordHasher,
	tokens *access.TokenIssuer,
	encryptor security.Encryptor,
	clock schedule.Clock,
	log *logger.Logger,
) *Service {
	if clock == nil {
		clock = schedule.SystemClock
	}
	return &Service{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		encryptor: encryptor,
		clock:     clock,
		logger:    log.With("auth"),
	}
}

func (s *Service) lookup(ctx context.Context, role model.Role, email string) (model.User, error) {
	switch role {
	case model.RoleClient:
		return s.store.Clients().GetByEmail(ctx, email)
	case model.RoleTherapist:
		return s.store.Therapists().GetByEmail(ctx, email)
	case model.RoleOwner:
		return s.store.Owners().GetByEmail(ctx, email)
	default:
		return nil, repository.ErrNotFound
	}
}

func (s *Service) updateHash(ctx context.Context, user model.User, hash string) error {
	switch user.UserRole() {
	case model.RoleClient:
		return s.store.Clients().UpdatePasswordHash(ctx, user.UserID(), hash)
	case model.RoleTherapist:
		return s.store.Therapists().UpdatePasswordHash(ctx, user.UserID(), hash)
	case model.RoleOwner:
		return s.store.Owners().UpdatePasswordHash(ctx, user.UserID(), hash)
	default:
		return fmt.Errorf("unknown role %q", user.UserRole())
	}
}

// Login checks the password of the role record with the given email and
// issues a credential for it. Hashes made with a weaker cost are replaced.
func (s *Service) Login(ctx context.Context, role model.Role, email, password string) (*Session, error) {
	user, err := s.lookup(ctx, role, email)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized(ErrInvalidCredentials)
		}
		return nil, errors.Internal(err)
	}

	hash := user.Profile().PasswordHash
	if !s.hasher.Verify(hash, password) {
		return nil, errors.Unauthorized(ErrInvalidCredentials)
	}

	if s.hasher.NeedsRehash(hash) {
		if fresh, err := s.hasher.Hash(password); err == nil {
			if err := s.updateHash(ctx, user, fresh); err != nil {
				s.logger.Error(err, "Failed to rehash password", "role", string(role), "user_id", user.UserID())
			} else {
				user.Profile().PasswordHash = fresh
			}
		}
	}

	token, err := s.tokens.Issue(access.Credential{ID: user.UserID(), Role: user.UserRole()})
	if err != nil {
		return nil, errors.Internal(err)
	}

	s.logger.Info("User logged in", "role", string(role), "user_id", user.UserID())
	return &Session{User: user, Token: token}, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if stderrors.Is(err, security.ErrPasswordShort) {
		return "", errors.BadRequest(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), err)
	}
	if err != nil {
		return "", errors.Internal(err)
	}
	return hash, nil
}

// RegisterClient creates a client account.
func (s *Service) RegisterClient(ctx context.Context, req *model.CreateClientRequest) (*model.Client, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	client := &model.Client{Person: req.Person()}
	client.PasswordHash = hash
	if err := s.store.Clients().Create(ctx, client); err != nil {
		return nil, registerError(err)
	}
	return client, nil
}

// RegisterTherapist creates a therapist account awaiting owner confirmation.
func (s *Service) RegisterTherapist(ctx context.Context, req *model.CreateTherapistRequest) (*model.Therapist, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	cheque := req.VoidCheque
	if s.encryptor != nil && cheque != "" {
		if cheque, err = security.SealString(s.encryptor, cheque); err != nil {
			return nil, errors.Internal(err)
		}
	}

	now := s.clock()
	th := &model.Therapist{
		Person:            req.Person(),
		LicenseNumber:     req.LicenseNumber,
		HiringDate:        time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		YearsOfExperience: req.YearsOfExperience,
		VoidCheque:        cheque,
		Status:            model.EmploymentPending,
	}
	th.PasswordHash = hash
	if err := s.store.Therapists().Create(ctx, th); err != nil {
		return nil, registerError(err)
	}
	return th, nil
}

// VoidCheque returns the therapist's void cheque in clear text.
func (s *Service) VoidCheque(th *model.Therapist) (string, error) {
	if s.encryptor == nil || th.VoidCheque == "" {
		return th.VoidCheque, nil
	}
	return security.OpenString(s.encryptor, th.VoidCheque)
}

func registerError(err error) error {
	if stderrors.Is(err, repository.ErrDuplicate) {
		return errors.Conflict("email is already registered", err)
	}
	return errors.Internal(err)
}
