package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/barbartender/bartender/internal/model"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/barbartender/bartender/internal/pkg/jwt"
	"github.com/barbartender/bartender/internal/pkg/password"
	"github.com/barbartender/bartender/internal/pkg/timeutil"
	"github.com/barbartender/bartender/internal/pkg/validate"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type registerInput struct {
	Username string `validate:"required,min=2,max=64"`
	Email    string `validate:"required,email,max=255"`
}

type AuthService struct {
	users        UserStore
	verification *VerificationService
	jwtSecret    []byte
	jwtTTL       time.Duration
}

func NewAuthService(users UserStore, verification *VerificationService, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, verification: verification, jwtSecret: secret, jwtTTL: ttl}
}

// Register parks the registration behind an emailed code; no account
// exists until VerifyRegistration succeeds.
func (s *AuthService) Register(ctx context.Context, username, email, plainPassword string) (*SendReceipt, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if err := validate.Struct(registerInput{Username: username, Email: email}); err != nil {
		return nil, fmt.Errorf("%w: %s", appErr.ErrInvalid, err.Error())
	}
	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, err
	}
	return s.verification.GenerateAndSend(ctx, email, &model.PendingRegistration{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
}

func (s *AuthService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return appErr.ErrEmailTaken
	} else if !errors.Is(err, appErr.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return appErr.ErrUsernameTaken
	} else if !errors.Is(err, appErr.ErrNotFound) {
		return err
	}
	return nil
}

// VerifyRegistration creates the account for a confirmed code. If the
// insert fails for any reason other than a taken identity the code stays
// usable.
func (s *AuthService) VerifyRegistration(ctx context.Context, email, code string) (*model.User, error) {
	var user *model.User
	err := s.verification.Consume(ctx, email, code, func(ctx context.Context, pending *model.PendingRegistration) error {
		now := timeutil.NowUnix()
		candidate := &model.User{
			ID:           newID(),
			Username:     pending.Username,
			Email:        pending.Email,
			PasswordHash: pending.PasswordHash,
			Ctime:        now,
			Mtime:        now,
		}
		if err := s.users.Create(ctx, candidate); err != nil {
			if errors.Is(err, appErr.ErrConflict) {
				if aerr := s.ensureAvailable(ctx, candidate.Username, candidate.Email); aerr != nil {
					return aerr
				}
			}
			return err
		}
		user = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ResendCode(ctx context.Context, email string) (*SendReceipt, error) {
	return s.verification.Resend(ctx, email)
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Username, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
