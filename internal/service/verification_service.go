package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/model"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/barbartender/bartender/internal/pkg/password"
	"github.com/barbartender/bartender/internal/pkg/timeutil"
	"github.com/barbartender/bartender/internal/pkg/validate"
)

const codeDigits = 6

// VerificationStore holds at most one code per email.
type VerificationStore interface {
	// Replace drops any code stored for the email and stores code instead.
	Replace(ctx context.Context, code *model.VerificationCode) error
	GetByEmail(ctx context.Context, email string) (*model.VerificationCode, error)
	// Remove deletes exactly this code and reports whether the caller was
	// the one that removed it.
	Remove(ctx context.Context, code *model.VerificationCode) (bool, error)
	DeleteExpired(ctx context.Context, now int64) (int64, error)
}

type SendReceipt struct {
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at"`
	Delivered bool   `json:"delivered"`
}

type VerificationService struct {
	store   VerificationStore
	sender  EmailSender
	ttl     time.Duration
	newCode func() (string, error)
}

func NewVerificationService(store VerificationStore, sender EmailSender, ttl time.Duration) *VerificationService {
	return &VerificationService{store: store, sender: sender, ttl: ttl, newCode: generateCode}
}

// GenerateAndSend replaces any code for email with a fresh one and mails
// it. A failed delivery still returns a receipt, with Delivered unset.
func (s *VerificationService) GenerateAndSend(ctx context.Context, email string, pending *model.PendingRegistration) (*SendReceipt, error) {
	email = normalizeEmail(email)
	if !validate.Email(email) || pending == nil {
		return nil, appErr.ErrInvalid
	}
	code, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	codeHash, err := password.HashCode(code)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	item := &model.VerificationCode{
		ID:           newID(),
		Email:        email,
		Username:     pending.Username,
		PasswordHash: pending.PasswordHash,
		CodeHash:     codeHash,
		Ctime:        now,
		ExpiresAt:    now + int64(s.ttl/time.Second),
	}
	if err := s.store.Replace(ctx, item); err != nil {
		return nil, fmt.Errorf("store verification code: %w", err)
	}
	receipt := &SendReceipt{Email: email, ExpiresAt: item.ExpiresAt}
	if err := s.deliver(ctx, email, code); err != nil {
		logutil.GetLogger(ctx).Warn("send verification email failed", zap.String("email", email), zap.Error(err))
		return receipt, nil
	}
	receipt.Delivered = true
	return receipt, nil
}

func (s *VerificationService) deliver(ctx context.Context, email, code string) error {
	if s.sender == nil {
		return appErr.ErrMailNotConfigured
	}
	text, html, err := renderVerificationMail(code, int(s.ttl/time.Minute))
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, email, verificationSubject, text, html)
}

// Validate consumes the code for email. Only the caller whose delete
// actually removed the row gets the pending registration back.
func (s *VerificationService) Validate(ctx context.Context, email, code string) (*model.PendingRegistration, error) {
	item, err := s.consume(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return item.Pending(), nil
}

// Consume validates the code like Validate and then hands the pending
// registration to apply. When apply fails the row is put back so the same
// code, or a resend, still works. Conflict errors from apply leave the row
// consumed.
func (s *VerificationService) Consume(ctx context.Context, email, code string, apply func(ctx context.Context, pending *model.PendingRegistration) error) error {
	item, err := s.consume(ctx, email, code)
	if err != nil {
		return err
	}
	err = apply(ctx, item.Pending())
	if err == nil || isFinalApplyErr(err) {
		return err
	}
	if rerr := s.restore(ctx, item); rerr != nil {
		logutil.GetLogger(ctx).Error("restore verification code failed",
			zap.String("email", item.Email), zap.Error(rerr))
	}
	return err
}

func isFinalApplyErr(err error) bool {
	return errors.Is(err, appErr.ErrConflict) ||
		errors.Is(err, appErr.ErrEmailTaken) ||
		errors.Is(err, appErr.ErrUsernameTaken)
}

// restore puts item back unless a newer code was issued for the email in
// the meantime.
func (s *VerificationService) restore(ctx context.Context, item *model.VerificationCode) error {
	if _, err := s.store.GetByEmail(ctx, item.Email); err == nil {
		return nil
	} else if !errors.Is(err, appErr.ErrNotFound) {
		return err
	}
	return s.store.Replace(ctx, item)
}

func (s *VerificationService) consume(ctx context.Context, email, code string) (*model.VerificationCode, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if !validate.Email(email) || !isCodeFormat(code) {
		return nil, appErr.ErrInvalid
	}
	item, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.ErrCodeNotFound
		}
		return nil, err
	}
	if item.Expired(timeutil.NowUnix()) {
		if _, err := s.store.Remove(ctx, item); err != nil {
			return nil, err
		}
		return nil, appErr.ErrCodeExpired
	}
	if err := password.Compare(item.CodeHash, code); err != nil {
		return nil, appErr.ErrCodeInvalid
	}
	removed, err := s.store.Remove(ctx, item)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, appErr.ErrCodeNotFound
	}
	return item, nil
}

// Resend issues a new code for the registration already pending on email,
// even when its code has expired.
func (s *VerificationService) Resend(ctx context.Context, email string) (*SendReceipt, error) {
	email = normalizeEmail(email)
	if !validate.Email(email) {
		return nil, appErr.ErrInvalid
	}
	item, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.ErrCodeNotFound
		}
		return nil, err
	}
	return s.GenerateAndSend(ctx, email, item.Pending())
}

func (s *VerificationService) CleanupExpired(ctx context.Context, now int64) (int64, error) {
	return s.store.DeleteExpired(ctx, now)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func isCodeFormat(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
