package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/barbartender/bartender/internal/model"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/barbartender/bartender/internal/pkg/jwt"
	"github.com/barbartender/bartender/internal/repo"
)

func newAuthForTest(t *testing.T, codes ...string) (*AuthService, *repo.UserRepo, *mockSender) {
	t.Helper()
	conn := openTestDB(t)
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	verification := NewVerificationService(repo.NewVerificationRepo(conn, "sqlite"), sender, 10*time.Minute)
	verification.newCode = codeSequence(codes...)
	users := repo.NewUserRepo(conn, "sqlite")
	return NewAuthService(users, verification, []byte("secret"), time.Hour), users, sender
}

func TestAuthRegisterVerifyLogin(t *testing.T) {
	freezeClock(t)
	ctx := context.Background()
	auth, users, _ := newAuthForTest(t, "123456")

	receipt, err := auth.Register(ctx, "alice", "A@X.com", "s3cret!")
	require.NoError(t, err)
	require.True(t, receipt.Delivered)

	_, err = users.GetByEmail(ctx, "a@x.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	user, err := auth.VerifyRegistration(ctx, "a@x.com", "123456")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	_, token, err := auth.Login(ctx, "a@x.com", "s3cret!")
	require.NoError(t, err)
	claims, err := jwt.ParseToken(token, []byte("secret"))
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	_, _, err = auth.Login(ctx, "a@x.com", "wrong-pass")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}

func TestAuthRegisterRejectsTakenIdentity(t *testing.T) {
	ctx := context.Background()
	auth, users, sender := newAuthForTest(t, "123456")
	require.NoError(t, users.Create(ctx, &model.User{ID: "u1", Username: "alice", Email: "a@x.com", PasswordHash: "h"}))

	_, err := auth.Register(ctx, "bob", "a@x.com", "s3cret!")
	require.ErrorIs(t, err, appErr.ErrEmailTaken)
	_, err = auth.Register(ctx, "alice", "b@x.com", "s3cret!")
	require.ErrorIs(t, err, appErr.ErrUsernameTaken)
	_, err = auth.Register(ctx, "carol", "c@x.com", "123")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = auth.Register(ctx, "", "c@x.com", "s3cret!")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthVerifyAfterEmailTaken(t *testing.T) {
	freezeClock(t)
	ctx := context.Background()
	auth, users, _ := newAuthForTest(t, "123456")
	_, err := auth.Register(ctx, "alice", "a@x.com", "s3cret!")
	require.NoError(t, err)

	require.NoError(t, users.Create(ctx, &model.User{ID: "u9", Username: "other", Email: "a@x.com", PasswordHash: "h"}))
	_, err = auth.VerifyRegistration(ctx, "a@x.com", "123456")
	require.ErrorIs(t, err, appErr.ErrEmailTaken)
}

// flakyUsers fails the first n creates.
type flakyUsers struct {
	UserStore
	failures int
}

func (f *flakyUsers) Create(ctx context.Context, user *model.User) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("db connection reset")
	}
	return f.UserStore.Create(ctx, user)
}

func TestAuthVerifyKeepsCodeWhenCreateFails(t *testing.T) {
	freezeClock(t)
	ctx := context.Background()
	conn := openTestDB(t)
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	verification := NewVerificationService(repo.NewVerificationRepo(conn, "sqlite"), sender, 10*time.Minute)
	verification.newCode = codeSequence("123456", "654321")
	users := &flakyUsers{UserStore: repo.NewUserRepo(conn, "sqlite"), failures: 1}
	auth := NewAuthService(users, verification, []byte("secret"), time.Hour)

	_, err := auth.Register(ctx, "alice", "a@x.com", "s3cret!")
	require.NoError(t, err)

	_, err = auth.VerifyRegistration(ctx, "a@x.com", "123456")
	require.EqualError(t, err, "db connection reset")

	user, err := auth.VerifyRegistration(ctx, "a@x.com", "123456")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	_, err = auth.ResendCode(ctx, "a@x.com")
	require.ErrorIs(t, err, appErr.ErrCodeNotFound)
}

func TestAuthResendAfterFailedCreate(t *testing.T) {
	freezeClock(t)
	ctx := context.Background()
	conn := openTestDB(t)
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	verification := NewVerificationService(repo.NewVerificationRepo(conn, "sqlite"), sender, 10*time.Minute)
	verification.newCode = codeSequence("123456", "654321")
	users := &flakyUsers{UserStore: repo.NewUserRepo(conn, "sqlite"), failures: 1}
	auth := NewAuthService(users, verification, []byte("secret"), time.Hour)

	_, err := auth.Register(ctx, "alice", "a@x.com", "s3cret!")
	require.NoError(t, err)
	_, err = auth.VerifyRegistration(ctx, "a@x.com", "123456")
	require.Error(t, err)

	_, err = auth.ResendCode(ctx, "a@x.com")
	require.NoError(t, err)
	_, err = auth.VerifyRegistration(ctx, "a@x.com", "123456")
	require.ErrorIs(t, err, appErr.ErrCodeInvalid)
	user, err := auth.VerifyRegistration(ctx, "a@x.com", "654321")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", user.Email)
}
