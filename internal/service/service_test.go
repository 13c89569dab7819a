package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/barbartender/bartender/internal/config"
	"github.com/barbartender/bartender/internal/db"
	"github.com/barbartender/bartender/internal/pkg/timeutil"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// freezeClock pins timeutil.Now and returns a function that moves it.
func freezeClock(t *testing.T) func(d time.Duration) {
	t.Helper()
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	timeutil.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	t.Cleanup(func() { timeutil.Now = time.Now })
	return func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	args := m.Called(ctx, to, subject, textBody, htmlBody)
	return args.Error(0)
}

// codeSequence returns the given codes one by one.
func codeSequence(codes ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return code, nil
	}
}
