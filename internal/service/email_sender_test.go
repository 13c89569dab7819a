package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/barbartender/bartender/internal/config"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestEmailSenderRequiresConfig(t *testing.T) {
	err := NewEmailSender(config.MailConfig{}).Send(context.Background(), "a@b.com", "hi", "text", "")
	require.ErrorIs(t, err, appErr.ErrMailNotConfigured)
}

func TestEmailSenderTimesOutOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				<-done
				_ = conn.Close()
			}()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	sender := &smtpSender{
		cfg:     config.MailConfig{Host: "127.0.0.1", Port: port, From: "bar@example.com"},
		timeout: 200 * time.Millisecond,
	}
	start := time.Now()
	err = sender.Send(context.Background(), "a@b.com", "hi", "text", "")
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestBuildMessageSkipsEmptyParts(t *testing.T) {
	msg, err := buildMessage("bar@example.com", "a@b.com", "Code", "plain body", "")
	require.NoError(t, err)
	require.Contains(t, string(msg), "plain body")
	require.Contains(t, string(msg), "text/plain")
	require.NotContains(t, string(msg), "text/html")
}
