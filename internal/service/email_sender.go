package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/barbartender/bartender/internal/config"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
)

type EmailSender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

const defaultSMTPTimeout = 30 * time.Second

type smtpSender struct {
	cfg     config.MailConfig
	timeout time.Duration
}

func NewEmailSender(cfg config.MailConfig) EmailSender {
	return &smtpSender{cfg: cfg, timeout: defaultSMTPTimeout}
}

func (s *smtpSender) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	from := strings.TrimSpace(s.cfg.From)
	if s.cfg.Host == "" || s.cfg.Port == 0 || from == "" {
		return appErr.ErrMailNotConfigured
	}
	msg, err := buildMessage(s.fromHeader(from), to, subject, textBody, htmlBody)
	if err != nil {
		return err
	}
	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect smtp: %w", err)
	}
	defer client.Close()

	if s.cfg.UseTLS && !s.cfg.UseSSL {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *smtpSender) fromHeader(from string) string {
	if s.cfg.FromName == "" {
		return from
	}
	return (&mail.Address{Name: s.cfg.FromName, Address: from}).String()
}

func (s *smtpSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	timeout := s.timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}
	var (
		conn net.Conn
		err  error
	)
	if s.cfg.UseSSL {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}
	_ = conn.SetDeadline(deadline)
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}

func buildMessage(from, to, subject, textBody, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%q\r\n\r\n",
		from, to, mime.QEncoding.Encode("UTF-8", subject), mw.Boundary())
	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=UTF-8", textBody},
		{"text/html; charset=UTF-8", htmlBody},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(header), buf.Bytes()...), nil
}
