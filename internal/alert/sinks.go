package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"os"
	"strings"
	"sync"
	"time"

	"ledgerwatch/internal/domain"
)

// Sink delivers one alert to a destination. Implementations must be safe
// for concurrent use.
type Sink interface {
	Name() string
	Send(ctx context.Context, a domain.Alert) error
}

// ConsoleSink writes human-readable alert lines to a writer, stdout by
// default. It never fails on a usable writer and serves as the baseline
// sink that is always configurable.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink creates a console sink writing to stdout.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: os.Stdout}
}

// NewConsoleSinkTo creates a console sink writing to w.
func NewConsoleSinkTo(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Send(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.out, "[%s] %s %s %s\n",
		a.Timestamp.UTC().Format(time.RFC3339), a.Severity, a.Type, describe(a))
	return err
}

// describe renders the variant-specific part of an alert line.
func describe(a domain.Alert) string {
	switch a.Type {
	case domain.AlertLowBalance:
		return fmt.Sprintf("address=%s balance=%d threshold=%d",
			domain.TruncateAddress(a.Address), a.Balance, a.Threshold)
	case domain.AlertLargeTransfer:
		return fmt.Sprintf("tx=%s %s -> %s amount=%d token=%s",
			a.TransactionID, domain.TruncateAddress(a.Sender),
			domain.TruncateAddress(a.Recipient), a.Amount, a.TokenType)
	case domain.AlertSuspicious:
		return fmt.Sprintf("address=%s activity=%s risk=%s: %s",
			domain.TruncateAddress(a.Address), a.ActivityType, a.Risk, a.Description)
	case domain.AlertNetworkError, domain.AlertSystemError:
		return fmt.Sprintf("component=%s: %s", a.Component, a.Detail)
	default:
		return fmt.Sprintf("%s: %s", a.Title, a.Message)
	}
}

// FileSink appends one JSON line per alert to a file.
type FileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileSink opens (or creates) the alert log file for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open alert file: %w", err)
	}
	return &FileSink{path: path, file: f}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Send(_ context.Context, a domain.Alert) error {
	line, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write alert line: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// WebhookSink POSTs the alert as a JSON payload to a fixed URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink with a 10s request timeout.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, a domain.Alert) error {
	payload, err := json.Marshal(struct {
		Key   string       `json:"key"`
		Alert domain.Alert `json:"alert"`
	}{Key: a.Key(), Alert: a})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// EmailConfig configures the SMTP sink.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailSink sends alert mails over SMTP.
type EmailSink struct {
	cfg EmailConfig

	// sendFn is swappable for tests.
	sendFn func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSink creates an SMTP sink.
func NewEmailSink(cfg EmailConfig) *EmailSink {
	return &EmailSink{cfg: cfg, sendFn: smtp.SendMail}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(_ context.Context, a domain.Alert) error {
	subject := fmt.Sprintf("[%s] %s alert", a.Severity, a.Type)
	body := describe(a)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", a.Timestamp.UTC().Format(time.RFC1123Z))
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.sendFn(addr, auth, s.cfg.From, s.cfg.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
