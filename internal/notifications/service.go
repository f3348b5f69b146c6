package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vinscan/internal/config"
	"vinscan/internal/session"
)

const (
	userAgent      = "vinscan/0.1"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2 << 10
)

// Service publishes decisions to an operator's phone or desktop. It doubles
// as a session.DecisionSink so it can sit next to the history store.
type Service interface {
	session.DecisionSink
	TestNotification(ctx context.Context) error
	Enabled() bool
}

// NewService returns an ntfy publisher for cfg.Notifications.NtfyTopic, or a
// no-op Service when no topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return disabled{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfy{
		topicURL: strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:   &http.Client{Timeout: timeout},
	}
}

// notice is one ntfy message. Empty header fields are not sent.
type notice struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

type ntfy struct {
	topicURL string
	client   *http.Client
}

func (*ntfy) Enabled() bool { return true }

func (n *ntfy) RecordDecision(ctx context.Context, record session.DecisionRecord) error {
	return n.publish(ctx, notice{
		Title: "vinscan - VIN Decided",
		Body:  decisionBody(record),
		Tags:  []string{"vinscan", "decision", string(record.Policy)},
	})
}

func (n *ntfy) TestNotification(ctx context.Context) error {
	return n.publish(ctx, notice{
		Title:    "vinscan - Test",
		Body:     "Notification system test",
		Tags:     []string{"vinscan", "test"},
		Priority: "low",
	})
}

// decisionBody summarizes the vote behind a decision:
//
//	VIN 1HGCM82633A004352 decided from 2 of 3 samples (mean confidence 0.90) after 1.5s
//	1 other candidate(s) were outvoted
func decisionBody(record session.DecisionRecord) string {
	d := record.Decision
	body := fmt.Sprintf("VIN %s decided from %d of %d samples (mean confidence %.2f)",
		d.VIN, d.EvidenceCount, record.Capacity, d.MeanConfidence)
	if !record.StartedAt.IsZero() && !record.DecidedAt.IsZero() {
		body += " after " + record.DecidedAt.Sub(record.StartedAt).Round(time.Millisecond).String()
	}
	if outvoted := len(d.Tally) - 1; outvoted > 0 {
		body += fmt.Sprintf("\n%d other candidate(s) were outvoted", outvoted)
	}
	return body
}

func (n *ntfy) publish(ctx context.Context, msg notice) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topicURL, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	for name, value := range map[string]string{
		"Title":    msg.Title,
		"Tags":     strings.Join(msg.Tags, ","),
		"Priority": msg.Priority,
	} {
		if value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish to ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type disabled struct{}

func (disabled) RecordDecision(context.Context, session.DecisionRecord) error { return nil }
func (disabled) TestNotification(context.Context) error                       { return nil }
func (disabled) Enabled() bool                                                { return false }
