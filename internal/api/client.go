package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vinscan/internal/observation"
	"vinscan/internal/session"
)

const defaultClientTimeout = 10 * time.Second

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError carrying code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

// Client provides HTTP access to the daemon.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for a daemon bound to bind ("host:port").
// Wildcard hosts are dialed on loopback.
func NewClient(bind, token string) (*Client, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return nil, fmt.Errorf("parse api bind %q: %w", bind, err)
	}
	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::":
		host = "::1"
	}
	return &Client{
		baseURL: "http://" + net.JoinHostPort(host, port),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

// BaseURL returns the daemon root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartSession creates a session and returns its handle.
func (c *Client) StartSession(ctx context.Context, req StartSessionRequest) (string, error) {
	var resp StartSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Submit sends one observation to a session.
func (c *Client) Submit(ctx context.Context, id string, raw observation.Raw) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/observations", raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel terminates a session without a decision.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id), nil, nil)
}

// Session describes one session.
func (c *Client) Session(ctx context.Context, id string) (*session.Info, error) {
	var info session.Info
	if err := c.do(ctx, http.MethodGet, sessionPath(id), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Decisions lists recorded decisions, newest first.
func (c *Client) Decisions(ctx context.Context, limit int, vin string) (*DecisionListResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if vin = strings.TrimSpace(vin); vin != "" {
		query.Set("vin", vin)
	}
	path := "/api/decisions"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp DecisionListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func sessionPath(id string) string {
	return "/api/sessions/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) != nil {
			payload.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
