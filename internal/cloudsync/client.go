// Package cloudsync uploads unsubmitted records to the remote endpoint and
// marks the acknowledged ones as uploaded.
package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 4 << 20

// TransportError is a failed upload: network failure, non-2xx status or a
// response that is not a valid acknowledgement.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cloudsync %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("cloudsync %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client posts payloads to the sync endpoint
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient creates a client for url. A zero timeout means none.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        strings.TrimSpace(url),
	}
}

// Upload sends one payload and returns the server's acknowledgement. Network
// failures and bad responses are returned as *TransportError.
func (c *Client) Upload(ctx context.Context, token string, payload *Payload) (*Ack, error) {
	body, err := c.do(ctx, http.MethodPost, token, payload)
	if err != nil {
		return nil, err
	}

	ack, err := ParseAck(body)
	if err != nil {
		return nil, &TransportError{Op: "upload", Err: err}
	}
	return ack, nil
}

func (c *Client) do(ctx context.Context, method, token string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, &TransportError{Op: "upload", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = "Bearer " + token
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: "upload", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &TransportError{Op: "upload", StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return data, nil
}
