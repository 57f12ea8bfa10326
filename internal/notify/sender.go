// Package notify delivers best-effort completion callbacks. Delivery failure
// is reported to the caller for logging only and never feeds back into job
// state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Event describes a job that reached a terminal state.
type Event struct {
	JobID      string            `json:"job_id"`
	State      string            `json:"state"`
	Error      string            `json:"error,omitempty"`
	ResultPath string            `json:"result_path,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type Sender interface {
	Notify(ctx context.Context, target string, event Event) error
}

type httpSender struct {
	client      *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

func NewHTTPSender(timeout time.Duration, maxRetries int) Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 3
	}
	return &httpSender{
		client:      &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		baseBackoff: 500 * time.Millisecond,
	}
}

// Notify posts the event as JSON to the target URL, retrying transient
// failures with exponential backoff.
func (s *httpSender) Notify(ctx context.Context, target string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")

		resp, err := s.client.Do(req)
		if err == nil {
			ok := resp.StatusCode >= 200 && resp.StatusCode < 300
			_ = resp.Body.Close()
			if ok {
				return nil
			}
			lastErr = errors.New(resp.Status)
		} else {
			lastErr = err
		}

		select {
		case <-time.After(s.baseBackoff * (1 << attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
