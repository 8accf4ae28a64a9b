package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	requestTimeout = 5 * time.Second
	maxAttempts    = 3
)

var (
	httpClient = &http.Client{Timeout: requestTimeout}
	retryDelay = time.Second
)

// EventHeader carries the event kind so receivers can route without
// parsing the body.
const EventHeader = "X-Netpipe-Event"

// errRetryable marks a delivery failure worth another attempt.
type errRetryable struct{ err error }

func (e errRetryable) Error() string { return e.err.Error() }
func (e errRetryable) Unwrap() error { return e.err }

// Send posts event to cfg.URL. Transport errors and 5xx answers are
// retried with linear backoff; a 4xx answer or a done ctx ends delivery.
func Send(ctx context.Context, cfg Config, event Event) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("alert %s to %s abandoned after %d attempts: %w", event.Kind, cfg.URL, attempt-1, ctx.Err())
			case <-time.After(time.Duration(attempt-1) * retryDelay):
			}
		}

		err := post(ctx, cfg, event, body)
		if err == nil {
			return nil
		}
		var retry errRetryable
		if !errors.As(err, &retry) {
			return err
		}
		lastErr = retry.err
	}
	return fmt.Errorf("alert %s to %s failed after %d attempts: %w", event.Kind, cfg.URL, maxAttempts, lastErr)
}

func post(ctx context.Context, cfg Config, event Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, event.Kind)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errRetryable{err}
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return errRetryable{fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)}
	default:
		return fmt.Errorf("webhook rejected %s: HTTP %d", event.Kind, resp.StatusCode)
	}
}
