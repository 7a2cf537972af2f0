package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// HTTPEmitter posts lifecycle events to an HTTP endpoint as JSON.
type HTTPEmitter struct {
	client  *http.Client
	url     string
	headers http.Header
}

// HTTPEmitterOption configures HTTPEmitter.
type HTTPEmitterOption func(*HTTPEmitter)

// WithClient sets the HTTP client (default: 10s timeout).
func WithClient(c *http.Client) HTTPEmitterOption {
	return func(e *HTTPEmitter) {
		e.client = c
	}
}

// WithHeaders sets headers sent on every request (e.g. Authorization).
func WithHeaders(headers map[string]string) HTTPEmitterOption {
	return func(e *HTTPEmitter) {
		for k, v := range headers {
			e.headers.Set(k, v)
		}
	}
}

// NewHTTPEmitter returns an emitter that POSTs each LifecycleEvent to url.
func NewHTTPEmitter(url string, opts ...HTTPEmitterOption) *HTTPEmitter {
	e := &HTTPEmitter{
		client:  &http.Client{Timeout: 10 * time.Second},
		url:     url,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit implements ports.LifecycleEmitter.
func (e *HTTPEmitter) Emit(ctx context.Context, event domain.LifecycleEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header = e.headers.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Greeter-Event", string(event.Type))
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s event: %w", event.Type, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Status: resp.StatusCode, Event: event.Type}
	}
	return nil
}

// StatusError reports a non-2xx response from the webhook endpoint.
type StatusError struct {
	Status int
	Event  domain.LifecycleEventType
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook endpoint returned status %d for %s event", e.Status, e.Event)
}

var _ ports.LifecycleEmitter = (*HTTPEmitter)(nil)
