// Package push delivers device notifications through the Expo push API.
// Delivery is best effort: nothing in this package reports failures back
// to the workflows that trigger a notification.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the public Expo push endpoint.
const DefaultURL = "https://exp.host/--/api/v2/push/send"

// Message is one notification addressed to a device.
type Message struct {
	DeviceToken string         `json:"to"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data,omitempty"`
}

// Ack is the delivery receipt returned by the sink.
type Ack struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// Sink accepts notifications for delivery.
type Sink interface {
	Send(ctx context.Context, msg Message) (Ack, error)
}

// ErrRejected is returned when the sink answered but refused the message.
var ErrRejected = errors.New("push message rejected")

// ExpoClient posts messages to an Expo compatible endpoint.
type ExpoClient struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
}

// NewExpoClient creates a client with the specified timeout.
func NewExpoClient(url string, timeoutMS int) *ExpoClient {
	if url == "" {
		url = DefaultURL
	}
	return &ExpoClient{
		url: url,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		timeout: time.Duration(timeoutMS) * time.Millisecond,
	}
}

type expoResponse struct {
	Data struct {
		Status  string `json:"status"`
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send posts msg and returns the receipt.
func (c *ExpoClient) Send(ctx context.Context, msg Message) (Ack, error) {
	if msg.DeviceToken == "" {
		return Ack{}, fmt.Errorf("%w: empty device token", ErrRejected)
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return Ack{}, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return Ack{}, fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Ack{}, fmt.Errorf("push request timed out after %s: %w", c.timeout, err)
		}
		return Ack{}, fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Ack{}, fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Ack{}, fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	var parsed expoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Ack{}, fmt.Errorf("failed to decode push response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return Ack{}, fmt.Errorf("%w: %s", ErrRejected, parsed.Errors[0].Message)
	}
	if parsed.Data.Status != "ok" {
		return Ack{Status: parsed.Data.Status}, fmt.Errorf("%w: %s", ErrRejected, parsed.Data.Message)
	}

	return Ack{Status: parsed.Data.Status, ID: parsed.Data.ID}, nil
}

// NopSink drops every message. Used when no push endpoint is configured.
type NopSink struct{}

func (NopSink) Send(context.Context, Message) (Ack, error) {
	return Ack{Status: "skipped"}, nil
}
