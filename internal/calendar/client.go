// Package calendar wraps the clinic agenda service. Every mutation goes
// through one invoke endpoint taking an action plus the appointment payload.
package calendar

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

	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// AppointmentData is the payload for one agenda mutation.
type AppointmentData struct {
	EventID      string `json:"eventId,omitempty"`
	Title        string `json:"title"`
	Date         string `json:"date"`      // "2006-01-02"
	StartTime    string `json:"startTime"` // "HH:MM"
	EndTime      string `json:"endTime"`   // "HH:MM"
	PatientEmail string `json:"patientEmail,omitempty"`
	Location     string `json:"location,omitempty"`
}

type invokeRequest struct {
	Action          string          `json:"action"`
	AppointmentData AppointmentData `json:"appointmentData"`
}

type invokeResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Config controls how the calendar client behaves.
type Config struct {
	BaseURL    string
	APIToken   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client calls the agenda service. Calls are single-attempt; callers treat
// failures as best-effort and degrade the conversation instead of retrying.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *logging.Logger
}

// New creates a configured calendar client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("calendar: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiToken:   cfg.APIToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Invoke runs one agenda mutation and returns the event id when the service
// reports success.
func (c *Client) Invoke(ctx context.Context, action string, data AppointmentData) (string, error) {
	body, err := json.Marshal(invokeRequest{Action: action, AppointmentData: data})
	if err != nil {
		return "", fmt.Errorf("calendar: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("calendar: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar: invoke request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("calendar: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("calendar: invoke returned status %d", resp.StatusCode)
	}

	var out invokeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("calendar: failed to decode response: %w", err)
	}
	if !out.Success {
		if out.Error != "" {
			return "", fmt.Errorf("calendar: invoke rejected: %s", out.Error)
		}
		return "", errors.New("calendar: invoke rejected")
	}

	c.logger.Debug("calendar mutation applied",
		"action", action,
		"event_id", out.EventID,
	)
	return out.EventID, nil
}

// Create books a new appointment and returns its event id.
func (c *Client) Create(ctx context.Context, data AppointmentData) (string, error) {
	return c.Invoke(ctx, ActionCreate, data)
}

// Update moves an existing appointment.
func (c *Client) Update(ctx context.Context, data AppointmentData) error {
	if data.EventID == "" {
		return errors.New("calendar: event id required for update")
	}
	_, err := c.Invoke(ctx, ActionUpdate, data)
	return err
}

// Delete cancels an existing appointment.
func (c *Client) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("calendar: event id required for delete")
	}
	_, err := c.Invoke(ctx, ActionDelete, AppointmentData{EventID: eventID})
	return err
}
