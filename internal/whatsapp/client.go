// Package whatsapp is the transport adapter: outbound sends with bounded
// retry, and the inbound webhook payload shape.
package whatsapp

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

	"golang.org/x/time/rate"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// InboundMessage is one webhook delivery from the WhatsApp gateway.
type InboundMessage struct {
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	PushName  string    `json:"pushName,omitempty"`
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error,omitempty"`
}

// Config controls how the client behaves.
type Config struct {
	BaseURL    string
	APIToken   string
	InstanceID string
	Timeout    time.Duration
	// MaxRetries counts total attempts; backoff doubles from RetryBase
	// between them (2s, 4s, 8s with the defaults).
	MaxRetries int
	RetryBase  time.Duration
	// SendRate is outbound messages per second across all conversations.
	SendRate   float64
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client sends messages through the WhatsApp gateway.
type Client struct {
	baseURL    string
	apiToken   string
	instanceID string
	httpClient *http.Client
	maxRetries int
	retryBase  time.Duration
	limiter    *rate.Limiter
	logger     *logging.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a configured client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("whatsapp: base URL is required")
	}
	if strings.TrimSpace(cfg.InstanceID) == "" {
		return nil, errors.New("whatsapp: instance id is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = 2 * time.Second
	}
	sendRate := cfg.SendRate
	if sendRate <= 0 {
		sendRate = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Client{
		baseURL:    baseURL,
		apiToken:   cfg.APIToken,
		instanceID: cfg.InstanceID,
		httpClient: httpClient,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		limiter:    rate.NewLimiter(rate.Limit(sendRate), 1),
		logger:     logger,
		sleep:      sleepCtx,
	}, nil
}

// Send delivers one message, retrying transient failures with exponential
// backoff. The gateway deduplicates by (to, text, minute window), so a retry
// after an ambiguous failure is safe.
func (c *Client) Send(ctx context.Context, to, message string) (string, error) {
	if to == "" {
		return "", errors.New("whatsapp: recipient required")
	}
	if message == "" {
		return "", errors.New("whatsapp: message required")
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBase << (attempt - 1)
			c.logger.Warn("whatsapp send retrying",
				"to", to,
				"attempt", attempt+1,
				"delay", delay.String(),
				"error", lastErr,
			)
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		messageID, err := c.sendOnce(ctx, to, message)
		if err == nil {
			return messageID, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("whatsapp: send failed after %d attempts: %w", c.maxRetries, lastErr)
}

// errStatus marks gateway responses worth retrying.
type errStatus struct {
	code int
}

func (e errStatus) Error() string {
	return fmt.Sprintf("whatsapp: gateway returned status %d", e.code)
}

func retryable(err error) bool {
	var se errStatus
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	// Network-level failures are always retried.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) sendOnce(ctx context.Context, to, message string) (string, error) {
	body, err := json.Marshal(sendRequest{To: to, Text: message})
	if err != nil {
		return "", fmt.Errorf("whatsapp: failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/instances/%s/messages", c.baseURL, c.instanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("whatsapp: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: send request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("whatsapp: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errStatus{code: resp.StatusCode}
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("whatsapp: failed to decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("whatsapp: gateway rejected message: %s", out.Error)
	}
	return out.MessageID, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
