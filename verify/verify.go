// Package verify checks email deliverability through the MyEmailVerifier API.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const defaultBaseURL = "https://client.myemailverifier.com/verifier"

// Statuses returned by MyEmailVerifier.
const (
	StatusValid    = "Valid"
	StatusInvalid  = "Invalid"
	StatusCatchAll = "Catch-all"
	StatusUnknown  = "Unknown"
)

// Result is the outcome of a verification call.
type Result struct {
	Diagnosis  string
	Valid      bool
	Free       bool
	Disposable bool
	RoleBased  bool
	Greylisted bool
}

// Client calls the MyEmailVerifier API.
type Client struct {
	client  *http.Client
	logger  *slog.Logger
	apiKey  string
	baseURL string
}

// New creates a verification client.
func New(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// The API reports booleans as 0/1.
type apiResponse struct {
	Status           string `json:"Status"`
	Diagnosis        string `json:"Diagnosis"`
	FreeDomain       int    `json:"Free_Domain"`
	DisposableDomain int    `json:"Disposable_Domain"`
	RoleBased        int    `json:"Role_Based"`
	Greylisted       int    `json:"Greylisted"`
}

// CheckEmail verifies a single email address. An address counts as valid
// unless the API reports it Invalid or Unknown.
func (c *Client) CheckEmail(ctx context.Context, email string) (Result, error) {
	reqURL := fmt.Sprintf("%s/validate_single/%s/%s", c.baseURL, url.PathEscape(email), c.apiKey)

	var parsed apiResponse
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}

			startTime := time.Now()
			resp, err := c.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("Verifier API request failed, will retry",
					"email", email,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				c.logger.Warn("Verifier API returned non-OK status, will retry",
					"status_code", resp.StatusCode,
					"email", email)
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}

			c.logger.Info("Verifier API request completed",
				"email", email,
				"status", parsed.Status,
				"duration_ms", duration.Milliseconds())
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying email verification after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return Result{}, fmt.Errorf("after retries: %w", err)
	}

	return Result{
		Valid:      parsed.Status != StatusInvalid && parsed.Status != StatusUnknown,
		Free:       parsed.FreeDomain == 1,
		Disposable: parsed.DisposableDomain == 1,
		RoleBased:  parsed.RoleBased == 1,
		Greylisted: parsed.Greylisted == 1,
		Diagnosis:  parsed.Diagnosis,
	}, nil
}
