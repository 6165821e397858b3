package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"rss-notifier/pkg/notifier"
)

const defaultBaseURL = "https://api.mailersend.com/v1"

// MailerSend plan tiers. The tier determines how many emails can be grouped
// into one bulk request.
const (
	PlanNone    = "no_plan"
	PlanFree    = "free_plan"
	PlanPremium = "premium_plan"
)

const (
	// maxRateLimitHits is how many consecutive 429 responses one batch may
	// receive before the run is aborted.
	maxRateLimitHits = 3

	// fallbackWait applies when a 429 response carries no Retry-After header.
	fallbackWait = 15 * time.Second

	// waitCeiling is the longest provider-requested wait we honor
	// automatically. Anything above it fails the run instead of stalling it.
	waitCeiling = 5 * time.Minute

	// interBatchDelay paces consecutive bulk requests to stay inside the
	// per-minute request quota even when every batch succeeds.
	interBatchDelay = 6 * time.Second
)

// DispatchError is the terminal failure of a dispatch run. Batches before
// Batch were sent and stay sent; batches from Batch on were abandoned.
type DispatchError struct {
	Reason  string
	Batch   int // zero-based index of the failing batch
	Status  int // last HTTP status seen, 0 when the transport failed
	Retries int // rate-limit retries spent on the failing batch
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch aborted at batch %d (status %d, retries %d): %s",
		e.Batch, e.Status, e.Retries, e.Reason)
}

// MailerSend dispatches emails through the MailerSend bulk-email endpoint.
type MailerSend struct {
	client  *http.Client
	logger  *slog.Logger
	sleep   func(time.Duration)
	token   string
	plan    string
	baseURL string
}

// NewMailerSend creates a MailerSend provider for the given account plan.
func NewMailerSend(token, plan string, logger *slog.Logger) (*MailerSend, error) {
	switch plan {
	case PlanNone, PlanFree, PlanPremium:
	default:
		return nil, fmt.Errorf("invalid MailerSend plan %q", plan)
	}

	return &MailerSend{
		token:   token,
		plan:    plan,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		sleep:   time.Sleep,
	}, nil
}

// batchSize is the bulk-request limit documented per plan tier.
func (m *MailerSend) batchSize() int {
	if m.plan == PlanNone {
		return 5
	}
	return 500
}

// SendBulk sends emails in strictly sequential batches. A batch is only
// attempted after the previous one resolved, and a terminal failure abandons
// all remaining batches.
func (m *MailerSend) SendBulk(ctx context.Context, emails []notifier.Email) error {
	if len(emails) == 0 {
		return nil
	}

	batches := lo.Chunk(emails, m.batchSize())
	m.logger.Info("Dispatching emails", "emails", len(emails), "batches", len(batches), "batch_size", m.batchSize())

	for i, batch := range batches {
		if err := m.sendBatch(ctx, i, batch); err != nil {
			return err
		}

		if i < len(batches)-1 {
			m.logger.Debug("Pacing before next batch", "delay", interBatchDelay.String())
			m.sleep(interBatchDelay)
		}
	}

	m.logger.Info("All batches dispatched", "emails", len(emails), "batches", len(batches))
	return nil
}

// sendBatch drives one batch to success or a terminal failure. On a 429 it
// waits for the provider-supplied duration (or the fallback) and resubmits
// the same batch; the third consecutive 429 fails instead of retrying again.
func (m *MailerSend) sendBatch(ctx context.Context, index int, batch []notifier.Email) error {
	retries := 0

	for {
		status, header, err := m.post(ctx, "/bulk-email", batch)
		if err != nil {
			return &DispatchError{Batch: index, Retries: retries, Reason: err.Error()}
		}

		switch status {
		case http.StatusOK, http.StatusAccepted:
			m.logger.Info("Batch accepted", "batch", index, "emails", len(batch), "retries", retries)
			return nil

		case http.StatusTooManyRequests:
			wait := retryAfter(header)
			if wait > waitCeiling {
				m.logger.Error("Rate-limit wait exceeds ceiling, aborting",
					"batch", index, "wait", wait.String(), "ceiling", waitCeiling.String())
				return &DispatchError{
					Batch:   index,
					Status:  status,
					Retries: retries,
					Reason:  fmt.Sprintf("provider asked for a %s wait, above the %s ceiling", wait, waitCeiling),
				}
			}

			retries++
			if retries >= maxRateLimitHits {
				return &DispatchError{
					Batch:   index,
					Status:  status,
					Retries: retries,
					Reason:  "rate-limit retries exhausted",
				}
			}

			m.logger.Warn("Rate limited, waiting before resending batch",
				"batch", index, "wait", wait.String(), "retry", retries)
			m.sleep(wait)

		default:
			return &DispatchError{
				Batch:   index,
				Status:  status,
				Retries: retries,
				Reason:  "unexpected provider status",
			}
		}
	}
}

func (m *MailerSend) post(ctx context.Context, path string, batch []notifier.Email) (int, http.Header, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.token)

	startTime := time.Now()
	resp, err := m.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			m.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	// Drain so the connection can be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		m.logger.Warn("Failed to drain response body", "error", err)
	}

	m.logger.Info("MailerSend API request completed",
		"endpoint", "bulk-email",
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	return resp.StatusCode, resp.Header, nil
}

// retryAfter reads the provider-supplied wait, falling back when absent or
// unparseable.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return fallbackWait
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return fallbackWait
	}
	return time.Duration(secs) * time.Second
}
