package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/buildhive/buildhive/pkg/deadline"
	"github.com/buildhive/buildhive/pkg/log"
	"github.com/buildhive/buildhive/pkg/metrics"
	"github.com/buildhive/buildhive/pkg/types"
)

const (
	// DefaultRetryBackoff is the fixed wait between retriable assignment
	// attempts
	DefaultRetryBackoff = 10 * time.Second

	// DefaultPollInterval is the wait between details polls
	DefaultPollInterval = 2 * time.Second
)

// Client talks to the buildhive control plane. One client serves one
// orchestration run: it carries the run's bearer token and shares the
// run's deadline tracker with every other polling component.
type Client struct {
	baseURL string
	token   string
	tracker *deadline.Tracker

	// RetryBackoff and PollInterval are fields so tests can shrink them
	RetryBackoff time.Duration
	PollInterval time.Duration

	httpClient *http.Client
	logger     zerolog.Logger

	attempts int
}

// NewClient creates a control-plane client. Exactly one credential source
// must be available: the ambient runner-issued token in trusted-runner
// mode, or the caller-supplied token otherwise.
func NewClient(cfg types.Config, tracker *deadline.Tracker) (*Client, error) {
	if cfg.BearerToken() == "" {
		if cfg.TrustedRunner {
			return nil, &types.ConfigError{Reason: "trusted runner context has no verification token"}
		}
		return nil, &types.ConfigError{Reason: "no API token available"}
	}

	return &Client{
		baseURL:      cfg.APIBaseURL,
		token:        cfg.BearerToken(),
		tracker:      tracker,
		RetryBackoff: DefaultRetryBackoff,
		PollInterval: DefaultPollInterval,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       log.WithComponent("controlplane"),
	}, nil
}

type assignRequest struct {
	ProfileName string `json:"profile_name"`
}

type assignResponse struct {
	BuilderInstances []types.BuilderInstance `json:"builder_instances"`
}

// Assign requests builder assignment for the given profile. Transport
// failures and HTTP 5xx/409/429 are retried with a fixed backoff for as
// long as the deadline permits; any other non-2xx status and an empty
// assignment both fail immediately.
func (c *Client) Assign(ctx context.Context, profile string) ([]types.BuilderInstance, error) {
	for c.tracker.Remaining() {
		c.attempts++
		metrics.AssignAttemptsTotal.Inc()

		instances, retriable, err := c.assignOnce(ctx, profile)
		if err == nil {
			return instances, nil
		}
		if !retriable {
			return nil, err
		}

		c.logger.Warn().Err(err).
			Int("attempt", c.attempts).
			Dur("backoff", c.RetryBackoff).
			Msg("assignment attempt failed, retrying")
		metrics.AssignRetriesTotal.Inc()

		if err := sleep(ctx, c.RetryBackoff); err != nil {
			return nil, err
		}
	}

	return nil, c.tracker.Err("assign")
}

func (c *Client) assignOnce(ctx context.Context, profile string) ([]types.BuilderInstance, bool, error) {
	body, err := json.Marshal(assignRequest{ProfileName: profile})
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode assign request: %w", err)
	}

	url := c.baseURL + "/api/v1/builders/assign"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create assign request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("assign request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read assign response: %w", err)
	}

	if isRetriableStatus(resp.StatusCode) {
		return nil, true, &types.APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &types.APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed assignResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, false, fmt.Errorf("failed to decode assign response: %w", err)
	}

	// Zero workers is an error, not a valid empty result
	if len(parsed.BuilderInstances) == 0 {
		return nil, false, &types.APIError{Body: "assignment returned no builder instances"}
	}

	return parsed.BuilderInstances, false, nil
}

// Details polls the per-worker details endpoint until the worker reports
// ready (with host metadata) or failed, or the deadline expires. Transport
// and decode errors during polling are logged and retried.
func (c *Client) Details(ctx context.Context, workerID string) (types.BuilderInstance, error) {
	logger := c.logger.With().Str("worker_id", workerID).Logger()

	for c.tracker.Remaining() {
		instance, err := c.detailsOnce(ctx, workerID)
		if err != nil {
			logger.Warn().Err(err).Msg("details poll failed, retrying")
		} else {
			switch instance.Status {
			case types.InstanceStatusReady:
				if instance.Metadata == nil || instance.Metadata.Host == "" {
					return types.BuilderInstance{}, &types.ReadinessError{
						WorkerID: workerID,
						Reason:   "reported ready without host metadata",
					}
				}
				return instance, nil
			case types.InstanceStatusFailed:
				return types.BuilderInstance{}, &types.ReadinessError{
					WorkerID: workerID,
					Reason:   "control plane reported failed status",
				}
			default:
				logger.Debug().Str("status", string(instance.Status)).Msg("worker not ready yet")
			}
		}

		if err := sleep(ctx, c.PollInterval); err != nil {
			return types.BuilderInstance{}, err
		}
	}

	return types.BuilderInstance{}, c.tracker.Err("details")
}

func (c *Client) detailsOnce(ctx context.Context, workerID string) (types.BuilderInstance, error) {
	url := fmt.Sprintf("%s/api/v1/builders/%s/details", c.baseURL, workerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.BuilderInstance{}, fmt.Errorf("failed to create details request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.BuilderInstance{}, fmt.Errorf("details request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.BuilderInstance{}, fmt.Errorf("failed to read details response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.BuilderInstance{}, fmt.Errorf("details returned %d: %s", resp.StatusCode, string(respBody))
	}

	var instance types.BuilderInstance
	if err := json.Unmarshal(respBody, &instance); err != nil {
		return types.BuilderInstance{}, fmt.Errorf("failed to decode details response: %w", err)
	}
	return instance, nil
}

// Attempts returns the number of assignment requests sent so far.
func (c *Client) Attempts() int {
	return c.attempts
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

// isRetriableStatus reports whether an assignment response status should be
// retried: server errors, conflicts while capacity frees up, and rate limits.
func isRetriableStatus(status int) bool {
	return status >= 500 || status == http.StatusConflict || status == http.StatusTooManyRequests
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
