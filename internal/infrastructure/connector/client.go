package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize caps one response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

// apiClient is the rate-limited, retrying JSON client shared by the connectors.
// One instance serves one source.
type apiClient struct {
	systemType integration.SystemType
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	creds      Credentials
	logger     *zap.Logger
}

func newAPIClient(systemType integration.SystemType, baseURL string, cfg Config, logger *zap.Logger) *apiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &apiClient{
		systemType: systemType,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateBurst),
		retry:   cfg.Retry,
		creds:   cfg.Credentials[systemType],
		logger:  logger,
	}
}

// getJSON requests path and decodes the JSON body into out.
// Every failure is returned as *integration.AdapterError.
func (c *apiClient) getJSON(ctx context.Context, operation string, page int, path string, query url.Values, out any) error {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(operation, page, 0, fmt.Errorf("%w: %v", integration.ErrAdapterUnavailable, err))
		}

		body, resp, err := c.doOnce(ctx, endpoint)
		if err == nil {
			if decodeErr := json.Unmarshal(body, out); decodeErr != nil {
				return c.fail(operation, page, resp.StatusCode, fmt.Errorf("%w: %v", integration.ErrAdapterInvalidResponse, decodeErr))
			}
			return nil
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		lastErr = c.fail(operation, page, status, err)

		retryable := status == 0 || isRetryableStatus(status)
		if !retryable || ctx.Err() != nil || attempt == c.retry.MaxAttempts-1 {
			break
		}

		delay := c.retry.backoff(attempt, resp)
		c.logger.Debug("retrying external request",
			zap.String("system_type", string(c.systemType)),
			zap.String("operation", operation),
			zap.Int("page", page),
			zap.Int("status", status),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return c.fail(operation, page, status, fmt.Errorf("%w: %v", integration.ErrAdapterUnavailable, ctx.Err()))
		case <-time.After(delay):
		}
	}
	return lastErr
}

// doOnce performs a single attempt. A non-nil resp with an error carries the failing status.
func (c *apiClient) doOnce(ctx context.Context, endpoint string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create request: %v", integration.ErrAdapterRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	c.creds.apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", integration.ErrAdapterUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, resp, fmt.Errorf("%w: read response: %v", integration.ErrAdapterUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return nil, resp, integration.ErrAdapterRequestFailed
	}
	if len(body) > maxResponseSize {
		return nil, resp, fmt.Errorf("%w: response exceeds %d bytes", integration.ErrAdapterInvalidResponse, maxResponseSize)
	}
	return body, resp, nil
}

func (c *apiClient) fail(operation string, page, status int, err error) *integration.AdapterError {
	return integration.NewAdapterError(c.systemType, operation, page, status, err)
}
