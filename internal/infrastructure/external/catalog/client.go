// Package catalog implements the Course Catalog service client.
// The catalog is the source of truth for which courses exist and how many
// trackable units each one has. The client performs plain HTTP requests and
// maps transport failures to domain errors; retries and circuit breaking are
// layered on top by the service adapter.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the catalog client.
type ClientConfig struct {
	// BaseURL is the catalog service base URL
	BaseURL string

	// APIKey is the API key for authentication (if applicable)
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Course Catalog API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new catalog client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetCourse fetches a single course by ID.
// Returns shared.ErrCourseNotFound when the catalog has no such course.
func (c *Client) GetCourse(ctx context.Context, courseID int64) (*CourseDTO, error) {
	path := fmt.Sprintf("/api/courses/%d", courseID)

	var course CourseDTO
	if err := c.doRequest(ctx, http.MethodGet, path, &course); err != nil {
		return nil, fmt.Errorf("get course %d: %w", courseID, err)
	}

	return &course, nil
}

// GetCourseUnits fetches the unit list of a course.
func (c *Client) GetCourseUnits(ctx context.Context, courseID int64) ([]UnitDTO, error) {
	path := fmt.Sprintf("/api/courses/%d/units", courseID)

	var units []UnitDTO
	if err := c.doRequest(ctx, http.MethodGet, path, &units); err != nil {
		return nil, fmt.Errorf("get course %d units: %w", courseID, err)
	}

	return units, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a single HTTP request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, method, path string, result interface{}) error {
	fullURL := c.config.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.logger.Debug("catalog request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return shared.WrapError("catalog", "Request", shared.ErrCatalogTimeout, "catalog request timed out", err)
		}
		return shared.WrapError("catalog", "Request", shared.ErrCatalogUnavailable, "catalog request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.WrapError("catalog", "Request", shared.ErrCatalogUnavailable, "read catalog response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return shared.ErrCourseNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return shared.WrapError("catalog", "Request", shared.ErrRateLimited,
			"catalog throttled the request", statusError(resp.StatusCode, respBody))
	case resp.StatusCode >= 500:
		return shared.WrapError("catalog", "Request", shared.ErrCatalogUnavailable,
			fmt.Sprintf("catalog returned status %d", resp.StatusCode), statusError(resp.StatusCode, respBody))
	case resp.StatusCode >= 400:
		return statusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return shared.WrapError("catalog", "Parse", shared.ErrCatalogBadResponse, "invalid catalog response", err)
		}
	}

	return nil
}

// statusError turns an error response body into an error value.
func statusError(status int, body []byte) error {
	var apiErr APIErrorDTO
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return &apiErr
	}
	return fmt.Errorf("catalog error: status %d", status)
}

// isTimeout reports whether the transport error is a timeout or a cancelled
// context rather than a connection failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the catalog service is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err == nil
}
