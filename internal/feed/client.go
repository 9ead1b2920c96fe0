package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vilaca/activity-dashboard/internal/domain"
)

// maxBodyBytes caps how much of a feed response is read.
const maxBodyBytes = 4 << 20

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads event batches from the activity feed endpoint.
// It never retries; retry policy belongs to the caller.
type Client struct {
	url        string
	httpClient HTTPClient
	logger     logrus.FieldLogger
}

// NewClient creates a feed client for the given endpoint URL.
func NewClient(url string, httpClient HTTPClient, logger logrus.FieldLogger) *Client {
	return &Client{
		url:        url,
		httpClient: httpClient,
		logger:     logger.WithField("component", "feed"),
	}
}

// URL returns the endpoint the client polls.
func (c *Client) URL() string {
	return c.url
}

// FetchBatch performs a single GET against the feed and decodes the batch.
// Failures are returned as *FetchError.
func (c *Client) FetchBatch(ctx context.Context) ([]domain.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, protocolError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError(err)
	}

	events, skipped, err := decodeBatch(body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.logger.WithField("skipped", skipped).Debug("Skipped malformed feed records")
	}
	return events, nil
}
