package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/halverson/satcom-planner/pkg/logger"
)

// Client fetches telemetry ticks from an HTTP JSON endpoint.
type Client struct {
	httpClient *http.Client
	sourceURL  string
	logger     *logger.Logger
}

// NewClient creates a telemetry polling client.
func NewClient(sourceURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		sourceURL:  sourceURL,
		logger:     log.Named("telemetry-cli"),
	}
}

// Fetch retrieves the latest telemetry tick from the source.
func (c *Client) Fetch(ctx context.Context) (*Tick, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching telemetry",
		logger.String("url", c.sourceURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var tick Tick
	if err := json.Unmarshal(body, &tick); err != nil {
		return nil, fmt.Errorf("failed to parse telemetry response: %w", err)
	}
	if tick.Time.IsZero() {
		tick.Time = time.Now().UTC()
	}
	if !tick.Valid() {
		return nil, fmt.Errorf("telemetry tick has invalid position or speed")
	}
	return &tick, nil
}
