// Package bridge provides a client for the device health bridge, the local
// service that aggregates wearable and phone sensor data and exposes it as
// wellness snapshots.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/meridian/lifehub/pocketbase/ratelimit"
)

const (
	envBaseURL = "DEVICE_BRIDGE_URL"
	envAPIKey  = "DEVICE_BRIDGE_API_KEY"
)

// Config holds device bridge connection settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// LoadConfig reads the bridge settings from the environment.
func LoadConfig() (*Config, error) {
	baseURL := strings.TrimSpace(os.Getenv(envBaseURL))
	apiKey := strings.TrimSpace(os.Getenv(envAPIKey))
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("missing %s or %s in environment", envBaseURL, envAPIKey)
	}
	return &Config{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey}, nil
}

// IsEnabled returns true when the bridge is configured.
func IsEnabled() bool {
	return os.Getenv(envBaseURL) != "" && os.Getenv(envAPIKey) != ""
}

// Snapshot is one wellness reading exported by the bridge. Data carries the
// raw provider payload and is staged as-is; the import pipeline owns all
// interpretation.
type Snapshot struct {
	ID         string         `json:"id"`
	CapturedAt time.Time      `json:"capturedAt"`
	Data       map[string]any `json:"data"`
}

// Client wraps device bridge API interactions.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a new bridge client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("missing required device bridge configuration")
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New(ratelimit.APIConfig()),
	}, nil
}

// FetchSnapshots returns the snapshots captured for the user since the given
// time, oldest first. Throttled calls are retried with backoff.
func (c *Client) FetchSnapshots(ctx context.Context, bridgeUserID string, since time.Time) ([]Snapshot, error) {
	params := url.Values{}
	params.Set("user", bridgeUserID)
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339))
	}
	fullURL := fmt.Sprintf("%s/v1/snapshots?%s", c.baseURL, params.Encode())

	var snapshots []Snapshot
	err := c.limiter.ExecuteWithRetry(ctx, func() error {
		body, err := c.get(ctx, fullURL)
		if err != nil {
			return err
		}
		var resp struct {
			Snapshots []Snapshot `json:"snapshots"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode snapshots response: %w", err)
		}
		snapshots = resp.Snapshots
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Fetched bridge snapshots", "user", bridgeUserID, "count", len(snapshots))
	return snapshots, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge API error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
