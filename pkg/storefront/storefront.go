package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
)

// response bodies larger than this are refused
const maxBodyBytes = 4 << 20

// Client reads a user's order history from the storefront order service.
// Payloads are returned raw; the order service validates each one.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient returns nil when no external URL is configured
func NewClient(cfg *config.OrdersConfig, logger *zap.Logger) *Client {
	if cfg.ExternalURL == "" {
		return nil
	}
	timeout := cfg.ExternalTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.ExternalURL, "/"),
		apiKey:  cfg.ExternalAPIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type ordersEnvelope struct {
	Orders []json.RawMessage `json:"orders"`
}

// FetchOrders GET {base}/users/{userID}/orders → {"orders": [...]}
func (c *Client) FetchOrders(ctx context.Context, userID string) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/users/%s/orders", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build storefront request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storefront request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("storefront orders fetched",
		zap.String("user_id", userID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		// user unknown to the storefront: no history
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("storefront returned status %d", resp.StatusCode)
	}

	var env ordersEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode storefront orders: %w", err)
	}
	return env.Orders, nil
}
