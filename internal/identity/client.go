// Package identity calls the external customer service. The only
// question it answers is whether a customer id exists; a transport
// failure is reported as ErrUnavailable so callers can treat it as
// retryable rather than as a missing customer.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"accountledger/internal/config"
)

var ErrUnavailable = errors.New("identity service unavailable")

type Client struct {
	baseURL string
	enabled bool
	http    *http.Client
}

func NewClient(cfg *config.IdentityConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		enabled: cfg.Enabled,
		http:    &http.Client{Timeout: timeout},
	}
}

// Exists answers true for 200 and false for 404. Disabled validation
// always answers true. Any other outcome is ErrUnavailable.
func (c *Client) Exists(ctx context.Context, customerID uuid.UUID) (bool, error) {
	if !c.enabled {
		return true, nil
	}
	if c.baseURL == "" {
		return false, fmt.Errorf("%w: base url not configured", ErrUnavailable)
	}

	url := fmt.Sprintf("%s/customers/%s", c.baseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
}
