package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPSource fetches the native-asset USD price from an off-chain HTTP API.
// The endpoint must answer a GET with a JSON body containing a "price"
// number. Calls are best effort with a short timeout.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates an HTTPSource for the given URL.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// LatestPrice performs one GET and parses the price from the response body.
func (s *HTTPSource) LatestPrice(ctx context.Context) (decimal.Decimal, error) {
	if s.url == "" {
		return decimal.Zero, fmt.Errorf("price: api url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price: create api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price: api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("price: api status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("price: decode api response: %w", err)
	}
	if payload.Price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("price: api returned non-positive price %s", payload.Price)
	}

	return payload.Price, nil
}
