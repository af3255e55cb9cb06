// internal/prices/client.go
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 10 * time.Second
	// nativeFallbackUSD is the exchange quote used when the aggregator has no
	// listing for the chain's native token.
	nativeFallbackUSD = 3.294
)

// TokenPrice is one market entry from the price aggregator.
type TokenPrice struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	PriceUSD    float64 `json:"current_price"`
	Change24h   float64 `json:"price_change_percentage_24h"`
	MarketCap   float64 `json:"market_cap"`
	TotalVolume float64 `json:"total_volume"`
}

// Client fetches USD market data from a CoinGecko-compatible API.
type Client struct {
	client  *http.Client
	logger  *zap.Logger
	baseURL string
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.Named("prices"),
		baseURL: baseURL,
	}
}

// Markets returns the top markets by capitalization. When symbols is
// non-empty the result is filtered to those symbols.
func (c *Client) Markets(ctx context.Context, symbols []string) ([]TokenPrice, error) {
	url := fmt.Sprintf("%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=50&page=1&sparkline=false&price_change_percentage=24h", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var markets []TokenPrice
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}

	if len(symbols) == 0 {
		return markets, nil
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[strings.ToLower(s)] = true
	}
	filtered := markets[:0]
	for _, m := range markets {
		if wanted[strings.ToLower(m.Symbol)] {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// NativePrice returns the USD quote for the chain's native token, falling
// back to the last known exchange price when the aggregator has no listing.
func (c *Client) NativePrice(ctx context.Context, coinID string) float64 {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, coinID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nativeFallbackUSD
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Native price lookup failed, using fallback", zap.Error(err))
		return nativeFallbackUSD
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nativeFallbackUSD
	}

	var quotes map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nativeFallbackUSD
	}
	if usd, ok := quotes[coinID]["usd"]; ok && usd > 0 {
		return usd
	}
	return nativeFallbackUSD
}
