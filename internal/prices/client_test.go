// internal/prices/client_test.go
package prices

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const marketsBody = `[
	{"id": "monad", "symbol": "mon", "name": "Monad", "current_price": 3.29, "price_change_percentage_24h": 4.2, "market_cap": 32900000, "total_volume": 1200000},
	{"id": "usd-coin", "symbol": "usdc", "name": "USD Coin", "current_price": 1.0, "price_change_percentage_24h": 0.01, "market_cap": 32000000000, "total_volume": 5100000000},
	{"id": "chainlink", "symbol": "link", "name": "Chainlink", "current_price": 16.5, "price_change_percentage_24h": -2.1, "market_cap": 9700000000, "total_volume": 410000000}
]`

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, zaptest.NewLogger(t))
}

func TestMarkets(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		fmt.Fprint(w, marketsBody)
	})

	markets, err := client.Markets(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, markets, 3)
	assert.Equal(t, "mon", markets[0].Symbol)
	assert.InDelta(t, 3.29, markets[0].PriceUSD, 1e-9)
}

func TestMarketsFiltered(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, marketsBody)
	})

	markets, err := client.Markets(context.Background(), []string{"MON", "link"})
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "mon", markets[0].Symbol)
	assert.Equal(t, "link", markets[1].Symbol)
}

func TestMarketsServerError(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Markets(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNativePrice(t *testing.T) {
	t.Run("listed", func(t *testing.T) {
		client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/simple/price", r.URL.Path)
			fmt.Fprint(w, `{"monad": {"usd": 2.87}}`)
		})
		assert.InDelta(t, 2.87, client.NativePrice(context.Background(), "monad"), 1e-9)
	})

	t.Run("unlisted falls back to exchange quote", func(t *testing.T) {
		client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		})
		assert.InDelta(t, nativeFallbackUSD, client.NativePrice(context.Background(), "monad"), 1e-9)
	})

	t.Run("server error falls back", func(t *testing.T) {
		client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		assert.InDelta(t, nativeFallbackUSD, client.NativePrice(context.Background(), "monad"), 1e-9)
	})
}
