// internal/explorer/client.go
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxRetries            = 3
	cacheTTL              = 30 * time.Second
	minRequestGap         = time.Second
)

// Client queries a Blockvision-style explorer REST API. Responses are cached
// briefly and requests are spaced out to respect the free-plan rate limit.
type Client struct {
	client  *http.Client
	logger  *zap.Logger
	baseURL string
	apiKey  string

	mu          sync.Mutex
	lastRequest time.Time
	requestGap  time.Duration
	cache       map[string]cacheEntry
}

type cacheEntry struct {
	body    []byte
	savedAt time.Time
}

// envelope is the explorer's response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type resultPage struct {
	Data           json.RawMessage `json:"data"`
	NextPageCursor string          `json:"nextPageCursor,omitempty"`
}

type apiTransaction struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	GasUsed     string `json:"gasUsed"`
	MethodName  string `json:"methodName"`
}

type apiHolder struct {
	Holder         string `json:"holder"`
	AccountAddress string `json:"accountAddress"`
	Amount         string `json:"amount"`
	Percentage     string `json:"percentage"`
	USDValue       string `json:"usdValue"`
	IsContract     bool   `json:"isContract"`
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:     logger.Named("explorer"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		requestGap: minRequestGap,
		cache:      make(map[string]cacheEntry),
	}
}

// AccountTransactions lists recent native transfers involving an address.
func (c *Client) AccountTransactions(ctx context.Context, address string, limit int) ([]Transaction, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("limit", strconv.Itoa(limit))

	data, err := c.get(ctx, "/account/transactions", params)
	if err != nil {
		return nil, err
	}

	var raw []apiTransaction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	txs := make([]Transaction, 0, len(raw))
	for _, t := range raw {
		value, err := decimal.NewFromString(t.Value)
		if err != nil {
			c.logger.Warn("Skipping transaction with bad value",
				zap.String("hash", t.Hash), zap.String("value", t.Value))
			continue
		}
		txs = append(txs, Transaction{
			Hash:        t.Hash,
			From:        t.From,
			To:          t.To,
			Value:       value.Shift(-18),
			Timestamp:   normalizeTimestamp(t.Timestamp),
			BlockNumber: t.BlockNumber,
			GasUsed:     t.GasUsed,
			Method:      t.MethodName,
			Swap:        strings.Contains(strings.ToLower(t.MethodName), "swap"),
		})
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Timestamp.After(txs[j].Timestamp) })
	return txs, nil
}

// NativeHolders lists the largest native-token holders. Contract-scoped holder
// queries need a paid plan, so only the native endpoint is used.
func (c *Client) NativeHolders(ctx context.Context, pageIndex, pageSize int) ([]Holder, error) {
	params := url.Values{}
	params.Set("pageIndex", strconv.Itoa(pageIndex))
	params.Set("pageSize", strconv.Itoa(pageSize))

	data, err := c.get(ctx, "/native/holders", params)
	if err != nil {
		return nil, err
	}

	var raw []apiHolder
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode holders: %w", err)
	}

	holders := make([]Holder, 0, len(raw))
	for _, h := range raw {
		address := h.Holder
		if address == "" {
			address = h.AccountAddress
		}
		amount, err := decimal.NewFromString(h.Amount)
		if err != nil {
			amount = decimal.Zero
		}
		usd, err := decimal.NewFromString(h.USDValue)
		if err != nil {
			usd = decimal.Zero
		}
		holders = append(holders, Holder{
			Address:    address,
			Amount:     amount.Shift(-18),
			Percentage: h.Percentage,
			USDValue:   usd,
			Contract:   h.IsContract,
		})
	}
	return holders, nil
}

// NetworkStats derives aggregate figures from the top holder set.
func (c *Client) NetworkStats(ctx context.Context) (*NetworkStats, error) {
	holders, err := c.NativeHolders(ctx, 1, 100)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	active := 0
	activeFloor := decimal.NewFromInt(1000)
	for _, h := range holders {
		total = total.Add(h.Amount)
		if h.Amount.GreaterThan(activeFloor) {
			active++
		}
	}
	return &NetworkStats{
		TotalSupply:     total,
		TotalHolders:    len(holders),
		ActiveAddresses: active,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	cacheKey := endpoint + "?" + params.Encode()

	c.mu.Lock()
	if entry, ok := c.cache[cacheKey]; ok && time.Since(entry.savedAt) < cacheTTL {
		c.mu.Unlock()
		return entry.body, nil
	}
	c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		body, err := c.fetch(ctx, endpoint, params)
		if err == nil {
			c.mu.Lock()
			c.cache[cacheKey] = cacheEntry{body: body, savedAt: time.Now()}
			c.mu.Unlock()
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("retry explorer request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < maxRetries {
			if err := sleepCtx(ctx, time.Second*time.Duration(1<<uint(attempt))); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("explorer request failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.waitForSlot(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("explorer request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return nil, fmt.Errorf("explorer API key invalid or missing")
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("explorer rate limit exceeded")
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 && env.Code != 200 {
		reason := env.Reason
		if reason == "" {
			reason = env.Message
		}
		return nil, fmt.Errorf("explorer API error: %s", reason)
	}

	var page resultPage
	if err := json.Unmarshal(env.Result, &page); err != nil {
		return nil, fmt.Errorf("decode result page: %w", err)
	}
	return page.Data, nil
}

// waitForSlot spaces requests at least requestGap apart.
func (c *Client) waitForSlot(ctx context.Context) error {
	c.mu.Lock()
	wait := c.requestGap - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		return sleepCtx(ctx, wait)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalizeTimestamp(ts int64) time.Time {
	if ts > 1_000_000_000_000 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
