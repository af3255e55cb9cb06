// internal/prices/feed.go
package prices

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/events"
)

// Feed periodically refreshes tracked token prices and publishes an event for
// every price that moved.
type Feed struct {
	client   *Client
	bus      *events.Bus
	logger   *zap.Logger
	symbols  []string
	interval time.Duration

	mu     sync.RWMutex
	latest map[string]TokenPrice

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFeed(client *Client, bus *events.Bus, symbols []string, interval time.Duration, logger *zap.Logger) *Feed {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		client:   client,
		bus:      bus,
		logger:   logger.Named("price-feed"),
		symbols:  symbols,
		interval: interval,
		latest:   make(map[string]TokenPrice),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins the polling loop. It blocks until Stop is called or the parent
// context is cancelled, so callers usually run it in a goroutine.
func (f *Feed) Start() {
	defer close(f.done)

	f.logger.Info("Starting price feed",
		zap.Strings("symbols", f.symbols),
		zap.Duration("interval", f.interval))

	// First refresh immediately so consumers don't wait a full interval.
	f.refresh()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.refresh()
		case <-f.ctx.Done():
			f.logger.Debug("Price feed stopped")
			return
		}
	}
}

// Stop cancels the polling loop and waits for it to exit.
func (f *Feed) Stop() {
	f.cancel()
	<-f.done
}

// Current returns the most recent quote for a symbol.
func (f *Feed) Current(symbol string) (TokenPrice, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.latest[symbol]
	return p, ok
}

// Snapshot returns all tracked quotes.
func (f *Feed) Snapshot() []TokenPrice {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]TokenPrice, 0, len(f.latest))
	for _, p := range f.latest {
		out = append(out, p)
	}
	return out
}

func (f *Feed) refresh() {
	ctx, cancel := context.WithTimeout(f.ctx, 10*time.Second)
	defer cancel()

	markets, err := f.client.Markets(ctx, f.symbols)
	if err != nil {
		f.logger.Error("Failed to refresh prices", zap.Error(err))
		return
	}

	for _, market := range markets {
		f.mu.Lock()
		previous, seen := f.latest[market.Symbol]
		f.latest[market.Symbol] = market
		f.mu.Unlock()

		if seen && previous.PriceUSD == market.PriceUSD {
			continue
		}
		err := f.bus.Publish(&events.PriceUpdatedEvent{
			BaseEvent:     events.NewBase(events.PriceUpdated),
			Symbol:        market.Symbol,
			PriceUSD:      market.PriceUSD,
			Change24hPct:  market.Change24h,
			PreviousPrice: previous.PriceUSD,
		})
		if err != nil {
			f.logger.Warn("Dropped price update event",
				zap.String("symbol", market.Symbol), zap.Error(err))
		}
	}
}
