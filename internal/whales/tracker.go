// internal/whales/tracker.go
package whales

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/events"
	"github.com/monofi/monofid/internal/explorer"
)

const (
	// maxSightings bounds the in-memory history.
	maxSightings = 256
	// maxWhaleAddresses caps how many holder addresses are scanned per cycle.
	maxWhaleAddresses = 10
	txsPerAddress     = 20
)

// Explorer is the slice of the explorer client the tracker needs.
type Explorer interface {
	NativeHolders(ctx context.Context, pageIndex, pageSize int) ([]explorer.Holder, error)
	AccountTransactions(ctx context.Context, address string, limit int) ([]explorer.Transaction, error)
}

// PriceSource quotes the native token in USD.
type PriceSource interface {
	NativePrice(ctx context.Context, coinID string) float64
}

// Sighting is one whale transaction the tracker has observed.
type Sighting struct {
	explorer.Transaction
	Size explorer.WhaleSize `json:"size"`
}

// Config wires a Tracker.
type Config struct {
	Explorer    Explorer
	Prices      PriceSource
	Bus         *events.Bus
	Logger      *zap.Logger
	Interval    time.Duration
	NativeCoin  string
	MinValueUSD decimal.Decimal
}

// Tracker polls the explorer for large native transfers, deduplicates them by
// hash and publishes an event per new sighting.
type Tracker struct {
	explorer    Explorer
	prices      PriceSource
	bus         *events.Bus
	logger      *zap.Logger
	interval    time.Duration
	nativeCoin  string
	minValueUSD decimal.Decimal

	mu        sync.RWMutex
	seen      map[string]bool
	sightings []Sighting

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTracker(cfg Config) *Tracker {
	if cfg.MinValueUSD.IsZero() {
		cfg.MinValueUSD = decimal.NewFromInt(10_000)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		explorer:    cfg.Explorer,
		prices:      cfg.Prices,
		bus:         cfg.Bus,
		logger:      cfg.Logger.Named("whale-tracker"),
		interval:    cfg.Interval,
		nativeCoin:  cfg.NativeCoin,
		minValueUSD: cfg.MinValueUSD,
		seen:        make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called. Callers run it in a
// goroutine.
func (t *Tracker) Start() {
	defer close(t.done)

	t.logger.Info("Starting whale tracker",
		zap.Duration("interval", t.interval),
		zap.String("min_value_usd", t.minValueUSD.String()))
	t.publishEvent(&events.MonitoringStartedEvent{
		BaseEvent: events.NewBase(events.MonitoringStarted),
		Component: "whale-tracker",
	})

	t.scan()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.scan()
		case <-t.ctx.Done():
			t.publishEvent(&events.MonitoringStoppedEvent{
				BaseEvent: events.NewBase(events.MonitoringStopped),
				Component: "whale-tracker",
				Reason:    "stopped",
			})
			t.logger.Debug("Whale tracker stopped")
			return
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (t *Tracker) Stop() {
	t.cancel()
	<-t.done
}

// Recent returns observed sightings, newest first.
func (t *Tracker) Recent(limit int) []Sighting {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Sighting, len(t.sightings))
	copy(out, t.sightings)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ActivitySummary aggregates the tracked history.
type ActivitySummary struct {
	TotalTransactions int             `json:"total_transactions"`
	TotalVolumeUSD    decimal.Decimal `json:"total_volume_usd"`
	AverageSizeUSD    decimal.Decimal `json:"average_size_usd"`
	TopWhales         []string        `json:"top_whales"`
	Last24h           int             `json:"last_24h"`
	Last7d            int             `json:"last_7d"`
	Last30d           int             `json:"last_30d"`
}

// Summary reports aggregate whale activity over the tracked history.
func (t *Tracker) Summary() ActivitySummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := ActivitySummary{
		TotalTransactions: len(t.sightings),
		TotalVolumeUSD:    decimal.Zero,
		AverageSizeUSD:    decimal.Zero,
	}

	now := time.Now()
	addresses := make(map[string]bool)
	for _, s := range t.sightings {
		summary.TotalVolumeUSD = summary.TotalVolumeUSD.Add(s.ValueUSD)
		addresses[s.From] = true
		addresses[s.To] = true

		age := now.Sub(s.Timestamp)
		if age < 24*time.Hour {
			summary.Last24h++
		}
		if age < 7*24*time.Hour {
			summary.Last7d++
		}
		if age < 30*24*time.Hour {
			summary.Last30d++
		}
	}
	if len(t.sightings) > 0 {
		summary.AverageSizeUSD = summary.TotalVolumeUSD.Div(decimal.NewFromInt(int64(len(t.sightings))))
	}

	for addr := range addresses {
		summary.TopWhales = append(summary.TopWhales, addr)
	}
	sort.Strings(summary.TopWhales)
	if len(summary.TopWhales) > 10 {
		summary.TopWhales = summary.TopWhales[:10]
	}
	return summary
}

func (t *Tracker) scan() {
	ctx, cancel := context.WithTimeout(t.ctx, 45*time.Second)
	defer cancel()

	holders, err := t.explorer.NativeHolders(ctx, 1, 50)
	if err != nil {
		t.logger.Error("Failed to list native holders", zap.Error(err))
		return
	}

	price := decimal.NewFromFloat(t.prices.NativePrice(ctx, t.nativeCoin))

	addresses := make([]string, 0, maxWhaleAddresses)
	for _, h := range holders {
		if h.Contract {
			continue
		}
		addresses = append(addresses, h.Address)
		if len(addresses) == maxWhaleAddresses {
			break
		}
	}

	detected := 0
	for _, address := range addresses {
		txs, err := t.explorer.AccountTransactions(ctx, address, txsPerAddress)
		if err != nil {
			t.logger.Warn("Failed to fetch whale transactions",
				zap.String("address", address), zap.Error(err))
			continue
		}
		for _, tx := range txs {
			valueUSD := tx.Value.Mul(price)
			if valueUSD.LessThan(t.minValueUSD) {
				continue
			}
			if t.record(tx, valueUSD) {
				detected++
			}
		}
	}

	if detected > 0 {
		t.logger.Info("Detected new whale transactions", zap.Int("count", detected))
	}
}

// record stores a sighting and publishes its event. It returns false when the
// transaction hash was already seen.
func (t *Tracker) record(tx explorer.Transaction, valueUSD decimal.Decimal) bool {
	t.mu.Lock()
	if t.seen[tx.Hash] {
		t.mu.Unlock()
		return false
	}
	t.seen[tx.Hash] = true

	sighting := Sighting{
		Transaction: tx,
		Size:        explorer.ClassifySize(valueUSD),
	}
	sighting.ValueUSD = valueUSD
	t.sightings = append(t.sightings, sighting)
	if len(t.sightings) > maxSightings {
		dropped := t.sightings[0]
		delete(t.seen, dropped.Hash)
		t.sightings = t.sightings[1:]
	}
	t.mu.Unlock()

	t.publishEvent(&events.WhaleDetectedEvent{
		BaseEvent: events.NewBase(events.WhaleDetected),
		Hash:      tx.Hash,
		From:      tx.From,
		To:        tx.To,
		ValueUSD:  valueUSD.InexactFloat64(),
		Size:      string(sighting.Size),
	})
	return true
}

func (t *Tracker) publishEvent(event events.Event) {
	if err := t.bus.Publish(event); err != nil {
		t.logger.Warn("Dropped event", zap.String("type", string(event.Type())), zap.Error(err))
	}
}
