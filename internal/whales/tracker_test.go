// internal/whales/tracker_test.go
package whales

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/monofi/monofid/internal/events"
	"github.com/monofi/monofid/internal/explorer"
)

type fakeExplorer struct {
	mu      sync.Mutex
	holders []explorer.Holder
	txs     map[string][]explorer.Transaction
}

func (f *fakeExplorer) NativeHolders(_ context.Context, _, _ int) ([]explorer.Holder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holders, nil
}

func (f *fakeExplorer) AccountTransactions(_ context.Context, address string, _ int) ([]explorer.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txs[address], nil
}

func (f *fakeExplorer) addTx(address string, tx explorer.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[address] = append(f.txs[address], tx)
}

type fixedPrice float64

func (p fixedPrice) NativePrice(context.Context, string) float64 { return float64(p) }

func tx(hash string, amount int64, age time.Duration) explorer.Transaction {
	return explorer.Transaction{
		Hash:      hash,
		From:      "0xwhale1",
		To:        "0xexchange",
		Value:     decimal.NewFromInt(amount),
		Timestamp: time.Now().Add(-age),
	}
}

func newTestTracker(t *testing.T, exp Explorer, bus *events.Bus) *Tracker {
	t.Helper()
	return NewTracker(Config{
		Explorer:    exp,
		Prices:      fixedPrice(3.0),
		Bus:         bus,
		Logger:      zaptest.NewLogger(t),
		Interval:    10 * time.Millisecond,
		NativeCoin:  "monad",
		MinValueUSD: decimal.NewFromInt(10_000),
	})
}

func TestTrackerDetectsAndDeduplicates(t *testing.T) {
	exp := &fakeExplorer{
		holders: []explorer.Holder{
			{Address: "0xwhale1", Amount: decimal.NewFromInt(100_000)},
			{Address: "0xcontract", Contract: true},
		},
		txs: map[string][]explorer.Transaction{
			"0xwhale1": {
				tx("0xbig", 10_000, time.Hour),  // 30k USD, kept
				tx("0xsmall", 100, 2*time.Hour), // 300 USD, below floor
			},
		},
	}

	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 16)
	defer bus.Shutdown(context.Background())

	var mu sync.Mutex
	var detected []*events.WhaleDetectedEvent
	_ = bus.SubscribeFunc(events.WhaleDetected, func(_ context.Context, e events.Event) error {
		mu.Lock()
		detected = append(detected, e.(*events.WhaleDetectedEvent))
		mu.Unlock()
		return nil
	})

	tracker := newTestTracker(t, exp, bus)
	go tracker.Start()
	defer tracker.Stop()

	require.Eventually(t, func() bool {
		return len(tracker.Recent(0)) == 1
	}, time.Second, 5*time.Millisecond)

	// Let a few more scan cycles run over the same data.
	time.Sleep(50 * time.Millisecond)

	recent := tracker.Recent(0)
	require.Len(t, recent, 1, "same hash must not be recorded twice")
	assert.Equal(t, "0xbig", recent[0].Hash)
	assert.Equal(t, explorer.SizeDolphin, recent[0].Size)
	assert.True(t, recent[0].ValueUSD.Equal(decimal.NewFromInt(30_000)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, detected, 1)
	assert.Equal(t, "0xbig", detected[0].Hash)
	assert.Equal(t, string(explorer.SizeDolphin), detected[0].Size)
}

func TestTrackerPicksUpNewTransactions(t *testing.T) {
	exp := &fakeExplorer{
		holders: []explorer.Holder{{Address: "0xwhale1"}},
		txs: map[string][]explorer.Transaction{
			"0xwhale1": {tx("0xfirst", 10_000, time.Hour)},
		},
	}

	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 16)
	defer bus.Shutdown(context.Background())

	tracker := newTestTracker(t, exp, bus)
	go tracker.Start()
	defer tracker.Stop()

	require.Eventually(t, func() bool {
		return len(tracker.Recent(0)) == 1
	}, time.Second, 5*time.Millisecond)

	exp.addTx("0xwhale1", tx("0xsecond", 400_000, time.Minute))

	require.Eventually(t, func() bool {
		return len(tracker.Recent(0)) == 2
	}, time.Second, 5*time.Millisecond)

	recent := tracker.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "0xsecond", recent[0].Hash, "newest sighting first")
	assert.Equal(t, explorer.SizeWhale, recent[0].Size)
}

func TestTrackerSummary(t *testing.T) {
	exp := &fakeExplorer{
		holders: []explorer.Holder{{Address: "0xwhale1"}},
		txs: map[string][]explorer.Transaction{
			"0xwhale1": {
				tx("0xa", 10_000, time.Hour),       // 30k, 24h bucket
				tx("0xb", 20_000, 3*24*time.Hour),  // 60k, 7d bucket
				tx("0xc", 30_000, 20*24*time.Hour), // 90k, 30d bucket
			},
		},
	}

	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 16)
	defer bus.Shutdown(context.Background())

	tracker := newTestTracker(t, exp, bus)
	go tracker.Start()
	defer tracker.Stop()

	require.Eventually(t, func() bool {
		return len(tracker.Recent(0)) == 3
	}, time.Second, 5*time.Millisecond)

	summary := tracker.Summary()
	assert.Equal(t, 3, summary.TotalTransactions)
	assert.True(t, summary.TotalVolumeUSD.Equal(decimal.NewFromInt(180_000)))
	assert.True(t, summary.AverageSizeUSD.Equal(decimal.NewFromInt(60_000)))
	assert.Equal(t, 1, summary.Last24h)
	assert.Equal(t, 2, summary.Last7d)
	assert.Equal(t, 3, summary.Last30d)
	assert.ElementsMatch(t, []string{"0xwhale1", "0xexchange"}, summary.TopWhales)
}
