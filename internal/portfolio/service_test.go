// internal/portfolio/service_test.go
package portfolio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/monofi/monofid/internal/advisor"
	"github.com/monofi/monofid/internal/allocation"
	"github.com/monofi/monofid/internal/events"
)

type fakeChain struct {
	mu         sync.Mutex
	categories []string
	pcts       []int64
	readErr    error

	written [][]int64
	sendErr error
	waitErr error
}

func (f *fakeChain) GetAllocations(context.Context) ([]string, []int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.categories, f.pcts, f.readErr
}

func (f *fakeChain) UpdateAllocations(_ context.Context, categories []string, percentages []int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.written = append(f.written, percentages)
	return "0xhash", nil
}

func (f *fakeChain) AwaitConfirmation(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func testCatalog() allocation.Set {
	return allocation.Set{
		{ID: "defi", Name: "DeFi", Percentage: 50},
		{ID: "meme", Name: "Meme & NFT", Percentage: 30},
		{ID: "stablecoin", Name: "Stablecoins", Percentage: 20},
	}
}

func newTestService(t *testing.T, chain *fakeChain) (*Service, *events.Bus) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 16)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })

	svc := NewService(Config{
		Reader:         chain,
		Writer:         chain,
		Waiter:         chain,
		Bus:            bus,
		Catalog:        testCatalog(),
		ConfirmTimeout: time.Second,
		Logger:         logger,
	})
	return svc, bus
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	chain := &fakeChain{
		categories: []string{"defi", "meme", "stablecoin"},
		pcts:       []int64{60, 10, 30},
	}
	svc, _ := newTestService(t, chain)

	require.NoError(t, svc.Refresh(context.Background()))

	current := svc.Current()
	require.Len(t, current, 3)
	assert.Equal(t, allocation.Allocation{ID: "defi", Name: "DeFi", Percentage: 60}, current[0])
	assert.Equal(t, 100, current.Total())
}

func TestRefreshEmptyContractUsesCatalog(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})

	require.NoError(t, svc.Refresh(context.Background()))
	assert.Equal(t, testCatalog(), svc.Current())
}

func TestDraftEditingAndAutoBalance(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})

	// No edits yet: draft mirrors the snapshot.
	assert.Equal(t, svc.Current(), svc.Draft())

	require.NoError(t, svc.UpdateDraftEntry("defi", 70))
	draft := svc.Draft()
	entry, ok := draft.Get("defi")
	require.True(t, ok)
	assert.Equal(t, 70, entry.Percentage)
	assert.Equal(t, 120, draft.Total())

	balanced := svc.AutoBalance(map[string]bool{"defi": true})
	assert.Equal(t, 100, balanced.Total())
	entry, _ = balanced.Get("defi")
	assert.Equal(t, 70, entry.Percentage, "locked entry untouched")

	svc.ResetDraft()
	assert.Equal(t, svc.Current(), svc.Draft())
}

func TestUpdateDraftEntryValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})

	require.Error(t, svc.UpdateDraftEntry("defi", 101))
	require.Error(t, svc.UpdateDraftEntry("unknown", 10))
}

func TestApplySuggestion(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})

	draft, err := svc.ApplySuggestion(&advisor.Action{
		Type: "rebalance",
		Changes: []advisor.Change{
			{Category: "defi", From: 50, To: 60},
			{Category: "gaming", From: 5, To: 10}, // unknown, ignored
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 100, draft.Total())
	entry, _ := draft.Get("defi")
	assert.Equal(t, 60, entry.Percentage)

	// The suggestion became the pending draft.
	assert.Equal(t, draft, svc.Draft())
}

func TestApplySuggestionNoKnownCategories(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})

	_, err := svc.ApplySuggestion(&advisor.Action{
		Changes: []advisor.Change{{Category: "gaming", To: 10}},
	})
	require.Error(t, err)

	_, err = svc.ApplySuggestion(nil)
	require.Error(t, err)
}

func TestSubmitConfirmedClearsDraft(t *testing.T) {
	chain := &fakeChain{}
	svc, _ := newTestService(t, chain)

	require.NoError(t, svc.UpdateDraftEntry("defi", 60))
	require.NoError(t, svc.UpdateDraftEntry("meme", 20))

	record, err := svc.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, allocation.StatusConfirmed, record.Status)

	// Store reflects the submitted set, draft falls back to it.
	entry, _ := svc.Current().Get("defi")
	assert.Equal(t, 60, entry.Percentage)
	assert.Equal(t, svc.Current(), svc.Draft())

	require.Len(t, chain.written, 1)
	assert.Equal(t, []int64{60, 20, 20}, chain.written[0])
}

func TestSubmitWithoutDraft(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})

	_, err := svc.Submit(context.Background())
	require.ErrorIs(t, err, allocation.ErrNoChanges)
}

func TestSubmitInvalidTotalKeepsDraft(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})

	require.NoError(t, svc.UpdateDraftEntry("defi", 70))

	_, err := svc.Submit(context.Background())
	require.ErrorIs(t, err, allocation.ErrInvalidTotal)

	// Draft kept so the caller can fix it.
	entry, _ := svc.Draft().Get("defi")
	assert.Equal(t, 70, entry.Percentage)
}

func TestSubmitFailureRollsBackAndKeepsDraft(t *testing.T) {
	chain := &fakeChain{waitErr: errors.New("transaction reverted on chain")}
	svc, _ := newTestService(t, chain)
	before := svc.Current()

	require.NoError(t, svc.UpdateDraftEntry("defi", 60))
	require.NoError(t, svc.UpdateDraftEntry("meme", 20))
	edited := svc.Draft()

	_, err := svc.Submit(context.Background())
	var writeErr *allocation.ChainWriteError
	require.ErrorAs(t, err, &writeErr)

	assert.Equal(t, before, svc.Current(), "rolled back to prior snapshot")
	assert.Equal(t, edited, svc.Draft(), "edits survive a failed write")
}

func TestSubmitCancelledKeepsDraft(t *testing.T) {
	chain := &fakeChain{sendErr: errors.New("User denied transaction signature")}
	svc, _ := newTestService(t, chain)
	before := svc.Current()

	require.NoError(t, svc.UpdateDraftEntry("defi", 60))
	require.NoError(t, svc.UpdateDraftEntry("meme", 20))
	edited := svc.Draft()

	_, err := svc.Submit(context.Background())
	require.ErrorIs(t, err, allocation.ErrUserCancelled)

	assert.Equal(t, before, svc.Current(), "snapshot untouched after decline")
	assert.Equal(t, edited, svc.Draft(), "edits survive a declined signature")
}

func TestHistoryRecordsLifecycleEvents(t *testing.T) {
	chain := &fakeChain{}
	svc, bus := newTestService(t, chain)

	var mu sync.Mutex
	var broadcast, confirmed int
	_ = bus.SubscribeFunc(events.SubmissionBroadcast, func(_ context.Context, _ events.Event) error {
		mu.Lock()
		broadcast++
		mu.Unlock()
		return nil
	})
	_ = bus.SubscribeFunc(events.SubmissionConfirmed, func(_ context.Context, _ events.Event) error {
		mu.Lock()
		confirmed++
		mu.Unlock()
		return nil
	})

	require.NoError(t, svc.UpdateDraftEntry("defi", 60))
	require.NoError(t, svc.UpdateDraftEntry("meme", 20))
	_, err := svc.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, svc.History(), 1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return broadcast == 1 && confirmed == 1
	}, time.Second, 5*time.Millisecond)
}
