// internal/allocation/coordinator_test.go
package allocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// mockWriter records broadcast calls and returns a canned result.
type mockWriter struct {
	mu    sync.Mutex
	calls int
	hash  string
	err   error
}

func (w *mockWriter) UpdateAllocations(_ context.Context, categories []string, percentages []int64) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if len(categories) != len(percentages) {
		return "", errors.New("positional arrays length mismatch")
	}
	return w.hash, w.err
}

func (w *mockWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// mockWaiter resolves confirmations on demand.
type mockWaiter struct {
	err     error
	release chan struct{} // when non-nil, blocks until closed
}

func (w *mockWaiter) AwaitConfirmation(ctx context.Context, _ string) error {
	if w.release != nil {
		select {
		case <-w.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return w.err
}

func newTestCoordinator(t *testing.T, store *Store, writer ChainWriter, waiter ConfirmationWaiter) *Coordinator {
	t.Helper()
	return NewCoordinator(CoordinatorConfig{
		Store:  store,
		Writer: writer,
		Waiter: waiter,
		Logger: zaptest.NewLogger(t),
	})
}

func changedSet() Set {
	set := defaultSet()
	for i := range set {
		switch set[i].ID {
		case "l1":
			set[i].Percentage = 20
		case "meme":
			set[i].Percentage = 5
		}
	}
	return set
}

func TestSubmitNoOpNeverHitsChain(t *testing.T) {
	store := NewStore(defaultSet())
	writer := &mockWriter{hash: "0xabc"}
	coord := newTestCoordinator(t, store, writer, &mockWaiter{})

	record, err := coord.Submit(context.Background(), defaultSet())

	require.ErrorIs(t, err, ErrNoChanges)
	assert.Nil(t, record)
	assert.Equal(t, 0, writer.callCount())
	assert.Empty(t, coord.Records())
}

func TestSubmitInvalidTotal(t *testing.T) {
	store := NewStore(defaultSet())
	writer := &mockWriter{hash: "0xabc"}
	coord := newTestCoordinator(t, store, writer, &mockWaiter{})

	candidate := defaultSet()
	candidate[0].Percentage += 5 // total 105

	_, err := coord.Submit(context.Background(), candidate)

	require.ErrorIs(t, err, ErrInvalidTotal)
	assert.Equal(t, 0, writer.callCount())
	assert.Equal(t, defaultSet(), store.Current())
}

func TestSubmitConfirmedKeepsOptimisticSet(t *testing.T) {
	store := NewStore(defaultSet())
	writer := &mockWriter{hash: "0xdeadbeef"}
	coord := newTestCoordinator(t, store, writer, &mockWaiter{})

	candidate := changedSet()
	record, err := coord.Submit(context.Background(), candidate)

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, StatusConfirmed, record.Status)
	assert.Equal(t, "0xdeadbeef", record.Hash)
	assert.True(t, record.Terminal())
	assert.Equal(t, candidate, store.Current())
	assert.Equal(t, 1, writer.callCount())
	assert.Nil(t, coord.InFlight())
}

func TestSubmitRollbackOnConfirmationFailure(t *testing.T) {
	prior := defaultSet()
	store := NewStore(prior)
	writer := &mockWriter{hash: "0xabc"}
	waiter := &mockWaiter{err: errors.New("execution reverted")}
	coord := newTestCoordinator(t, store, writer, waiter)

	record, err := coord.Submit(context.Background(), changedSet())

	var cwe *ChainWriteError
	require.ErrorAs(t, err, &cwe)
	assert.Equal(t, "0xabc", cwe.Hash)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, prior, store.Current(), "store must reflect the pre-submission set")
}

func TestSubmitRollbackOnBroadcastFailure(t *testing.T) {
	prior := defaultSet()
	store := NewStore(prior)
	writer := &mockWriter{err: errors.New("insufficient funds for gas")}
	coord := newTestCoordinator(t, store, writer, &mockWaiter{})

	record, err := coord.Submit(context.Background(), changedSet())

	var cwe *ChainWriteError
	require.ErrorAs(t, err, &cwe)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, prior, store.Current())
}

func TestSubmitUserCancelledRollsBackSilently(t *testing.T) {
	prior := defaultSet()
	store := NewStore(prior)
	writer := &mockWriter{err: errors.New("MetaMask Tx Signature: User denied transaction signature")}
	coord := newTestCoordinator(t, store, writer, &mockWaiter{})

	record, err := coord.Submit(context.Background(), changedSet())

	require.ErrorIs(t, err, ErrUserCancelled)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, prior, store.Current())
}

func TestSubmitReentrancyRejected(t *testing.T) {
	store := NewStore(defaultSet())
	writer := &mockWriter{hash: "0xabc"}
	waiter := &mockWaiter{release: make(chan struct{})}
	coord := newTestCoordinator(t, store, writer, waiter)

	firstDone := make(chan error, 1)
	go func() {
		_, err := coord.Submit(context.Background(), changedSet())
		firstDone <- err
	}()

	// Wait until the first submission is in flight.
	require.Eventually(t, func() bool {
		return coord.InFlight() != nil
	}, time.Second, 5*time.Millisecond)

	second := changedSet()
	second[0].Percentage -= 5
	second[2].Percentage += 5
	_, err := coord.Submit(context.Background(), second)
	require.ErrorIs(t, err, ErrAlreadyInProgress)

	close(waiter.release)
	require.NoError(t, <-firstDone)

	assert.Equal(t, 1, writer.callCount(), "rejected submission must have no side effects")
	assert.Len(t, coord.Records(), 1)
}

func TestSubmitConfirmationTimeout(t *testing.T) {
	prior := defaultSet()
	store := NewStore(prior)
	writer := &mockWriter{hash: "0xabc"}
	waiter := &mockWaiter{release: make(chan struct{})} // never released
	coord := NewCoordinator(CoordinatorConfig{
		Store:          store,
		Writer:         writer,
		Waiter:         waiter,
		ConfirmTimeout: 20 * time.Millisecond,
		Logger:         zaptest.NewLogger(t),
	})

	record, err := coord.Submit(context.Background(), changedSet())

	var cwe *ChainWriteError
	require.ErrorAs(t, err, &cwe)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, prior, store.Current())
}

func TestSubmitPublishesLifecycleEvents(t *testing.T) {
	store := NewStore(defaultSet())
	writer := &mockWriter{hash: "0xabc"}
	events := &capturingPublisher{}
	coord := NewCoordinator(CoordinatorConfig{
		Store:  store,
		Writer: writer,
		Waiter: &mockWaiter{},
		Events: events,
		Logger: zaptest.NewLogger(t),
	})

	_, err := coord.Submit(context.Background(), changedSet())
	require.NoError(t, err)

	published := events.snapshot()
	require.Len(t, published, 2)
	assert.IsType(t, SubmittedEvent{}, published[0])
	assert.IsType(t, ConfirmedEvent{}, published[1])
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *capturingPublisher) Publish(event interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) snapshot() []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interface{}(nil), p.events...)
}
