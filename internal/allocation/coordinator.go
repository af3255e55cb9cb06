// internal/allocation/coordinator.go
package allocation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ChainWriter broadcasts an allocation update to the portfolio contract.
// Categories and percentages are positionally paired and equal length.
type ChainWriter interface {
	UpdateAllocations(ctx context.Context, categories []string, percentages []int64) (hash string, err error)
}

// ConfirmationWaiter blocks until the transaction with the given hash reaches
// a terminal state. A nil return means the transaction succeeded on chain.
type ConfirmationWaiter interface {
	AwaitConfirmation(ctx context.Context, hash string) error
}

// Publisher receives submission lifecycle events. Implemented by an adapter
// over the daemon event bus.
type Publisher interface {
	Publish(event interface{})
}

// RecordSink persists completed submission records.
type RecordSink interface {
	SaveSubmission(ctx context.Context, record *SubmissionRecord) error
}

// SubmittedEvent is published after a transaction was broadcast.
type SubmittedEvent struct {
	Record *SubmissionRecord
}

// ConfirmedEvent is published when a submission is confirmed on chain.
type ConfirmedEvent struct {
	Record *SubmissionRecord
}

// FailedEvent is published when a submission failed or was cancelled.
type FailedEvent struct {
	Record    *SubmissionRecord
	Cancelled bool
}

// CoordinatorConfig wires the coordinator's collaborators.
type CoordinatorConfig struct {
	Store          *Store
	Writer         ChainWriter
	Waiter         ConfirmationWaiter
	Events         Publisher     // optional
	Sink           RecordSink    // optional
	ConfirmTimeout time.Duration // zero means wait until the waiter returns
	Logger         *zap.Logger
}

// Coordinator owns the submission lifecycle: validation, the single-flight
// guard, the optimistic store update and the rollback on failure. Exactly one
// submission may be in flight at a time.
type Coordinator struct {
	mu       sync.Mutex
	inFlight *SubmissionRecord
	history  []*SubmissionRecord

	store          *Store
	writer         ChainWriter
	waiter         ConfirmationWaiter
	events         Publisher
	sink           RecordSink
	confirmTimeout time.Duration
	logger         *zap.Logger
}

const maxHistoryRecords = 64

// NewCoordinator creates a coordinator from the given config.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		store:          cfg.Store,
		writer:         cfg.Writer,
		waiter:         cfg.Waiter,
		events:         cfg.Events,
		sink:           cfg.Sink,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         cfg.Logger.Named("coordinator"),
	}
}

// Submit validates the candidate, broadcasts it and blocks until the chain
// reports a terminal state. The store reflects the candidate optimistically
// while the confirmation is outstanding and is rolled back to the prior set
// on any failure, so callers never observe a stuck unconfirmed update.
//
// Returned errors: ErrAlreadyInProgress, ErrInvalidTotal, ErrNoChanges (a
// neutral no-op signal), ErrUserCancelled, or a *ChainWriteError. Only the
// last one should be surfaced as a failure.
func (c *Coordinator) Submit(ctx context.Context, candidate Set) (*SubmissionRecord, error) {
	candidate = candidate.Clone()

	c.mu.Lock()
	if c.inFlight != nil {
		c.mu.Unlock()
		c.logger.Debug("Submission rejected, another one is in flight")
		return nil, ErrAlreadyInProgress
	}

	if total := candidate.Total(); total != 100 {
		c.mu.Unlock()
		c.logger.Warn("Submission rejected, invalid total", zap.Int("total", total))
		return nil, ErrInvalidTotal
	}

	prior := c.store.Current()
	if !HasChanges(candidate, prior) {
		c.mu.Unlock()
		c.logger.Info("Submission skipped, no changes against current portfolio")
		return nil, ErrNoChanges
	}

	record := newSubmissionRecord(candidate, prior)
	c.inFlight = record
	c.history = append(c.history, record)
	if len(c.history) > maxHistoryRecords {
		c.history = c.history[len(c.history)-maxHistoryRecords:]
	}
	c.mu.Unlock()

	// The guard clears only after the record is terminal, so a rollback can
	// never race a fresh submission.
	defer func() {
		c.mu.Lock()
		c.inFlight = nil
		c.mu.Unlock()
	}()

	// Optimistic apply for read-your-write responsiveness; the authoritative
	// set arrives with the next refresh.
	c.store.Replace(candidate)

	hash, err := c.writer.UpdateAllocations(ctx, candidate.Categories(), candidate.Percentages())
	if err != nil {
		return record, c.fail(ctx, record, "", err)
	}
	record.Hash = hash
	c.logger.Info("Allocation update broadcast", zap.String("hash", hash))
	c.publish(SubmittedEvent{Record: record})

	waitCtx := ctx
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	if err := c.waiter.AwaitConfirmation(waitCtx, hash); err != nil {
		return record, c.fail(ctx, record, hash, err)
	}

	record.complete(StatusConfirmed, "")
	c.logger.Info("Allocation update confirmed", zap.String("hash", hash))
	c.publish(ConfirmedEvent{Record: record})
	c.save(ctx, record)

	return record, nil
}

// fail rolls the store back to the prior set, finalizes the record and maps
// the error into the taxonomy.
func (c *Coordinator) fail(ctx context.Context, record *SubmissionRecord, hash string, err error) error {
	c.store.Replace(record.Prior)

	if IsUserCancellation(err) {
		record.complete(StatusFailed, "transaction cancelled by user")
		c.logger.Info("Allocation update cancelled by user")
		c.publish(FailedEvent{Record: record, Cancelled: true})
		c.save(ctx, record)
		return ErrUserCancelled
	}

	record.complete(StatusFailed, err.Error())
	c.logger.Error("Allocation update failed",
		zap.String("hash", hash),
		zap.Error(err))
	c.publish(FailedEvent{Record: record})
	c.save(ctx, record)
	return &ChainWriteError{Hash: hash, Err: err}
}

func (c *Coordinator) publish(event interface{}) {
	if c.events != nil {
		c.events.Publish(event)
	}
}

func (c *Coordinator) save(ctx context.Context, record *SubmissionRecord) {
	if c.sink == nil {
		return
	}
	if err := c.sink.SaveSubmission(ctx, record); err != nil {
		c.logger.Warn("Failed to persist submission record",
			zap.String("record_id", record.ID),
			zap.Error(err))
	}
}

// InFlight returns the currently pending record, if any.
func (c *Coordinator) InFlight() *SubmissionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Records returns the recent submission records, oldest first.
func (c *Coordinator) Records() []*SubmissionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*SubmissionRecord(nil), c.history...)
}
