// internal/portfolio/adapters.go
package portfolio

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/allocation"
	"github.com/monofi/monofid/internal/events"
	"github.com/monofi/monofid/internal/logger"
	"github.com/monofi/monofid/internal/storage"
	"github.com/monofi/monofid/internal/storage/models"
)

// lifecyclePublisher translates coordinator lifecycle events onto the daemon
// event bus.
type lifecyclePublisher struct {
	bus    *events.Bus
	logger *zap.Logger
}

func (p *lifecyclePublisher) Publish(event interface{}) {
	var err error
	switch e := event.(type) {
	case allocation.SubmittedEvent:
		err = p.bus.Publish(&events.SubmissionBroadcastEvent{
			BaseEvent: events.NewBase(events.SubmissionBroadcast),
			RecordID:  e.Record.ID,
			Hash:      e.Record.Hash,
		})
	case allocation.ConfirmedEvent:
		err = p.bus.Publish(&events.SubmissionConfirmedEvent{
			BaseEvent: events.NewBase(events.SubmissionConfirmed),
			RecordID:  e.Record.ID,
			Hash:      e.Record.Hash,
		})
	case allocation.FailedEvent:
		err = p.bus.Publish(&events.SubmissionFailedEvent{
			BaseEvent: events.NewBase(events.SubmissionFailed),
			RecordID:  e.Record.ID,
			Hash:      e.Record.Hash,
			Cancelled: e.Cancelled,
			Error:     e.Record.Error,
		})
	default:
		return
	}
	if err != nil {
		p.logger.Warn("Dropped submission lifecycle event", zap.Error(err))
	}
}

// storageSink persists terminal submission records.
type storageSink struct {
	store         storage.Storage
	walletAddress string
}

// NewStorageSink adapts the storage layer to the coordinator's record sink.
func NewStorageSink(store storage.Storage, walletAddress string) allocation.RecordSink {
	return &storageSink{store: store, walletAddress: walletAddress}
}

func (s *storageSink) SaveSubmission(ctx context.Context, record *allocation.SubmissionRecord) error {
	requested, err := json.Marshal(record.Requested)
	if err != nil {
		return err
	}
	prior, err := json.Marshal(record.Prior)
	if err != nil {
		return err
	}

	sub := &models.Submission{
		SubmissionID:  record.ID,
		TxHash:        record.Hash,
		WalletAddress: s.walletAddress,
		Status:        string(record.Status),
		Requested:     string(requested),
		Prior:         string(prior),
		ErrorMessage:  record.Error,
	}
	if !record.CompletedAt.IsZero() {
		completed := record.CompletedAt
		sub.CompletedAt = &completed
	}
	return s.store.SaveSubmission(ctx, sub)
}

// CSVAuditSink appends every record transition to a CSV audit trail.
type CSVAuditSink struct {
	writer *logger.SafeCSVWriter
}

func NewCSVAuditSink(path string, log *zap.Logger) (*CSVAuditSink, error) {
	writer, err := logger.NewSafeCSVWriter(path, allocation.CSVHeaders(), 30*time.Second, log)
	if err != nil {
		return nil, err
	}
	return &CSVAuditSink{writer: writer}, nil
}

func (s *CSVAuditSink) SaveSubmission(_ context.Context, record *allocation.SubmissionRecord) error {
	return s.writer.WriteRecord(record.ToCSV())
}

func (s *CSVAuditSink) Close() error {
	return s.writer.Close()
}

// MultiSink fans a record out to several sinks, returning the first error.
func MultiSink(sinks ...allocation.RecordSink) allocation.RecordSink {
	return multiSink(sinks)
}

type multiSink []allocation.RecordSink

func (m multiSink) SaveSubmission(ctx context.Context, record *allocation.SubmissionRecord) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.SaveSubmission(ctx, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
