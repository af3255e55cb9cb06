// internal/portfolio/service.go
package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/advisor"
	"github.com/monofi/monofid/internal/allocation"
	"github.com/monofi/monofid/internal/events"
)

// ChainReader reads the authoritative allocation set from the contract.
type ChainReader interface {
	GetAllocations(ctx context.Context) ([]string, []int64, error)
}

// Config wires a Service.
type Config struct {
	Reader         ChainReader
	Writer         allocation.ChainWriter
	Waiter         allocation.ConfirmationWaiter
	Sink           allocation.RecordSink // optional
	Bus            *events.Bus
	Catalog        allocation.Set // category id -> display name source
	RefreshDelay   time.Duration
	ConfirmTimeout time.Duration
	Logger         *zap.Logger
}

// Service ties the allocation store, the submission coordinator and the
// chain reader together, and owns the user's pending draft.
type Service struct {
	store       *allocation.Store
	coordinator *allocation.Coordinator
	reader      ChainReader
	bus         *events.Bus
	catalog     allocation.Set
	refresh     time.Duration
	logger      *zap.Logger

	mu    sync.Mutex
	draft allocation.Set // nil means no pending edits

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger.Named("portfolio")
	store := allocation.NewStore(cfg.Catalog.Clone())

	coordinator := allocation.NewCoordinator(allocation.CoordinatorConfig{
		Store:          store,
		Writer:         cfg.Writer,
		Waiter:         cfg.Waiter,
		Events:         &lifecyclePublisher{bus: cfg.Bus, logger: logger},
		Sink:           cfg.Sink,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:       store,
		coordinator: coordinator,
		reader:      cfg.Reader,
		bus:         cfg.Bus,
		catalog:     cfg.Catalog.Clone(),
		refresh:     cfg.RefreshDelay,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start runs the periodic chain refresh loop. Callers run it in a goroutine.
func (s *Service) Start() {
	defer close(s.done)

	if err := s.Refresh(s.ctx); err != nil {
		s.logger.Warn("Initial allocation refresh failed", zap.Error(err))
	}

	if s.refresh <= 0 {
		<-s.ctx.Done()
		return
	}

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Refresh(s.ctx); err != nil {
				s.logger.Warn("Allocation refresh failed", zap.Error(err))
			}
		case <-s.ctx.Done():
			s.logger.Debug("Portfolio refresh loop stopped")
			return
		}
	}
}

// Stop cancels the refresh loop and waits for it to exit.
func (s *Service) Stop() {
	s.cancel()
	<-s.done
}

// Current returns the authoritative allocation snapshot.
func (s *Service) Current() allocation.Set {
	return s.store.Current()
}

// Store exposes the underlying allocation store for subscribers.
func (s *Service) Store() *allocation.Store {
	return s.store
}

// Refresh pulls the allocation set from the contract and replaces the store
// snapshot. While a submission is in flight the optimistic set stays in
// place and the refresh is skipped.
func (s *Service) Refresh(ctx context.Context) error {
	if s.coordinator.InFlight() != nil {
		s.logger.Debug("Skipping refresh, submission in flight")
		return nil
	}

	categories, percentages, err := s.reader.GetAllocations(ctx)
	if err != nil {
		return fmt.Errorf("read allocations: %w", err)
	}

	var set allocation.Set
	if len(categories) == 0 {
		// Fresh contract with no allocations yet: seed with the catalog.
		set = s.catalog.Clone()
		s.logger.Info("Contract has no allocations, using catalog defaults")
	} else {
		set = make(allocation.Set, 0, len(categories))
		for i, id := range categories {
			set = append(set, allocation.Allocation{
				ID:         id,
				Name:       s.displayName(id),
				Percentage: int(percentages[i]),
			})
		}
	}

	s.store.Replace(set)
	s.publishRefreshed(set, "chain")
	return nil
}

// Draft returns the pending draft, falling back to the current snapshot when
// nothing has been edited yet.
func (s *Service) Draft() allocation.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return s.store.Current()
	}
	return s.draft.Clone()
}

// SetDraft replaces the pending draft wholesale.
func (s *Service) SetDraft(set allocation.Set) {
	s.mu.Lock()
	s.draft = set.Clone()
	s.mu.Unlock()
}

// UpdateDraftEntry sets one category's percentage in the draft.
func (s *Service) UpdateDraftEntry(id string, percentage int) error {
	if percentage < 0 || percentage > 100 {
		return fmt.Errorf("percentage %d out of range", percentage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.draft
	if draft == nil {
		draft = s.store.Current()
	}
	for i := range draft {
		if draft[i].ID == id {
			draft[i].Percentage = percentage
			s.draft = draft
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", id)
}

// ResetDraft discards pending edits.
func (s *Service) ResetDraft() {
	s.mu.Lock()
	s.draft = nil
	s.mu.Unlock()
}

// AutoBalance rebalances the draft so it sums to 100, keeping the locked
// categories untouched, and stores the result as the new draft.
func (s *Service) AutoBalance(locked map[string]bool) allocation.Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.draft
	if draft == nil {
		draft = s.store.Current()
	}
	balanced := allocation.Rebalance(draft, locked)
	s.draft = balanced
	return balanced.Clone()
}

// ApplySuggestion seeds the draft from an advisor action. Target percentages
// come from the action; baselines are re-derived from the live snapshot, the
// touched categories are locked and the rest auto-balanced around them.
func (s *Service) ApplySuggestion(action *advisor.Action) (allocation.Set, error) {
	if action == nil || len(action.Changes) == 0 {
		return nil, fmt.Errorf("no changes in suggestion")
	}

	draft := s.store.Current()
	locked := make(map[string]bool, len(action.Changes))

	applied := 0
	for _, change := range action.Changes {
		for i := range draft {
			if draft[i].ID != change.Category {
				continue
			}
			target := change.To
			if target < 0 || target > 100 {
				target = max(0, min(100, target))
			}
			draft[i].Percentage = target
			locked[change.Category] = true
			applied++
			break
		}
	}
	if applied == 0 {
		return nil, fmt.Errorf("suggestion references no known categories")
	}

	balanced := allocation.Rebalance(draft, locked)

	s.mu.Lock()
	s.draft = balanced
	s.mu.Unlock()
	return balanced.Clone(), nil
}

// Submit pushes the pending draft through the submission lifecycle. The
// draft is cleared only once the write is confirmed; a declined signature
// or a failed write keeps the user's edits for another attempt.
func (s *Service) Submit(ctx context.Context) (*allocation.SubmissionRecord, error) {
	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()
	if draft == nil {
		return nil, allocation.ErrNoChanges
	}

	record, err := s.coordinator.Submit(ctx, draft)
	if record != nil && record.Status == allocation.StatusConfirmed {
		s.mu.Lock()
		s.draft = nil
		s.mu.Unlock()
	}
	return record, err
}

// InFlight reports the currently pending submission, if any.
func (s *Service) InFlight() *allocation.SubmissionRecord {
	return s.coordinator.InFlight()
}

// History returns recent submission records, oldest first.
func (s *Service) History() []*allocation.SubmissionRecord {
	return s.coordinator.Records()
}

func (s *Service) displayName(id string) string {
	if entry, ok := s.catalog.Get(id); ok {
		return entry.Name
	}
	return id
}

func (s *Service) publishRefreshed(set allocation.Set, source string) {
	err := s.bus.Publish(&events.AllocationsRefreshedEvent{
		BaseEvent:   events.NewBase(events.AllocationsRefreshed),
		Categories:  set.Categories(),
		Percentages: set.Percentages(),
		Source:      source,
	})
	if err != nil {
		s.logger.Warn("Dropped allocations refreshed event", zap.Error(err))
	}
}
