package coordinator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loanflow/loan-engine/internal/domain"
	"github.com/loanflow/loan-engine/internal/lifecycle"
	customError "github.com/loanflow/loan-engine/pkg/errors"
)

// RemoteStore is the persistence collaborator boundary the coordinator
// pushes status changes through.
type RemoteStore interface {
	PatchStatus(ctx context.Context, id uuid.UUID, app *domain.LoanApplication) (*domain.LoanApplication, error)
}

// BulkResult summarizes a batch transition: ids that committed and a
// per-id error for everything that did not.
type BulkResult struct {
	Succeeded []uuid.UUID                  `json:"succeeded"`
	Failed    map[uuid.UUID]error          `json:"-"`
	Events    []*domain.StatusChangedEvent `json:"-"`
}

// Coordinator applies single or batched status transitions with
// optimistic local mutation and per-item rollback on remote failure.
type Coordinator struct {
	cache  *Cache
	store  RemoteStore
	engine *lifecycle.Engine
	logger *zap.Logger
}

func NewCoordinator(cache *Cache, store RemoteStore, engine *lifecycle.Engine, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cache:  cache,
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// ApplyBulkTransition validates and applies newStatus to every listed
// application. Locked (fee-paid) items fail immediately and never reach
// the remote store. Eligible items are mutated locally first, then the
// remote updates fan out one goroutine per item; a remote failure rolls
// that single item back to its pre-mutation snapshot.
func (c *Coordinator) ApplyBulkTransition(ctx context.Context, ids []uuid.UUID, newStatus domain.Status, role domain.Role) *BulkResult {
	result := &BulkResult{Failed: make(map[uuid.UUID]error)}

	type dispatch struct {
		id       uuid.UUID
		snapshot *domain.LoanApplication
		mutated  *domain.LoanApplication
		event    *domain.StatusChangedEvent
	}

	dispatches := make([]dispatch, 0, len(ids))

	for _, id := range ids {
		snapshot := c.cache.Get(id)
		if snapshot == nil {
			result.Failed[id] = customError.WrapApplicationNotFound(id.String())
			continue
		}

		mutated := snapshot.Clone()
		event, err := c.engine.TransitionStatus(mutated, newStatus, role)
		if err != nil {
			// Locked and otherwise ineligible items are reported without
			// contacting the store.
			result.Failed[id] = err
			continue
		}
		if event == nil {
			// Idempotent no-op: already in the target state.
			result.Succeeded = append(result.Succeeded, id)
			continue
		}

		// Optimistic: the board reflects the change before the store
		// confirms it.
		c.cache.Put(mutated)
		dispatches = append(dispatches, dispatch{id: id, snapshot: snapshot, mutated: mutated, event: event})
	}

	type settlement struct {
		idx int
		err error
	}

	settlements := make(chan settlement, len(dispatches))
	var wg sync.WaitGroup

	for i := range dispatches {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			d := dispatches[idx]
			_, err := c.store.PatchStatus(ctx, d.id, d.mutated)
			settlements <- settlement{idx: idx, err: err}
		}(i)
	}

	wg.Wait()
	close(settlements)

	for s := range settlements {
		d := dispatches[s.idx]
		if s.err != nil {
			c.cache.Put(d.snapshot)
			result.Failed[d.id] = customError.WrapTransportError(s.err)
			c.logger.Warn("bulk transition item rolled back",
				zap.String("application_id", d.id.String()),
				zap.String("new_status", string(newStatus)),
				zap.Error(s.err))
			continue
		}
		result.Succeeded = append(result.Succeeded, d.id)
		result.Events = append(result.Events, d.event)
	}

	c.logger.Info("bulk transition settled",
		zap.String("new_status", string(newStatus)),
		zap.Int("requested", len(ids)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	return result
}

// ApplyTransition is the single-item path used by the table view. It
// shares the optimistic apply/rollback behavior of the bulk path.
func (c *Coordinator) ApplyTransition(ctx context.Context, id uuid.UUID, newStatus domain.Status, role domain.Role) (*domain.LoanApplication, *domain.StatusChangedEvent, error) {
	snapshot := c.cache.Get(id)
	if snapshot == nil {
		return nil, nil, customError.WrapApplicationNotFound(id.String())
	}

	mutated := snapshot.Clone()
	event, err := c.engine.TransitionStatus(mutated, newStatus, role)
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return snapshot, nil, nil
	}

	c.cache.Put(mutated)

	stored, err := c.store.PatchStatus(ctx, id, mutated)
	if err != nil {
		c.cache.Put(snapshot)
		return nil, nil, customError.WrapTransportError(err)
	}
	if stored != nil {
		c.cache.Put(stored)
		mutated = stored
	}

	return mutated, event, nil
}

// EligibleSelection filters ids down to the applications a select-all
// gesture may pick: only unpaid ones qualify.
func (c *Coordinator) EligibleSelection(ids []uuid.UUID) []uuid.UUID {
	eligible := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		app := c.cache.Get(id)
		if app == nil {
			continue
		}
		if lifecycle.Eligible(app) {
			eligible = append(eligible, id)
		}
	}
	return eligible
}

// ToggleSelectAll implements the board's select-all checkbox: if the
// current selection already covers every eligible item the selection is
// cleared, otherwise it becomes exactly the eligible set.
func (c *Coordinator) ToggleSelectAll(ids []uuid.UUID, selected []uuid.UUID) []uuid.UUID {
	eligible := c.EligibleSelection(ids)
	if len(eligible) == 0 {
		return nil
	}

	selectedSet := make(map[uuid.UUID]struct{}, len(selected))
	for _, id := range selected {
		selectedSet[id] = struct{}{}
	}

	allSelected := true
	for _, id := range eligible {
		if _, ok := selectedSet[id]; !ok {
			allSelected = false
			break
		}
	}

	if allSelected {
		return nil
	}
	return eligible
}
