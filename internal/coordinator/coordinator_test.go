package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loanflow/loan-engine/internal/domain"
	"github.com/loanflow/loan-engine/internal/lifecycle"
	customError "github.com/loanflow/loan-engine/pkg/errors"
)

// fakeStore records which ids were patched and fails the configured set.
type fakeStore struct {
	mu      sync.Mutex
	patched []uuid.UUID
	failIDs map[uuid.UUID]error
	failAll error
}

func (s *fakeStore) PatchStatus(ctx context.Context, id uuid.UUID, app *domain.LoanApplication) (*domain.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patched = append(s.patched, id)
	if s.failAll != nil {
		return nil, s.failAll
	}
	if err, ok := s.failIDs[id]; ok {
		return nil, err
	}
	return app.Clone(), nil
}

func (s *fakeStore) patchedIDs() map[uuid.UUID]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]bool, len(s.patched))
	for _, id := range s.patched {
		out[id] = true
	}
	return out
}

func newApp(status domain.Status, feeStatus domain.FeeStatus) *domain.LoanApplication {
	app := &domain.LoanApplication{
		ID:           uuid.New(),
		LoanID:       "LOAN123",
		BorrowerID:   "BORROWER1",
		Amount:       decimal.NewFromInt(50000),
		InterestRate: decimal.NewFromInt(12),
		TenureYears:  2,
		Status:       status,
		FeeStatus:    feeStatus,
		CreatedAt:    time.Now().AddDate(0, 0, -1),
	}
	if status == domain.StatusApproved {
		approvedAt := time.Now().Add(-time.Hour)
		app.ApprovedAt = &approvedAt
	}
	return app
}

func newCoordinator(store RemoteStore, apps ...*domain.LoanApplication) (*Coordinator, *Cache) {
	cache := NewCache()
	cache.Load(apps)
	return NewCoordinator(cache, store, lifecycle.NewEngine(), zap.NewNop()), cache
}

func TestApplyBulkTransition_LockedItemsNeverReachTheStore(t *testing.T) {
	pending1 := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	pending2 := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	paid := newApp(domain.StatusApproved, domain.FeeStatusPaid)

	store := &fakeStore{}
	coord, cache := newCoordinator(store, pending1, pending2, paid)

	result := coord.ApplyBulkTransition(context.Background(),
		[]uuid.UUID{pending1.ID, pending2.ID, paid.ID},
		domain.StatusApproved, domain.RoleManager)

	assert.ElementsMatch(t, []uuid.UUID{pending1.ID, pending2.ID}, result.Succeeded)
	require.Contains(t, result.Failed, paid.ID)
	assert.True(t, errors.Is(result.Failed[paid.ID], customError.ErrApplicationLocked))

	// The locked item must not have generated a remote call.
	patched := store.patchedIDs()
	assert.False(t, patched[paid.ID])
	assert.True(t, patched[pending1.ID])
	assert.True(t, patched[pending2.ID])

	// Cache reflects the committed mutations, locked item untouched.
	assert.Equal(t, domain.StatusApproved, cache.Get(pending1.ID).Status)
	assert.Equal(t, domain.StatusApproved, cache.Get(pending2.ID).Status)
	assert.Equal(t, domain.FeeStatusPaid, cache.Get(paid.ID).FeeStatus)

	assert.Len(t, result.Events, 2)
}

func TestApplyBulkTransition_RemoteFailureRollsBackOnlyThatItem(t *testing.T) {
	ok := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	failing := newApp(domain.StatusPending, domain.FeeStatusUnpaid)

	store := &fakeStore{failIDs: map[uuid.UUID]error{failing.ID: errors.New("connection reset")}}
	coord, cache := newCoordinator(store, ok, failing)

	result := coord.ApplyBulkTransition(context.Background(),
		[]uuid.UUID{ok.ID, failing.ID}, domain.StatusApproved, domain.RoleManager)

	assert.Equal(t, []uuid.UUID{ok.ID}, result.Succeeded)
	require.Contains(t, result.Failed, failing.ID)
	assert.True(t, errors.Is(result.Failed[failing.ID], customError.ErrTransport))

	// The failed item is rolled back to its pre-mutation state, the
	// sibling keeps its optimistic mutation.
	assert.Equal(t, domain.StatusPending, cache.Get(failing.ID).Status)
	assert.Nil(t, cache.Get(failing.ID).ApprovedAt)
	assert.Equal(t, domain.StatusApproved, cache.Get(ok.ID).Status)
}

func TestApplyBulkTransition_TotalConnectivityFailure(t *testing.T) {
	apps := []*domain.LoanApplication{
		newApp(domain.StatusPending, domain.FeeStatusUnpaid),
		newApp(domain.StatusPending, domain.FeeStatusUnpaid),
		newApp(domain.StatusPending, domain.FeeStatusUnpaid),
	}

	store := &fakeStore{failAll: errors.New("network unreachable")}
	coord, cache := newCoordinator(store, apps...)

	ids := []uuid.UUID{apps[0].ID, apps[1].ID, apps[2].ID}
	result := coord.ApplyBulkTransition(context.Background(), ids, domain.StatusRejected, domain.RoleAdmin)

	assert.Empty(t, result.Succeeded)
	require.Len(t, result.Failed, 3)
	for _, id := range ids {
		assert.True(t, errors.Is(result.Failed[id], customError.ErrTransport))
		assert.Equal(t, domain.StatusPending, cache.Get(id).Status)
	}
}

func TestApplyBulkTransition_UnknownAndNoOpItems(t *testing.T) {
	approved := newApp(domain.StatusApproved, domain.FeeStatusUnpaid)
	missing := uuid.New()

	store := &fakeStore{}
	coord, _ := newCoordinator(store, approved)

	result := coord.ApplyBulkTransition(context.Background(),
		[]uuid.UUID{approved.ID, missing}, domain.StatusApproved, domain.RoleManager)

	// Already in the target state counts as an idempotent success and
	// skips the remote store.
	assert.Equal(t, []uuid.UUID{approved.ID}, result.Succeeded)
	assert.Empty(t, store.patchedIDs())

	require.Contains(t, result.Failed, missing)
	assert.True(t, errors.Is(result.Failed[missing], customError.ErrApplicationNotFound))
}

func TestApplyTransition_SingleItem(t *testing.T) {
	app := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	store := &fakeStore{}
	coord, cache := newCoordinator(store, app)

	updated, event, err := coord.ApplyTransition(context.Background(), app.ID, domain.StatusApproved, domain.RoleManager)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.StatusPending, event.OldStatus)
	assert.Equal(t, domain.StatusApproved, event.NewStatus)
	assert.Equal(t, domain.StatusApproved, updated.Status)
	assert.NotNil(t, updated.ApprovedAt)
	assert.Equal(t, domain.StatusApproved, cache.Get(app.ID).Status)
}

func TestApplyTransition_RemoteFailureRollsBack(t *testing.T) {
	app := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	store := &fakeStore{failAll: errors.New("boom")}
	coord, cache := newCoordinator(store, app)

	_, _, err := coord.ApplyTransition(context.Background(), app.ID, domain.StatusApproved, domain.RoleManager)
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrTransport))
	assert.Equal(t, domain.StatusPending, cache.Get(app.ID).Status)
}

func TestEligibleSelection(t *testing.T) {
	unpaid1 := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	unpaid2 := newApp(domain.StatusApproved, domain.FeeStatusUnpaid)
	paid := newApp(domain.StatusApproved, domain.FeeStatusPaid)

	coord, _ := newCoordinator(&fakeStore{}, unpaid1, unpaid2, paid)

	ids := []uuid.UUID{unpaid1.ID, unpaid2.ID, paid.ID, uuid.New()}
	eligible := coord.EligibleSelection(ids)
	assert.ElementsMatch(t, []uuid.UUID{unpaid1.ID, unpaid2.ID}, eligible)
}

func TestToggleSelectAll(t *testing.T) {
	unpaid1 := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	unpaid2 := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	paid := newApp(domain.StatusApproved, domain.FeeStatusPaid)

	coord, _ := newCoordinator(&fakeStore{}, unpaid1, unpaid2, paid)
	ids := []uuid.UUID{unpaid1.ID, unpaid2.ID, paid.ID}

	// Nothing selected: toggling selects exactly the eligible set.
	selection := coord.ToggleSelectAll(ids, nil)
	assert.ElementsMatch(t, []uuid.UUID{unpaid1.ID, unpaid2.ID}, selection)

	// Partial selection: toggling completes the eligible set.
	selection = coord.ToggleSelectAll(ids, []uuid.UUID{unpaid1.ID})
	assert.ElementsMatch(t, []uuid.UUID{unpaid1.ID, unpaid2.ID}, selection)

	// Everything eligible already selected: toggling clears.
	selection = coord.ToggleSelectAll(ids, selection)
	assert.Empty(t, selection)

	// Only locked items: nothing to select.
	selection = coord.ToggleSelectAll([]uuid.UUID{paid.ID}, nil)
	assert.Empty(t, selection)
}

func TestCache_SnapshotsAreIsolated(t *testing.T) {
	app := newApp(domain.StatusPending, domain.FeeStatusUnpaid)
	cache := NewCache()
	cache.Put(app)

	snapshot := cache.Get(app.ID)
	snapshot.Status = domain.StatusRejected

	// Mutating a snapshot must not leak into the cache.
	assert.Equal(t, domain.StatusPending, cache.Get(app.ID).Status)

	cache.Delete(app.ID)
	assert.Nil(t, cache.Get(app.ID))
	assert.Equal(t, 0, cache.Len())
}
