package lifecycle

import (
	"time"

	"github.com/loanflow/loan-engine/internal/domain"
	customError "github.com/loanflow/loan-engine/pkg/errors"
)

// Engine enforces legal status and fee-status transitions for loan
// applications. It mutates the record it is given and reports the
// change; persisting and broadcasting are the caller's concern.
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineWithClock is used by tests that need deterministic timestamps.
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// TransitionStatus moves an application to newStatus on behalf of role.
//
// A paid fee freezes the status permanently. Transitions to the current
// status are treated as idempotent successes and return a nil event so
// repeated submissions from the review board stay harmless.
func (e *Engine) TransitionStatus(app *domain.LoanApplication, newStatus domain.Status, role domain.Role) (*domain.StatusChangedEvent, error) {
	if !role.CanReview() {
		return nil, customError.WrapForbiddenRole(string(role))
	}
	if !newStatus.Valid() {
		return nil, customError.WrapInvalidTransition(string(app.Status), string(newStatus))
	}
	if app.Locked() {
		return nil, customError.WrapApplicationLocked(app.ID.String())
	}
	if app.Status == newStatus {
		return nil, nil
	}

	now := e.now()
	oldStatus := app.Status

	switch newStatus {
	case domain.StatusApproved:
		// Stamped only when no approval is in force; withdrawing the
		// approval clears the stamp, so re-approval stamps fresh.
		if app.ApprovedAt == nil {
			app.ApprovedAt = &now
		}
	default:
		// Moving away from approved withdraws the approval.
		if oldStatus == domain.StatusApproved {
			app.ApprovedAt = nil
		}
	}

	app.Status = newStatus
	app.UpdatedAt = now

	return &domain.StatusChangedEvent{
		ApplicationID: app.ID,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		Timestamp:     now,
	}, nil
}

// MarkFeePaid records the processing fee payment confirmed by the
// payment collaborator. Only approved applications can pay; once paid
// the application is locked for further status changes.
func (e *Engine) MarkFeePaid(app *domain.LoanApplication, transactionRef string) error {
	if app.FeeStatus == domain.FeeStatusPaid {
		if app.TransactionRef == transactionRef {
			return nil
		}
		return customError.WrapApplicationLocked(app.ID.String())
	}
	if app.Status != domain.StatusApproved {
		return customError.WrapIllegalFeePayment(app.ID.String(), string(app.Status))
	}

	now := e.now()
	app.FeeStatus = domain.FeeStatusPaid
	app.TransactionRef = transactionRef
	app.FeePaidAt = &now
	app.UpdatedAt = now
	return nil
}

// Eligible reports whether the application can still change status.
func Eligible(app *domain.LoanApplication) bool {
	return !app.Locked()
}

// PresentationState maps the (status, feeStatus) pair onto the 5-step
// application timeline. The mapping is exhaustive over the closed enum
// pairs; anything else is an error.
func PresentationState(status domain.Status, feeStatus domain.FeeStatus) (domain.PresentationState, error) {
	if !status.Valid() || !feeStatus.Valid() {
		return domain.PresentationState{}, customError.WrapUnknownState(string(status), string(feeStatus))
	}

	var state domain.PresentationState
	switch status {
	case domain.StatusPending:
		state.Step = domain.StepUnderReview
	case domain.StatusApproved:
		if feeStatus == domain.FeeStatusPaid {
			state.Step = domain.StepDisbursed
		} else {
			state.Step = domain.StepDecision
		}
	case domain.StatusRejected:
		state.Step = domain.StepDecision
		state.Rejected = true
	}

	state.Label = state.Step.Label()
	return state, nil
}
