package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the review state of a loan application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// FeeStatus tracks whether the processing fee has been collected.
// Once paid, the application status is frozen.
type FeeStatus string

const (
	FeeStatusUnpaid FeeStatus = "unpaid"
	FeeStatusPaid   FeeStatus = "paid"
)

// Role identifies who is asking for a mutation.
type Role string

const (
	RoleBorrower Role = "borrower"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the status is one of the closed set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (f FeeStatus) Valid() bool {
	return f == FeeStatusUnpaid || f == FeeStatusPaid
}

// CanReview reports whether the role may change application status.
func (r Role) CanReview() bool {
	return r == RoleManager || r == RoleAdmin
}

// LoanApplication represents a borrower's request against a loan product.
// InterestRate is a snapshot of the product rate at application time;
// later product changes do not affect existing applications.
type LoanApplication struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	LoanID         string          `json:"loan_id" db:"loan_id"`
	BorrowerID     string          `json:"borrower_id" db:"borrower_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	InterestRate   decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	TenureYears    int             `json:"tenure_years" db:"tenure_years"`
	Status         Status          `json:"status" db:"status"`
	FeeStatus      FeeStatus       `json:"fee_status" db:"fee_status"`
	TransactionRef string          `json:"transaction_ref,omitempty" db:"transaction_ref"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	FeePaidAt      *time.Time      `json:"fee_paid_at,omitempty" db:"fee_paid_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Locked reports whether the fee lock applies (Invariant: a paid
// application can never change status again).
func (a *LoanApplication) Locked() bool {
	return a.FeeStatus == FeeStatusPaid
}

// Clone returns a deep copy, used for optimistic snapshots.
func (a *LoanApplication) Clone() *LoanApplication {
	c := *a
	if a.ApprovedAt != nil {
		t := *a.ApprovedAt
		c.ApprovedAt = &t
	}
	if a.FeePaidAt != nil {
		t := *a.FeePaidAt
		c.FeePaidAt = &t
	}
	return &c
}

// DTOs for requests and responses

type SubmitApplicationRequest struct {
	LoanID      string          `json:"loan_id" validate:"required"`
	BorrowerID  string          `json:"borrower_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"dgt0"`
	TenureYears int             `json:"tenure_years" validate:"omitempty,gt=0"`
}

type TransitionRequest struct {
	NewStatus Status `json:"new_status" validate:"required,oneof=pending approved rejected"`
}

type BulkTransitionRequest struct {
	ApplicationIDs []uuid.UUID `json:"application_ids" validate:"required,min=1"`
	NewStatus      Status      `json:"new_status" validate:"required,oneof=pending approved rejected"`
}

type ConfirmFeeRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

type ApplicationFilter struct {
	Status     Status    `json:"status,omitempty"`
	FeeStatus  FeeStatus `json:"fee_status,omitempty"`
	BorrowerID string    `json:"borrower_id,omitempty"`
	LoanID     string    `json:"loan_id,omitempty"`
}

type ApplicationResponse struct {
	Application  *LoanApplication   `json:"application"`
	Presentation *PresentationState `json:"presentation,omitempty"`
}
