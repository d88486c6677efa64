package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/loanflow/loan-engine/internal/domain"
)

// ApplicationRepository defines the interface for loan application data operations
type ApplicationRepository interface {
	// Create persists a freshly submitted application
	Create(ctx context.Context, app *domain.LoanApplication) error

	// GetByID retrieves an application by its id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)

	// Fetch retrieves applications matching the filter
	Fetch(ctx context.Context, filter domain.ApplicationFilter) ([]*domain.LoanApplication, error)

	// PatchStatus updates status, approval stamp and updated_at
	PatchStatus(ctx context.Context, id uuid.UUID, app *domain.LoanApplication) (*domain.LoanApplication, error)

	// PatchFeeStatus persists a fee payment confirmation
	PatchFeeStatus(ctx context.Context, id uuid.UUID, app *domain.LoanApplication) (*domain.LoanApplication, error)

	// Delete removes an application (borrower cancellation)
	Delete(ctx context.Context, id uuid.UUID) error

	// FetchPendingSince retrieves applications pending since before the cutoff
	FetchPendingSince(ctx context.Context, cutoffDays int) ([]*domain.LoanApplication, error)
}

// ProductRepository defines the interface for loan product lookups.
// Products are owned by another service; this side only reads.
type ProductRepository interface {
	// GetByLoanID retrieves a product by its public loan id
	GetByLoanID(ctx context.Context, loanID string) (*domain.LoanProduct, error)
}
