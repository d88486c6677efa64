package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/loanflow/loan-engine/internal/domain"
	customError "github.com/loanflow/loan-engine/pkg/errors"
)

type applicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *domain.LoanApplication) error {
	query := `
		INSERT INTO loan_applications (id, loan_id, borrower_id, amount, interest_rate, tenure_years, status, fee_status, transaction_ref, created_at, approved_at, fee_paid_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.LoanID,
		app.BorrowerID,
		app.Amount,
		app.InterestRate,
		app.TenureYears,
		app.Status,
		app.FeeStatus,
		app.TransactionRef,
		app.CreatedAt,
		app.ApprovedAt,
		app.FeePaidAt,
		app.UpdatedAt,
	)

	return err
}

func (r *applicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	query := `
		SELECT id, loan_id, borrower_id, amount, interest_rate, tenure_years, status, fee_status, transaction_ref, created_at, approved_at, fee_paid_at, updated_at
		FROM loan_applications
		WHERE id = $1
	`

	var app domain.LoanApplication
	err := r.db.GetContext(ctx, &app, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapApplicationNotFound(id.String())
		}
		return nil, err
	}

	return &app, nil
}

func (r *applicationRepository) Fetch(ctx context.Context, filter domain.ApplicationFilter) ([]*domain.LoanApplication, error) {
	query := `
		SELECT id, loan_id, borrower_id, amount, interest_rate, tenure_years, status, fee_status, transaction_ref, created_at, approved_at, fee_paid_at, updated_at
		FROM loan_applications
		WHERE 1=1
	`

	args := make([]interface{}, 0, 4)
	argn := 0

	if filter.Status != "" {
		argn++
		query += fmt.Sprintf(" AND status = $%d", argn)
		args = append(args, filter.Status)
	}
	if filter.FeeStatus != "" {
		argn++
		query += fmt.Sprintf(" AND fee_status = $%d", argn)
		args = append(args, filter.FeeStatus)
	}
	if filter.BorrowerID != "" {
		argn++
		query += fmt.Sprintf(" AND borrower_id = $%d", argn)
		args = append(args, filter.BorrowerID)
	}
	if filter.LoanID != "" {
		argn++
		query += fmt.Sprintf(" AND loan_id = $%d", argn)
		args = append(args, filter.LoanID)
	}

	query += " ORDER BY created_at DESC"

	var apps []*domain.LoanApplication
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, err
	}

	return apps, nil
}

func (r *applicationRepository) PatchStatus(ctx context.Context, id uuid.UUID, app *domain.LoanApplication) (*domain.LoanApplication, error) {
	query := `
		UPDATE loan_applications
		SET status = $2, approved_at = $3, updated_at = $4
		WHERE id = $1 AND fee_status = 'unpaid'
		RETURNING id, loan_id, borrower_id, amount, interest_rate, tenure_years, status, fee_status, transaction_ref, created_at, approved_at, fee_paid_at, updated_at
	`

	var updated domain.LoanApplication
	err := r.db.GetContext(ctx, &updated, query, id, app.Status, app.ApprovedAt, time.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the row is gone or a concurrent fee payment locked
			// it; treat a stale optimistic read as a hard failure.
			return nil, customError.WrapApplicationLocked(id.String())
		}
		return nil, err
	}

	return &updated, nil
}

func (r *applicationRepository) PatchFeeStatus(ctx context.Context, id uuid.UUID, app *domain.LoanApplication) (*domain.LoanApplication, error) {
	query := `
		UPDATE loan_applications
		SET fee_status = $2, transaction_ref = $3, fee_paid_at = $4, updated_at = $5
		WHERE id = $1 AND status = 'approved'
		RETURNING id, loan_id, borrower_id, amount, interest_rate, tenure_years, status, fee_status, transaction_ref, created_at, approved_at, fee_paid_at, updated_at
	`

	var updated domain.LoanApplication
	err := r.db.GetContext(ctx, &updated, query, id, app.FeeStatus, app.TransactionRef, app.FeePaidAt, time.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapIllegalFeePayment(id.String(), "not approved")
		}
		return nil, err
	}

	return &updated, nil
}

func (r *applicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM loan_applications WHERE id = $1 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return customError.WrapCancellationRefused(id.String(), "non-pending")
	}

	return nil
}

func (r *applicationRepository) FetchPendingSince(ctx context.Context, cutoffDays int) ([]*domain.LoanApplication, error) {
	query := `
		SELECT id, loan_id, borrower_id, amount, interest_rate, tenure_years, status, fee_status, transaction_ref, created_at, approved_at, fee_paid_at, updated_at
		FROM loan_applications
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
	`

	cutoff := time.Now().AddDate(0, 0, -cutoffDays)

	var apps []*domain.LoanApplication
	if err := r.db.SelectContext(ctx, &apps, query, cutoff); err != nil {
		return nil, err
	}

	return apps, nil
}
