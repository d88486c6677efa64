package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/loanflow/loan-engine/internal/domain"
	customError "github.com/loanflow/loan-engine/pkg/errors"
)

type productRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.LoanProduct, error) {
	query := `
		SELECT loan_id, name, interest_rate, max_loan_limit, duration_years, fee_amount, created_at
		FROM loan_products
		WHERE loan_id = $1
	`

	var product domain.LoanProduct
	err := r.db.GetContext(ctx, &product, query, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapProductNotFound(loanID)
		}
		return nil, err
	}

	return &product, nil
}
