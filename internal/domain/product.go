package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanProduct is read-only to this service: applications copy its rate
// at submission time and never write back.
type LoanProduct struct {
	LoanID        string          `json:"loan_id" db:"loan_id"`
	Name          string          `json:"name" db:"name"`
	InterestRate  decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	MaxLoanLimit  decimal.Decimal `json:"max_loan_limit" db:"max_loan_limit"`
	DurationYears int             `json:"duration_years" db:"duration_years"`
	FeeAmount     decimal.Decimal `json:"fee_amount" db:"fee_amount"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
