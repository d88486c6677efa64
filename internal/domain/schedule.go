package domain

import (
	"github.com/shopspring/decimal"
)

// AmortizationRow is one month of a reducing-balance repayment schedule.
// Rows are derived from an application's approved terms on demand and
// never persisted.
type AmortizationRow struct {
	Month            int             `json:"month"`
	EMI              decimal.Decimal `json:"emi"`
	PrincipalPayment decimal.Decimal `json:"principal_payment"`
	InterestPayment  decimal.Decimal `json:"interest_payment"`
	Balance          decimal.Decimal `json:"balance"`
}

type ScheduleResponse struct {
	ApplicationID string            `json:"application_id"`
	EMI           decimal.Decimal   `json:"emi"`
	TotalMonths   int               `json:"total_months"`
	Schedule      []AmortizationRow `json:"schedule"`
}
