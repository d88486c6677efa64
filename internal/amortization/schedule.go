package amortization

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/loanflow/loan-engine/internal/domain"
	customError "github.com/loanflow/loan-engine/pkg/errors"
)

const monthsPerYear = 12

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(monthsPerYear)
)

// ComputeSchedule produces a month-by-month equal-installment schedule
// for the given principal, annual rate (in percent) and tenure in years.
//
// Standard reducing-balance amortization:
//
//	emi = P * i * (1+i)^n / ((1+i)^n - 1)
//
// with i the monthly rate and n the total number of months. A zero rate
// degenerates to an even principal split with no interest. The function
// is pure and deterministic; callers may recompute freely.
func ComputeSchedule(principal decimal.Decimal, annualRatePercent decimal.Decimal, tenureYears int) ([]domain.AmortizationRow, error) {
	if tenureYears <= 0 {
		return nil, customError.WrapInvalidInput(fmt.Sprintf("tenure must be a positive number of years, got %d", tenureYears))
	}
	if !principal.IsPositive() {
		return nil, customError.WrapInvalidInput(fmt.Sprintf("principal must be positive, got %s", principal))
	}
	if annualRatePercent.IsNegative() {
		return nil, customError.WrapInvalidInput(fmt.Sprintf("interest rate cannot be negative, got %s", annualRatePercent))
	}

	totalMonths := tenureYears * monthsPerYear

	if annualRatePercent.IsZero() {
		return zeroRateSchedule(principal, totalMonths), nil
	}

	monthlyRate := annualRatePercent.Div(twelve).Div(hundred)
	emi := computeEMI(principal, monthlyRate, totalMonths)

	rows := make([]domain.AmortizationRow, 0, totalMonths)
	balance := principal

	for month := 1; month <= totalMonths; month++ {
		interest := balance.Mul(monthlyRate).Round(2)
		principalPart := emi.Sub(interest)

		if month == totalMonths {
			// Force the last row to clear the loan exactly; rounding
			// drift accumulates in the principal split.
			principalPart = balance
			balance = decimal.Zero
		} else {
			balance = balance.Sub(principalPart)
			if balance.IsNegative() {
				principalPart = principalPart.Add(balance)
				balance = decimal.Zero
			}
		}

		rows = append(rows, domain.AmortizationRow{
			Month:            month,
			EMI:              emi,
			PrincipalPayment: principalPart.Round(2),
			InterestPayment:  interest,
			Balance:          balance.Round(2),
		})
	}

	return rows, nil
}

// computeEMI evaluates the annuity formula at 2dp currency precision.
func computeEMI(principal, monthlyRate decimal.Decimal, totalMonths int) decimal.Decimal {
	growth := decimal.NewFromInt(1).Add(monthlyRate).Pow(decimal.NewFromInt(int64(totalMonths)))
	numerator := principal.Mul(monthlyRate).Mul(growth)
	denominator := growth.Sub(decimal.NewFromInt(1))
	return numerator.Div(denominator).Round(2)
}

func zeroRateSchedule(principal decimal.Decimal, totalMonths int) []domain.AmortizationRow {
	emi := principal.Div(decimal.NewFromInt(int64(totalMonths))).Round(2)

	rows := make([]domain.AmortizationRow, 0, totalMonths)
	balance := principal
	for month := 1; month <= totalMonths; month++ {
		principalPart := emi
		if month == totalMonths {
			principalPart = balance
			balance = decimal.Zero
		} else {
			balance = balance.Sub(principalPart)
		}
		rows = append(rows, domain.AmortizationRow{
			Month:            month,
			EMI:              emi,
			PrincipalPayment: principalPart.Round(2),
			InterestPayment:  decimal.Zero,
			Balance:          balance.Round(2),
		})
	}
	return rows
}
