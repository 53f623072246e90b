// Package finance holds the two computational cores of the chama service: the
// amortized-loan engine and the ngumbato contribution/fine engine. Every
// function is a pure transformation over its inputs; "now" is always an
// explicit parameter so the sweep scheduler and the tests share one code path.
package finance

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Group policy caps, in KSh and months.
const (
	MaxLoanAmount       float64 = 1_000_000
	MaxTermMonths       int     = 60
	RescheduleWarnDelta float64 = 1000

	// MonthlyContributionRate is the fixed ngumbato rule: the monthly
	// contribution is always 10% of the principal.
	MonthlyContributionRate float64 = 0.10

	DefaultFineRatePercent float64 = 5
)

var (
	ErrInvalidLoanTerms        = errors.New("loan principal, term and rate must be within valid bounds")
	ErrAmountOutOfRange        = errors.New("loan amount exceeds the group maximum")
	ErrTermOutOfRange          = errors.New("loan term exceeds the group maximum")
	ErrInvalidNgumbatoTerms    = errors.New("ngumbato principal and duration must be positive")
	ErrMissingRescheduleReason = errors.New("a reschedule requires a non-empty reason")
	ErrNoRescheduleChange      = errors.New("a reschedule must change the term or the installment amount")
	ErrMissingFineReason       = errors.New("a manual fine requires a non-empty reason")
	ErrInvalidFineAmount       = errors.New("fine amount must be positive")
	ErrInvalidPaymentAmount    = errors.New("payment amount cannot be negative")
	ErrNoEligibleInstallment   = errors.New("every installment is already paid")
)

// round2 rounds a KSh amount to cents. All money leaving this package has
// passed through here.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func addMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// subMoney returns a-b rounded to cents, sign preserved. Zero-rate rounding
// can leave a quote's total interest a cent below zero; that is reported, not
// hidden.
func subMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// subMoneyFloorZero returns a-b rounded to cents, clamped at zero so balances
// never go negative on over-payment.
func subMoneyFloorZero(a, b float64) float64 {
	d := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2)
	if d.IsNegative() {
		return 0
	}
	return d.InexactFloat64()
}
