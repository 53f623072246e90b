package finance

import (
	"math"
	"strings"
	"time"
)

// ComputeMonthlyInstallment returns the fixed monthly installment that retires
// principal plus compound interest over termMonths, using the standard
// amortized-loan formula with a monthly rate of annualRatePercent/100/12.
// Zero-rate loans degenerate to an even split of the principal.
func ComputeMonthlyInstallment(principal, annualRatePercent float64, termMonths int) (float64, error) {
	if principal <= 0 || termMonths <= 0 {
		return 0, ErrInvalidLoanTerms
	}
	if annualRatePercent < 0 || annualRatePercent > 100 {
		return 0, ErrInvalidLoanTerms
	}
	if principal > MaxLoanAmount {
		return 0, ErrAmountOutOfRange
	}
	if termMonths > MaxTermMonths {
		return 0, ErrTermOutOfRange
	}

	r := annualRatePercent / 100 / 12
	if r == 0 {
		return round2(principal / float64(termMonths)), nil
	}

	factor := math.Pow(1+r, float64(termMonths))
	installment := principal * r * factor / (factor - 1)
	return round2(installment), nil
}

// Totals are the derived figures shown on every loan quote.
type Totals struct {
	TotalInterest  float64
	TotalRepayment float64
}

// ComputeTotals derives total repayment and interest from an already computed
// installment. TotalInterest is totalRepayment minus principal, unclamped; on
// a zero-rate loan the rounded installment can land a cent short and the
// interest is then an honest -0.01.
func ComputeTotals(installment float64, termMonths int, principal float64) Totals {
	totalRepayment := round2(installment * float64(termMonths))
	return Totals{
		TotalInterest:  subMoney(totalRepayment, principal),
		TotalRepayment: totalRepayment,
	}
}

// LoanPosition is the mid-term snapshot a reschedule starts from.
type LoanPosition struct {
	RemainingBalance      float64
	RemainingTermMonths   int
	InstallmentAmount     float64
	CompletedInstallments int
}

// RescheduleRequest adjusts the term, the installment amount, or both. Reason
// is a mandatory audit note even though the arithmetic does not depend on it.
type RescheduleRequest struct {
	NewTermMonths        *int
	NewInstallmentAmount *float64
	NewStartDate         time.Time
	Reason               string
}

// RescheduleResult replaces the loan's repayment fields as one atomic update;
// callers must persist all of it or none of it.
type RescheduleResult struct {
	InstallmentAmount float64
	TermMonths        int
	TotalInstallments int
	StartDate         time.Time
	EndDate           time.Time
	NextDueDate       time.Time
	RemainingBalance  float64

	// LargeAdjustment flags an installment change above RescheduleWarnDelta.
	// It is surfaced to the operator as a warning, never a rejection.
	LargeAdjustment bool
}

// Reschedule recomputes a loan's repayment plan from its remaining position.
//
// Term-only mode splits the remaining balance evenly across the new term with
// NO re-amortization of interest. That flat division is the documented group
// policy; whether real rescheduling should re-apply interest on the remaining
// balance is an open product question, so the rule lives here under one name
// where it can be swapped.
func Reschedule(current LoanPosition, req RescheduleRequest) (RescheduleResult, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return RescheduleResult{}, ErrMissingRescheduleReason
	}
	if req.NewTermMonths == nil && req.NewInstallmentAmount == nil {
		return RescheduleResult{}, ErrNoRescheduleChange
	}

	termMonths := current.RemainingTermMonths
	if req.NewTermMonths != nil {
		if *req.NewTermMonths <= 0 {
			return RescheduleResult{}, ErrInvalidLoanTerms
		}
		termMonths = *req.NewTermMonths
	}

	var installment float64
	switch {
	case req.NewInstallmentAmount != nil:
		if *req.NewInstallmentAmount <= 0 {
			return RescheduleResult{}, ErrInvalidLoanTerms
		}
		installment = round2(*req.NewInstallmentAmount)
	default:
		installment = round2(current.RemainingBalance / float64(termMonths))
	}

	return RescheduleResult{
		InstallmentAmount: installment,
		TermMonths:        termMonths,
		TotalInstallments: termMonths + current.CompletedInstallments,
		StartDate:         req.NewStartDate,
		EndDate:           req.NewStartDate.AddDate(0, termMonths, 0),
		NextDueDate:       req.NewStartDate,
		RemainingBalance:  round2(installment * float64(termMonths)),
		LargeAdjustment:   math.Abs(installment-current.InstallmentAmount) > RescheduleWarnDelta,
	}, nil
}
