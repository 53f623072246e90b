package finance_test

import (
	"testing"
	"time"

	"github.com/wambuik/chamaflow/internal/finance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMonthlyInstallment(t *testing.T) {
	t.Run("Standard amortized loan", func(t *testing.T) {
		installment, err := finance.ComputeMonthlyInstallment(50000, 10, 12)

		require.NoError(t, err)
		assert.InDelta(t, 4395.79, installment, 0.01)

		totals := finance.ComputeTotals(installment, 12, 50000)
		assert.InDelta(t, installment*12, totals.TotalRepayment, 0.01)
		assert.InDelta(t, totals.TotalRepayment-50000, totals.TotalInterest, 0.01)
	})

	t.Run("Zero-rate loan splits principal evenly", func(t *testing.T) {
		installment, err := finance.ComputeMonthlyInstallment(12000, 0, 12)

		require.NoError(t, err)
		assert.Equal(t, 1000.00, installment)

		totals := finance.ComputeTotals(installment, 12, 12000)
		assert.Equal(t, 12000.00, totals.TotalRepayment)
		assert.Equal(t, 0.00, totals.TotalInterest)
	})

	t.Run("Zero-rate rounding reports negative interest", func(t *testing.T) {
		installment, err := finance.ComputeMonthlyInstallment(100, 0, 3)

		require.NoError(t, err)
		assert.Equal(t, 33.33, installment)

		totals := finance.ComputeTotals(installment, 3, 100)
		assert.Equal(t, 99.99, totals.TotalRepayment)
		assert.Equal(t, -0.01, totals.TotalInterest)
	})

	t.Run("Rejects non-positive principal and term", func(t *testing.T) {
		_, err := finance.ComputeMonthlyInstallment(0, 10, 12)
		assert.ErrorIs(t, err, finance.ErrInvalidLoanTerms)

		_, err = finance.ComputeMonthlyInstallment(-5000, 10, 12)
		assert.ErrorIs(t, err, finance.ErrInvalidLoanTerms)

		_, err = finance.ComputeMonthlyInstallment(50000, 10, 0)
		assert.ErrorIs(t, err, finance.ErrInvalidLoanTerms)
	})

	t.Run("Rejects rate outside bounds", func(t *testing.T) {
		_, err := finance.ComputeMonthlyInstallment(50000, -1, 12)
		assert.ErrorIs(t, err, finance.ErrInvalidLoanTerms)

		_, err = finance.ComputeMonthlyInstallment(50000, 101, 12)
		assert.ErrorIs(t, err, finance.ErrInvalidLoanTerms)
	})

	t.Run("Rejects amount above the group cap", func(t *testing.T) {
		_, err := finance.ComputeMonthlyInstallment(1_000_001, 10, 12)
		assert.ErrorIs(t, err, finance.ErrAmountOutOfRange)
	})

	t.Run("Rejects term above the group cap", func(t *testing.T) {
		_, err := finance.ComputeMonthlyInstallment(50000, 10, 61)
		assert.ErrorIs(t, err, finance.ErrTermOutOfRange)
	})
}

func TestReschedule(t *testing.T) {
	startDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	current := finance.LoanPosition{
		RemainingBalance:      60000,
		RemainingTermMonths:   10,
		InstallmentAmount:     6500,
		CompletedInstallments: 4,
	}

	t.Run("Term-only mode splits balance flat, no re-amortization", func(t *testing.T) {
		newTerm := 6
		result, err := finance.Reschedule(current, finance.RescheduleRequest{
			NewTermMonths: &newTerm,
			NewStartDate:  startDate,
			Reason:        "member requested shorter term",
		})

		require.NoError(t, err)
		assert.Equal(t, 10000.00, result.InstallmentAmount)
		assert.Equal(t, 6, result.TermMonths)
		assert.Equal(t, 10, result.TotalInstallments)
		assert.Equal(t, 60000.00, result.RemainingBalance)
		assert.Equal(t, startDate, result.StartDate)
		assert.Equal(t, startDate, result.NextDueDate)
		assert.Equal(t, startDate.AddDate(0, 6, 0), result.EndDate)
	})

	t.Run("Amount-only mode keeps the remaining term", func(t *testing.T) {
		newAmount := 5000.0
		result, err := finance.Reschedule(current, finance.RescheduleRequest{
			NewInstallmentAmount: &newAmount,
			NewStartDate:         startDate,
			Reason:               "reduced installment after hardship review",
		})

		require.NoError(t, err)
		assert.Equal(t, 5000.00, result.InstallmentAmount)
		assert.Equal(t, 10, result.TermMonths)
		assert.Equal(t, 50000.00, result.RemainingBalance)
	})

	t.Run("Flags installment swings above the warning threshold", func(t *testing.T) {
		newTerm := 6
		result, err := finance.Reschedule(current, finance.RescheduleRequest{
			NewTermMonths: &newTerm,
			NewStartDate:  startDate,
			Reason:        "shorter term",
		})

		require.NoError(t, err)
		assert.True(t, result.LargeAdjustment)

		newAmount := 6400.0
		result, err = finance.Reschedule(current, finance.RescheduleRequest{
			NewInstallmentAmount: &newAmount,
			NewStartDate:         startDate,
			Reason:               "minor adjustment",
		})

		require.NoError(t, err)
		assert.False(t, result.LargeAdjustment)
	})

	t.Run("Invalid term leaves nothing to apply", func(t *testing.T) {
		zeroTerm := 0
		result, err := finance.Reschedule(current, finance.RescheduleRequest{
			NewTermMonths: &zeroTerm,
			NewStartDate:  startDate,
			Reason:        "bad request",
		})

		assert.ErrorIs(t, err, finance.ErrInvalidLoanTerms)
		assert.Equal(t, finance.RescheduleResult{}, result)
	})

	t.Run("Requires a reason", func(t *testing.T) {
		newTerm := 6
		_, err := finance.Reschedule(current, finance.RescheduleRequest{
			NewTermMonths: &newTerm,
			NewStartDate:  startDate,
			Reason:        "   ",
		})

		assert.ErrorIs(t, err, finance.ErrMissingRescheduleReason)
	})

	t.Run("Requires at least one adjustment", func(t *testing.T) {
		_, err := finance.Reschedule(current, finance.RescheduleRequest{
			NewStartDate: startDate,
			Reason:       "nothing to change",
		})

		assert.ErrorIs(t, err, finance.ErrNoRescheduleChange)
	})
}
