package finance_test

import (
	"testing"
	"time"

	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/internal/finance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(t *testing.T, principal float64, startDate time.Time, durationMonths int) domain.NgumbatoRecord {
	t.Helper()

	installments, err := finance.GenerateSchedule(principal, startDate, durationMonths, finance.DefaultFineRatePercent)
	require.NoError(t, err)

	return domain.NgumbatoRecord{
		PrincipleAmount:     principal,
		MonthlyContribution: finance.MonthlyContribution(principal),
		StartDate:           startDate,
		DueDate:             startDate.AddDate(0, durationMonths, 0),
		FineRatePercent:     finance.DefaultFineRatePercent,
		Status:              domain.NgumbatoActive,
		RemainingBalance:    principal,
		Installments:        installments,
	}
}

func TestGenerateSchedule(t *testing.T) {
	startDate := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("Six months at ten percent of principal", func(t *testing.T) {
		installments, err := finance.GenerateSchedule(50000, startDate, 6, 5)

		require.NoError(t, err)
		require.Len(t, installments, 6)
		for i, inst := range installments {
			assert.Equal(t, 5000.00, inst.Amount)
			assert.Equal(t, startDate.AddDate(0, i, 0), inst.DueDate)
			assert.Equal(t, domain.InstallmentPending, inst.Status)
			assert.Equal(t, 0.00, inst.FineAmount)
			assert.False(t, inst.FinePaid)
			assert.Equal(t, 0, inst.DaysLate)
		}
	})

	t.Run("Rejects non-positive terms", func(t *testing.T) {
		_, err := finance.GenerateSchedule(0, startDate, 6, 5)
		assert.ErrorIs(t, err, finance.ErrInvalidNgumbatoTerms)

		_, err = finance.GenerateSchedule(50000, startDate, 0, 5)
		assert.ErrorIs(t, err, finance.ErrInvalidNgumbatoTerms)
	})
}

func TestEvaluateLateness(t *testing.T) {
	t.Run("Fine scales with months late", func(t *testing.T) {
		startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		record := newTestRecord(t, 50000, startDate, 6)

		// First installment is 95 days late: ceil(95/30) = 4 months.
		now := startDate.Add(95 * 24 * time.Hour)
		result := finance.EvaluateLateness(record, now)

		assert.True(t, result.HasNewOverdue)
		first := result.Installments[0]
		assert.Equal(t, domain.InstallmentOverdue, first.Status)
		assert.Equal(t, 95, first.DaysLate)
		assert.Equal(t, 1000.00, first.FineAmount)
	})

	t.Run("Repeated evaluation does not double-count", func(t *testing.T) {
		startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		record := newTestRecord(t, 50000, startDate, 6)

		now := startDate.Add(10 * 24 * time.Hour)
		first := finance.EvaluateLateness(record, now)
		require.True(t, first.HasNewOverdue)

		record = finance.ApplyLateness(record, first)
		assert.Equal(t, domain.NgumbatoDefaulted, record.Status)

		second := finance.EvaluateLateness(record, now)
		assert.False(t, second.HasNewOverdue)
		assert.Equal(t, first.TotalFines, second.TotalFines)
		assert.Equal(t, first.Installments[0].FineAmount, second.Installments[0].FineAmount)
	})

	t.Run("Paid installments are never re-evaluated", func(t *testing.T) {
		startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		record := newTestRecord(t, 50000, startDate, 6)

		paidDate := startDate
		record.Installments[0].Status = domain.InstallmentPaid
		record.Installments[0].PaidDate = &paidDate

		now := startDate.Add(40 * 24 * time.Hour)
		result := finance.EvaluateLateness(record, now)

		assert.Equal(t, domain.InstallmentPaid, result.Installments[0].Status)
		assert.Equal(t, 0.00, result.Installments[0].FineAmount)
		assert.Equal(t, 0, result.Installments[0].DaysLate)
		// Only the second installment (10 days late) is fined.
		assert.Equal(t, domain.InstallmentOverdue, result.Installments[1].Status)
	})

	t.Run("Stored fines never decrease", func(t *testing.T) {
		startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		record := newTestRecord(t, 50000, startDate, 6)

		// Manual fine above what one month of lateness would compute.
		record.Installments[0].FineAmount = 400

		now := startDate.Add(10 * 24 * time.Hour)
		result := finance.EvaluateLateness(record, now)

		assert.Equal(t, 400.00, result.Installments[0].FineAmount)
		assert.Equal(t, record.Fines, result.TotalFines)
	})
}

func TestRecordPayment(t *testing.T) {
	startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Pays the overdue installment before pending ones", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)
		paidDate := startDate
		record.Installments[0].Status = domain.InstallmentPaid
		record.Installments[0].PaidDate = &paidDate
		record.Installments[1].Status = domain.InstallmentOverdue

		paymentDate := startDate.AddDate(0, 2, 0)
		updated, err := finance.RecordPayment(record, 5000, 250, paymentDate)

		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentPaid, updated.Installments[1].Status)
		require.NotNil(t, updated.Installments[1].PaidDate)
		assert.Equal(t, paymentDate, *updated.Installments[1].PaidDate)
		assert.Equal(t, 250.00, updated.Installments[1].FineAmount)
		assert.True(t, updated.Installments[1].FinePaid)
		assert.Equal(t, domain.InstallmentPending, updated.Installments[2].Status)
		assert.Equal(t, domain.InstallmentPending, updated.Installments[3].Status)

		assert.Equal(t, 5000.00, updated.TotalPaid)
		assert.Equal(t, 45000.00, updated.RemainingBalance)
		assert.Equal(t, 250.00, updated.Fines)
	})

	t.Run("Exact final payment completes the record", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)
		record.RemainingBalance = 500
		record.TotalPaid = 49500

		updated, err := finance.RecordPayment(record, 500, 0, startDate.AddDate(0, 4, 0))

		require.NoError(t, err)
		assert.Equal(t, 0.00, updated.RemainingBalance)
		assert.Equal(t, domain.NgumbatoCompleted, updated.Status)
	})

	t.Run("Over-payment clamps the balance at zero", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)
		record.RemainingBalance = 500
		record.TotalPaid = 49500

		updated, err := finance.RecordPayment(record, 600, 0, startDate.AddDate(0, 4, 0))

		require.NoError(t, err)
		assert.Equal(t, 0.00, updated.RemainingBalance)
		assert.Equal(t, 50100.00, updated.TotalPaid)
		assert.Equal(t, domain.NgumbatoCompleted, updated.Status)
	})

	t.Run("Full repayment completes even a defaulted record", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)
		record.Status = domain.NgumbatoDefaulted
		record.RemainingBalance = 5000
		record.TotalPaid = 45000
		record.Installments[3].Status = domain.InstallmentOverdue

		updated, err := finance.RecordPayment(record, 5000, 0, startDate.AddDate(0, 5, 0))

		require.NoError(t, err)
		assert.Equal(t, domain.NgumbatoCompleted, updated.Status)
	})

	t.Run("Partial payment leaves a defaulted record defaulted", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)
		record.Status = domain.NgumbatoDefaulted
		record.Installments[0].Status = domain.InstallmentOverdue

		updated, err := finance.RecordPayment(record, 5000, 0, startDate.AddDate(0, 1, 0))

		require.NoError(t, err)
		assert.Equal(t, domain.NgumbatoDefaulted, updated.Status)
	})

	t.Run("All installments paid still moves the aggregates", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 2)
		paidDate := startDate
		for i := range record.Installments {
			record.Installments[i].Status = domain.InstallmentPaid
			record.Installments[i].PaidDate = &paidDate
		}
		record.TotalPaid = 10000
		record.RemainingBalance = 40000

		updated, err := finance.RecordPayment(record, 1000, 0, startDate.AddDate(0, 3, 0))

		assert.ErrorIs(t, err, finance.ErrNoEligibleInstallment)
		assert.Equal(t, 11000.00, updated.TotalPaid)
		assert.Equal(t, 39000.00, updated.RemainingBalance)
	})

	t.Run("Rejects negative amounts", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)

		_, err := finance.RecordPayment(record, -1, 0, startDate)
		assert.ErrorIs(t, err, finance.ErrInvalidPaymentAmount)
	})
}

func TestAddManualFine(t *testing.T) {
	startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Targets the oldest eligible installment", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)
		record.Installments[0].Status = domain.InstallmentOverdue
		record.Installments[0].FineAmount = 250

		updated, err := finance.AddManualFine(record, 100, "late meeting attendance", startDate.AddDate(0, 1, 0))

		require.NoError(t, err)
		assert.Equal(t, 350.00, updated.Installments[0].FineAmount)
		assert.Equal(t, domain.InstallmentOverdue, updated.Installments[0].Status)
		assert.Equal(t, 100.00, updated.Fines)
	})

	t.Run("Requires a reason and a positive amount", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)

		_, err := finance.AddManualFine(record, 100, "", startDate)
		assert.ErrorIs(t, err, finance.ErrMissingFineReason)

		_, err = finance.AddManualFine(record, 0, "some reason", startDate)
		assert.ErrorIs(t, err, finance.ErrInvalidFineAmount)
	})
}

func TestRecordSummaries(t *testing.T) {
	startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Overdue count", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)
		record.Installments[0].Status = domain.InstallmentOverdue
		record.Installments[1].Status = domain.InstallmentOverdue

		assert.Equal(t, 2, finance.OverduePaymentsCount(record))
	})

	t.Run("Progress percentage is clamped", func(t *testing.T) {
		record := newTestRecord(t, 50000, startDate, 4)
		record.TotalPaid = 25000
		assert.Equal(t, 50.00, finance.ProgressPercentage(record))

		record.TotalPaid = 60000
		assert.Equal(t, 100.00, finance.ProgressPercentage(record))
	})
}
