package finance

import (
	"strings"
	"time"

	"github.com/wambuik/chamaflow/internal/domain"
)

// MonthlyContribution applies the fixed 10% rule to a ngumbato principal.
func MonthlyContribution(principal float64) float64 {
	return round2(principal * MonthlyContributionRate)
}

// GenerateSchedule pre-generates the full installment schedule for a new
// ngumbato record: durationMonths installments of the monthly contribution,
// due on startDate + i months, all pending with no fines.
func GenerateSchedule(principal float64, startDate time.Time, durationMonths int, fineRatePercent float64) ([]domain.PaymentInstallment, error) {
	if principal <= 0 || durationMonths <= 0 {
		return nil, ErrInvalidNgumbatoTerms
	}
	if fineRatePercent < 0 {
		return nil, ErrInvalidNgumbatoTerms
	}

	contribution := MonthlyContribution(principal)
	installments := make([]domain.PaymentInstallment, 0, durationMonths)
	for i := 0; i < durationMonths; i++ {
		installments = append(installments, domain.PaymentInstallment{
			Position:   i + 1,
			DueDate:    startDate.AddDate(0, i, 0),
			Amount:     contribution,
			Status:     domain.InstallmentPending,
			FineAmount: 0,
			FinePaid:   false,
			DaysLate:   0,
		})
	}
	return installments, nil
}

func daysLate(now, dueDate time.Time) int {
	d := int(now.Sub(dueDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// LatenessResult is the outcome of one sweep pass over a record.
type LatenessResult struct {
	Installments  []domain.PaymentInstallment
	TotalFines    float64
	HasNewOverdue bool
}

// EvaluateLateness re-derives lateness for every unpaid installment of a
// record as of now. Fines are charged once, on the transition into overdue:
// monthsLate = ceil(daysLate/30), fine = contribution × rate/100 × monthsLate,
// and a stored fine only ever increases. Installments already overdue keep
// their fine, and paid installments are never touched, so running the sweep
// twice with the same clock adds nothing; TotalFines is the record's running
// fine total plus only the newly charged deltas.
func EvaluateLateness(record domain.NgumbatoRecord, now time.Time) LatenessResult {
	result := LatenessResult{
		Installments: make([]domain.PaymentInstallment, len(record.Installments)),
		TotalFines:   record.Fines,
	}
	copy(result.Installments, record.Installments)

	for i := range result.Installments {
		inst := &result.Installments[i]
		if inst.Status == domain.InstallmentPaid {
			continue
		}

		late := daysLate(now, inst.DueDate)
		inst.DaysLate = late
		if late == 0 || inst.Status == domain.InstallmentOverdue {
			continue
		}

		monthsLate := (late + 29) / 30
		fine := round2(record.MonthlyContribution * (record.FineRatePercent / 100) * float64(monthsLate))
		if fine > inst.FineAmount {
			result.TotalFines = addMoney(result.TotalFines, fine-inst.FineAmount)
			inst.FineAmount = fine
		}
		inst.Status = domain.InstallmentOverdue
		result.HasNewOverdue = true
	}

	return result
}

// ApplyLateness folds a sweep result back into the record, flipping an active
// record to defaulted when an installment newly went overdue. There is no
// defaulted→active edge; only full repayment moves a defaulted record on.
func ApplyLateness(record domain.NgumbatoRecord, result LatenessResult) domain.NgumbatoRecord {
	record.Installments = result.Installments
	record.Fines = result.TotalFines
	if result.HasNewOverdue && record.Status == domain.NgumbatoActive {
		record.Status = domain.NgumbatoDefaulted
	}
	return record
}

// eligibleInstallment picks the payment target: the first overdue
// installment, otherwise the first pending one, oldest due date first.
func eligibleInstallment(installments []domain.PaymentInstallment) int {
	for i := range installments {
		if installments[i].Status == domain.InstallmentOverdue {
			return i
		}
	}
	for i := range installments {
		if installments[i].Status == domain.InstallmentPending {
			return i
		}
	}
	return -1
}

// RecordPayment settles the oldest eligible installment and updates the record
// aggregates. The fine paid overwrites the installment's accrued fine; the
// remaining balance is clamped at zero rather than rejecting over-payment; a
// balance that reaches exactly zero completes the record, whatever its prior
// status. When every installment is already paid the aggregates still move and
// ErrNoEligibleInstallment comes back as a warning for the caller.
func RecordPayment(record domain.NgumbatoRecord, amountPaid, fineAmountPaid float64, paymentDate time.Time) (domain.NgumbatoRecord, error) {
	if amountPaid < 0 {
		return record, ErrInvalidPaymentAmount
	}

	installments := make([]domain.PaymentInstallment, len(record.Installments))
	copy(installments, record.Installments)
	record.Installments = installments

	var warn error
	if idx := eligibleInstallment(installments); idx >= 0 {
		paid := paymentDate
		inst := &installments[idx]
		inst.PaidDate = &paid
		inst.Status = domain.InstallmentPaid
		inst.FineAmount = round2(fineAmountPaid)
		inst.FinePaid = fineAmountPaid > 0
		inst.DaysLate = daysLate(paymentDate, inst.DueDate)
	} else {
		warn = ErrNoEligibleInstallment
	}

	record.TotalPaid = addMoney(record.TotalPaid, amountPaid)
	record.RemainingBalance = subMoneyFloorZero(record.RemainingBalance, amountPaid)
	record.Fines = addMoney(record.Fines, fineAmountPaid)
	if record.RemainingBalance == 0 {
		record.Status = domain.NgumbatoCompleted
	}

	return record, warn
}

// AddManualFine charges an operator-entered fine against the record and the
// oldest eligible installment without changing the installment's status.
func AddManualFine(record domain.NgumbatoRecord, amount float64, reason string, applyDate time.Time) (domain.NgumbatoRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return record, ErrMissingFineReason
	}
	if amount <= 0 {
		return record, ErrInvalidFineAmount
	}

	installments := make([]domain.PaymentInstallment, len(record.Installments))
	copy(installments, record.Installments)
	record.Installments = installments
	record.Fines = addMoney(record.Fines, amount)

	idx := eligibleInstallment(installments)
	if idx < 0 {
		return record, ErrNoEligibleInstallment
	}
	installments[idx].FineAmount = addMoney(installments[idx].FineAmount, amount)

	return record, nil
}

// OverduePaymentsCount counts installments currently flagged overdue.
func OverduePaymentsCount(record domain.NgumbatoRecord) int {
	count := 0
	for _, inst := range record.Installments {
		if inst.Status == domain.InstallmentOverdue {
			count++
		}
	}
	return count
}

// ProgressPercentage reports repayment progress, clamped to [0, 100] so
// over-payments never show more than complete.
func ProgressPercentage(record domain.NgumbatoRecord) float64 {
	if record.PrincipleAmount <= 0 {
		return 0
	}
	pct := record.TotalPaid / record.PrincipleAmount * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
