package model

import (
	"github.com/wambuik/chamaflow/internal/domain"
)

func LoanFromEntity(data *domain.LoanApplication) LoanApplication {
	return LoanApplication{
		ID:                    data.ID,
		ContractNumber:        data.ContractNumber,
		MemberID:              data.MemberID,
		Amount:                data.Amount,
		Purpose:               data.Purpose,
		Status:                data.Status,
		InterestRatePercent:   data.InterestRatePercent,
		TermMonths:            data.TermMonths,
		MonthlyInstallment:    data.MonthlyInstallment,
		TotalInterest:         data.TotalInterest,
		TotalRepayment:        data.TotalRepayment,
		RemainingBalance:      data.RemainingBalance,
		CompletedInstallments: data.CompletedInstallments,
		TotalInstallments:     data.TotalInstallments,
		StartDate:             data.StartDate,
		EndDate:               data.EndDate,
		NextDueDate:           data.NextDueDate,
		DisbursementDate:      data.DisbursementDate,
		DueDate:               data.DueDate,
		Notes:                 data.Notes,
	}
}

func LoanToEntity(data LoanApplication) *domain.LoanApplication {
	return &domain.LoanApplication{
		ID:                    data.ID,
		ContractNumber:        data.ContractNumber,
		MemberID:              data.MemberID,
		Amount:                data.Amount,
		Purpose:               data.Purpose,
		Status:                data.Status,
		InterestRatePercent:   data.InterestRatePercent,
		TermMonths:            data.TermMonths,
		MonthlyInstallment:    data.MonthlyInstallment,
		TotalInterest:         data.TotalInterest,
		TotalRepayment:        data.TotalRepayment,
		RemainingBalance:      data.RemainingBalance,
		CompletedInstallments: data.CompletedInstallments,
		TotalInstallments:     data.TotalInstallments,
		StartDate:             data.StartDate,
		EndDate:               data.EndDate,
		NextDueDate:           data.NextDueDate,
		DisbursementDate:      data.DisbursementDate,
		DueDate:               data.DueDate,
		Notes:                 data.Notes,
		CreatedAt:             data.CreatedAt,
		UpdatedAt:             data.UpdatedAt,
	}
}

func LoansToEntity(data []LoanApplication) []domain.LoanApplication {
	responses := make([]domain.LoanApplication, len(data))
	for i, l := range data {
		responses[i] = *LoanToEntity(l)
	}

	return responses
}
