package model

import (
	"github.com/wambuik/chamaflow/internal/domain"
)

func NgumbatoFromEntity(data *domain.NgumbatoRecord) NgumbatoRecord {
	record := NgumbatoRecord{
		ID:                  data.ID,
		ReferenceNumber:     data.ReferenceNumber,
		MemberID:            data.MemberID,
		PrincipleAmount:     data.PrincipleAmount,
		MonthlyContribution: data.MonthlyContribution,
		StartDate:           data.StartDate,
		DueDate:             data.DueDate,
		FineRatePercent:     data.FineRatePercent,
		Status:              data.Status,
		TotalPaid:           data.TotalPaid,
		RemainingBalance:    data.RemainingBalance,
		Fines:               data.Fines,
	}
	record.Installments = make([]PaymentInstallment, len(data.Installments))
	for i, inst := range data.Installments {
		record.Installments[i] = InstallmentFromEntity(inst)
		record.Installments[i].NgumbatoID = data.ID
	}

	return record
}

func NgumbatoToEntity(data NgumbatoRecord) *domain.NgumbatoRecord {
	record := &domain.NgumbatoRecord{
		ID:                  data.ID,
		ReferenceNumber:     data.ReferenceNumber,
		MemberID:            data.MemberID,
		PrincipleAmount:     data.PrincipleAmount,
		MonthlyContribution: data.MonthlyContribution,
		StartDate:           data.StartDate,
		DueDate:             data.DueDate,
		FineRatePercent:     data.FineRatePercent,
		Status:              data.Status,
		TotalPaid:           data.TotalPaid,
		RemainingBalance:    data.RemainingBalance,
		Fines:               data.Fines,
		CreatedAt:           data.CreatedAt,
		UpdatedAt:           data.UpdatedAt,
	}
	record.Installments = make([]domain.PaymentInstallment, len(data.Installments))
	for i, inst := range data.Installments {
		record.Installments[i] = InstallmentToEntity(inst)
	}

	return record
}

func NgumbatosToEntity(data []NgumbatoRecord) []domain.NgumbatoRecord {
	responses := make([]domain.NgumbatoRecord, len(data))
	for i, r := range data {
		responses[i] = *NgumbatoToEntity(r)
	}

	return responses
}

func InstallmentFromEntity(data domain.PaymentInstallment) PaymentInstallment {
	return PaymentInstallment{
		ID:         data.ID,
		NgumbatoID: data.NgumbatoID,
		Position:   data.Position,
		DueDate:    data.DueDate,
		PaidDate:   data.PaidDate,
		Amount:     data.Amount,
		Status:     data.Status,
		FineAmount: data.FineAmount,
		FinePaid:   data.FinePaid,
		DaysLate:   data.DaysLate,
	}
}

func InstallmentToEntity(data PaymentInstallment) domain.PaymentInstallment {
	return domain.PaymentInstallment{
		ID:         data.ID,
		NgumbatoID: data.NgumbatoID,
		Position:   data.Position,
		DueDate:    data.DueDate,
		PaidDate:   data.PaidDate,
		Amount:     data.Amount,
		Status:     data.Status,
		FineAmount: data.FineAmount,
		FinePaid:   data.FinePaid,
		DaysLate:   data.DaysLate,
	}
}
