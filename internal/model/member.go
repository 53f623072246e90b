package model

import (
	"github.com/wambuik/chamaflow/internal/domain"
)

func MemberFromEntity(data *domain.Member) Member {
	return Member{
		ID:                 data.ID,
		NationalID:         data.NationalID,
		FullName:           data.FullName,
		PhoneNumber:        data.PhoneNumber,
		Password:           data.Password,
		Role:               data.Role,
		IDPhotoURL:         data.IDPhotoURL,
		SelfiePhotoURL:     data.SelfiePhotoURL,
		MonthlyIncome:      data.MonthlyIncome,
		VerificationStatus: data.VerificationStatus,
	}
}

func MemberToEntity(data Member) *domain.Member {
	return &domain.Member{
		ID:                 data.ID,
		NationalID:         data.NationalID,
		FullName:           data.FullName,
		PhoneNumber:        data.PhoneNumber,
		Password:           data.Password,
		Role:               data.Role,
		IDPhotoURL:         data.IDPhotoURL,
		SelfiePhotoURL:     data.SelfiePhotoURL,
		MonthlyIncome:      data.MonthlyIncome,
		VerificationStatus: data.VerificationStatus,
		CreatedAt:          data.CreatedAt,
		UpdatedAt:          data.UpdatedAt,
	}
}

func MembersToEntity(data []Member) []domain.Member {
	responses := make([]domain.Member, len(data))
	for i, m := range data {
		responses[i] = *MemberToEntity(m)
	}

	return responses
}

func ContributionFromEntity(data *domain.Contribution) Contribution {
	return Contribution{
		ID:        data.ID,
		MemberID:  data.MemberID,
		Amount:    data.Amount,
		Method:    data.Method,
		Reference: data.Reference,
		Notes:     data.Notes,
	}
}

func ContributionToEntity(data Contribution) *domain.Contribution {
	return &domain.Contribution{
		ID:         data.ID,
		MemberID:   data.MemberID,
		Amount:     data.Amount,
		Method:     data.Method,
		Reference:  data.Reference,
		Notes:      data.Notes,
		RecordedAt: data.RecordedAt,
	}
}

func ContributionsToEntity(data []Contribution) []domain.Contribution {
	responses := make([]domain.Contribution, len(data))
	for i, c := range data {
		responses[i] = *ContributionToEntity(c)
	}

	return responses
}
