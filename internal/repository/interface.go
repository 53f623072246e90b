package repository

import (
	"context"

	"github.com/wambuik/chamaflow/internal/domain"
)

type MemberRepository interface {
	CreateMember(ctx context.Context, member domain.Member) (*domain.Member, error)
	FindByNationalID(ctx context.Context, nationalID string) (*domain.Member, error)
	FindByID(ctx context.Context, id uint64) (*domain.Member, error)
	UpdateMember(ctx context.Context, member *domain.Member) error
	FindPaginated(ctx context.Context, params domain.Params) ([]domain.Member, int64, error)
	CreateContribution(ctx context.Context, contribution *domain.Contribution) error
	FindContributionsByMemberID(ctx context.Context, memberID uint64) ([]domain.Contribution, error)
	SumContributionsByMemberID(ctx context.Context, memberID uint64) (float64, error)
}

type LoanRepository interface {
	CreateLoan(ctx context.Context, loan *domain.LoanApplication) error
	FindByID(ctx context.Context, id uint64) (*domain.LoanApplication, error)
	FindByMemberID(ctx context.Context, memberID uint64) ([]domain.LoanApplication, error)
	FindPaginated(ctx context.Context, params domain.Params) ([]domain.LoanApplication, int64, error)
	UpdateLoan(ctx context.Context, loan *domain.LoanApplication) error
	SumOutstandingByMemberID(ctx context.Context, memberID uint64) (float64, error)
	CountActiveByMemberID(ctx context.Context, memberID uint64) (int64, error)
}

type NgumbatoRepository interface {
	CreateRecord(ctx context.Context, record *domain.NgumbatoRecord) error
	FindByID(ctx context.Context, id uint64) (*domain.NgumbatoRecord, error)
	FindByMemberID(ctx context.Context, memberID uint64) ([]domain.NgumbatoRecord, error)
	FindActive(ctx context.Context) ([]domain.NgumbatoRecord, error)
	SaveRecord(ctx context.Context, record *domain.NgumbatoRecord) error
}
