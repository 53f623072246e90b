package service

import (
	"context"
	"mime/multipart"
	"time"

	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/internal/dto"
	"github.com/wambuik/chamaflow/internal/finance"
)

type Media interface {
	Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error)
}

type PrivateService interface {
	Login(ctx context.Context, data dto.LoginRequest) (*dto.LoginResponse, error)
}

type MemberServices interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*domain.Member, error)
	GetProfile(ctx context.Context, memberID uint64) (*domain.Member, error)
	UpdateProfile(ctx context.Context, memberID uint64, req domain.Member) error
	VerifyMember(ctx context.Context, memberID uint64, req dto.VerificationRequest) error
	ListMembers(ctx context.Context, params domain.Params) (*domain.Paginated, error)
	RecordContribution(ctx context.Context, memberID uint64, req dto.ContributionRequest) (*domain.Contribution, error)
	GetContributions(ctx context.Context, memberID uint64) ([]domain.Contribution, error)
	GetStatement(ctx context.Context, memberID uint64) (*dto.MemberStatementResponse, error)
}

type LoanServices interface {
	Quote(ctx context.Context, req dto.LoanQuoteRequest) (*dto.LoanQuoteResponse, error)
	Apply(ctx context.Context, req dto.LoanApplyRequest) (*domain.LoanApplication, error)
	Approve(ctx context.Context, loanID uint64) error
	Reject(ctx context.Context, loanID uint64, reason string) error
	Disburse(ctx context.Context, loanID uint64, disbursedAt time.Time) error
	Complete(ctx context.Context, loanID uint64) error
	Reschedule(ctx context.Context, loanID uint64, req finance.RescheduleRequest) (*dto.RescheduleResponse, error)
	GetLoan(ctx context.Context, loanID uint64) (*domain.LoanApplication, error)
	ListLoans(ctx context.Context, params domain.Params) (*domain.Paginated, error)
	GetMemberLoans(ctx context.Context, memberID uint64) ([]domain.LoanApplication, error)
}

type NgumbatoServices interface {
	Create(ctx context.Context, req dto.CreateNgumbatoRequest) (*domain.NgumbatoRecord, error)
	Get(ctx context.Context, id uint64) (*domain.NgumbatoRecord, error)
	GetMemberRecords(ctx context.Context, memberID uint64) ([]domain.NgumbatoRecord, error)
	RecordPayment(ctx context.Context, id uint64, req dto.NgumbatoPaymentRequest) (*domain.NgumbatoRecord, string, error)
	AddFine(ctx context.Context, id uint64, req dto.NgumbatoFineRequest) (*domain.NgumbatoRecord, string, error)
	Summary(ctx context.Context, id uint64) (*dto.NgumbatoSummaryResponse, error)
	SweepLateness(ctx context.Context, now time.Time) (int, error)
}
