package membersrv

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/internal/dto"
	"github.com/wambuik/chamaflow/internal/repository"
	"github.com/wambuik/chamaflow/internal/service"
	"github.com/wambuik/chamaflow/pkg/common"
	"github.com/wambuik/chamaflow/pkg/password"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type memberService struct {
	db                 *gorm.DB
	memberRepository   repository.MemberRepository
	loanRepository     repository.LoanRepository
	ngumbatoRepository repository.NgumbatoRepository
	media              service.Media

	meter             metric.Meter
	tracer            trace.Tracer
	log               *zap.Logger
	operationDuration metric.Float64Histogram
	operationCount    metric.Int64Counter
	errorCount        metric.Int64Counter
	membersRegistered metric.Int64Counter
	membersVerified   metric.Int64Counter
	contributionsSum  metric.Float64Counter
}

func NewMemberService(
	db *gorm.DB,
	memberRepository repository.MemberRepository,
	loanRepository repository.LoanRepository,
	ngumbatoRepository repository.NgumbatoRepository,
	media service.Media,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) service.MemberServices {
	operationDuration, _ := meter.Float64Histogram(
		"service.operation.duration",
		metric.WithDescription("Duration of service operations"),
		metric.WithUnit("ms"),
	)

	operationCount, _ := meter.Int64Counter(
		"service.operation.count",
		metric.WithDescription("Number of service operations"),
		metric.WithUnit("{operation}"),
	)

	errorCount, _ := meter.Int64Counter(
		"service.error.count",
		metric.WithDescription("Number of service errors"),
		metric.WithUnit("{error}"),
	)

	membersRegistered, _ := meter.Int64Counter(
		"service.members.registered",
		metric.WithDescription("Number of members registered"),
		metric.WithUnit("{member}"),
	)

	membersVerified, _ := meter.Int64Counter(
		"service.members.verified",
		metric.WithDescription("Number of members verified"),
		metric.WithUnit("{member}"),
	)

	contributionsSum, _ := meter.Float64Counter(
		"service.contributions.total",
		metric.WithDescription("Total contributions recorded"),
		metric.WithUnit("KSh"),
	)

	return &memberService{
		db:                 db,
		memberRepository:   memberRepository,
		loanRepository:     loanRepository,
		ngumbatoRepository: ngumbatoRepository,
		media:              media,

		meter:             meter,
		tracer:            tracer,
		log:               log,
		operationDuration: operationDuration,
		operationCount:    operationCount,
		errorCount:        errorCount,
		membersRegistered: membersRegistered,
		membersVerified:   membersVerified,
		contributionsSum:  contributionsSum,
	}
}

func (m *memberService) begin(ctx context.Context, operation string) {
	m.operationCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "member"),
	))
}

func (m *memberService) fail(ctx context.Context, span trace.Span, start time.Time, operation, errorType, msg string, err error, fields ...zap.Field) {
	span.SetStatus(codes.Error, msg)
	span.RecordError(err)

	m.log.Error(msg, append(fields,
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Error(err),
	)...)

	m.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "member"),
		attribute.String("error_type", errorType),
	))
	m.operationDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "member"),
		attribute.String("status", "error"),
	))
}

func (m *memberService) succeed(ctx context.Context, span trace.Span, start time.Time, operation, msg string, fields ...zap.Field) {
	duration := float64(time.Since(start).Milliseconds())
	m.operationDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "member"),
		attribute.String("status", "success"),
	))

	m.log.Info(msg, append(fields,
		zap.Float64("duration_ms", duration),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)...)

	span.SetStatus(codes.Ok, msg)
}

// Register implements service.MemberServices. The ID and selfie photos go to
// Cloudinary before the row is written; a failed upload aborts registration.
func (m *memberService) Register(ctx context.Context, req dto.RegisterRequest) (*domain.Member, error) {
	ctx, span := m.tracer.Start(ctx, "service.RegisterMember")
	defer span.End()
	start := time.Now()

	m.begin(ctx, "register_member")
	span.SetAttributes(attribute.String("member.national_id", req.NationalID))

	existing, err := m.memberRepository.FindByNationalID(ctx, req.NationalID)
	if err != nil {
		m.fail(ctx, span, start, "register_member", "repository_error", "Failed to check existing member", err,
			zap.String("national_id", req.NationalID))
		return nil, err
	}
	if existing != nil {
		err := common.ErrNationalIDExists
		m.fail(ctx, span, start, "register_member", "duplicate_member", "Member already registered", err,
			zap.String("national_id", req.NationalID))
		return nil, err
	}

	idPhotoURL, err := m.media.Upload(ctx, req.IDPhoto, "chamaflow/id-photos")
	if err != nil {
		m.fail(ctx, span, start, "register_member", "upload_failed", "Failed to upload ID photo", err,
			zap.String("national_id", req.NationalID))
		return nil, err
	}
	selfieURL, err := m.media.Upload(ctx, req.SelfiePhoto, "chamaflow/selfies")
	if err != nil {
		m.fail(ctx, span, start, "register_member", "upload_failed", "Failed to upload selfie photo", err,
			zap.String("national_id", req.NationalID))
		return nil, err
	}

	hashed, err := password.HashPassword(req.Password)
	if err != nil {
		m.fail(ctx, span, start, "register_member", "hash_failed", "Failed to hash password", err)
		return nil, err
	}

	member := dto.RegisterToEntity(req, idPhotoURL, selfieURL)
	member.Password = hashed

	data, err := m.memberRepository.CreateMember(ctx, *member)
	if err != nil {
		m.fail(ctx, span, start, "register_member", "create_failed", "Failed to create member", err,
			zap.String("national_id", req.NationalID))
		return nil, err
	}

	m.membersRegistered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", "member"),
	))

	m.succeed(ctx, span, start, "register_member", "Member registered",
		zap.Uint64("member_id", data.ID),
		zap.String("full_name", data.FullName),
	)
	span.SetAttributes(attribute.Int64("member.id", int64(data.ID)))

	return data, nil
}

// GetProfile implements service.MemberServices.
func (m *memberService) GetProfile(ctx context.Context, memberID uint64) (*domain.Member, error) {
	ctx, span := m.tracer.Start(ctx, "service.GetMemberProfile")
	defer span.End()
	start := time.Now()

	m.begin(ctx, "get_profile")
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	member, err := m.memberRepository.FindByID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "get_profile", "repository_error", "Failed to fetch member", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}
	if member == nil {
		err := common.ErrMemberNotFound
		m.fail(ctx, span, start, "get_profile", "member_not_found", "Member not found", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	m.succeed(ctx, span, start, "get_profile", "Member profile retrieved",
		zap.Uint64("member_id", memberID))

	return member, nil
}

// UpdateProfile implements service.MemberServices.
func (m *memberService) UpdateProfile(ctx context.Context, memberID uint64, req domain.Member) error {
	ctx, span := m.tracer.Start(ctx, "service.UpdateMemberProfile")
	defer span.End()
	start := time.Now()

	m.begin(ctx, "update_profile")
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	member, err := m.memberRepository.FindByID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "update_profile", "repository_error", "Failed to fetch member", err,
			zap.Uint64("member_id", memberID))
		return err
	}
	if member == nil {
		err := common.ErrMemberNotFound
		m.fail(ctx, span, start, "update_profile", "member_not_found", "Member not found", err,
			zap.Uint64("member_id", memberID))
		return err
	}

	member.FullName = req.FullName
	member.PhoneNumber = req.PhoneNumber
	member.MonthlyIncome = req.MonthlyIncome

	if err := m.memberRepository.UpdateMember(ctx, member); err != nil {
		m.fail(ctx, span, start, "update_profile", "update_failed", "Failed to update member", err,
			zap.Uint64("member_id", memberID))
		return err
	}

	m.succeed(ctx, span, start, "update_profile", "Member profile updated",
		zap.Uint64("member_id", memberID))

	return nil
}

// VerifyMember implements service.MemberServices. Verification is a treasurer
// decision; only pending members can move, in either direction.
func (m *memberService) VerifyMember(ctx context.Context, memberID uint64, req dto.VerificationRequest) error {
	ctx, span := m.tracer.Start(ctx, "service.VerifyMember")
	defer span.End()
	start := time.Now()

	m.begin(ctx, "verify_member")
	span.SetAttributes(
		attribute.Int64("member.id", int64(memberID)),
		attribute.String("verification.status", string(req.Status)),
	)

	member, err := m.memberRepository.FindByID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "verify_member", "repository_error", "Failed to fetch member", err,
			zap.Uint64("member_id", memberID))
		return err
	}
	if member == nil {
		err := common.ErrMemberNotFound
		m.fail(ctx, span, start, "verify_member", "member_not_found", "Member not found", err,
			zap.Uint64("member_id", memberID))
		return err
	}

	member.VerificationStatus = req.Status
	if err := m.memberRepository.UpdateMember(ctx, member); err != nil {
		m.fail(ctx, span, start, "verify_member", "update_failed", "Failed to update verification status", err,
			zap.Uint64("member_id", memberID))
		return err
	}

	if req.Status == domain.VerificationVerified {
		m.membersVerified.Add(ctx, 1, metric.WithAttributes(
			attribute.String("service", "member"),
		))
	}

	m.succeed(ctx, span, start, "verify_member", "Member verification updated",
		zap.Uint64("member_id", memberID),
		zap.String("verification_status", string(req.Status)),
		zap.String("reason", req.Reason),
	)

	return nil
}

// ListMembers implements service.MemberServices.
func (m *memberService) ListMembers(ctx context.Context, params domain.Params) (*domain.Paginated, error) {
	ctx, span := m.tracer.Start(ctx, "service.ListMembers")
	defer span.End()
	start := time.Now()

	m.begin(ctx, "list_members")
	span.SetAttributes(
		attribute.Int("pagination.page", params.Page),
		attribute.Int("pagination.limit", params.Limit),
	)

	members, total, err := m.memberRepository.FindPaginated(ctx, params)
	if err != nil {
		m.fail(ctx, span, start, "list_members", "repository_error", "Failed to list members", err)
		return nil, err
	}

	totalPages := 0
	if params.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(params.Limit)))
	}

	m.succeed(ctx, span, start, "list_members", "Members listed",
		zap.Int64("total", total))

	return &domain.Paginated{
		Data:       members,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

// RecordContribution implements service.MemberServices. Every contribution
// gets a generated reference so bank and M-Pesa deposits reconcile later.
func (m *memberService) RecordContribution(ctx context.Context, memberID uint64, req dto.ContributionRequest) (*domain.Contribution, error) {
	ctx, span := m.tracer.Start(ctx, "service.RecordContribution")
	defer span.End()
	start := time.Now()

	m.begin(ctx, "record_contribution")
	span.SetAttributes(
		attribute.Int64("member.id", int64(memberID)),
		attribute.Float64("contribution.amount", req.Amount),
		attribute.String("contribution.method", req.Method),
	)

	member, err := m.memberRepository.FindByID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "record_contribution", "repository_error", "Failed to fetch member", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}
	if member == nil {
		err := common.ErrMemberNotFound
		m.fail(ctx, span, start, "record_contribution", "member_not_found", "Member not found", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	contribution := &domain.Contribution{
		MemberID:  memberID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: "CTR-" + strings.ToUpper(uuid.NewString()[:8]),
		Notes:     req.Notes,
	}

	if err := m.memberRepository.CreateContribution(ctx, contribution); err != nil {
		m.fail(ctx, span, start, "record_contribution", "create_failed", "Failed to record contribution", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	m.contributionsSum.Add(ctx, req.Amount, metric.WithAttributes(
		attribute.String("service", "member"),
		attribute.String("method", req.Method),
	))

	m.succeed(ctx, span, start, "record_contribution", "Contribution recorded",
		zap.Uint64("member_id", memberID),
		zap.Float64("amount", req.Amount),
		zap.String("reference", contribution.Reference),
	)

	return contribution, nil
}

// GetContributions implements service.MemberServices.
func (m *memberService) GetContributions(ctx context.Context, memberID uint64) ([]domain.Contribution, error) {
	ctx, span := m.tracer.Start(ctx, "service.GetContributions")
	defer span.End()
	start := time.Now()

	m.begin(ctx, "get_contributions")
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	contributions, err := m.memberRepository.FindContributionsByMemberID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "get_contributions", "repository_error", "Failed to fetch contributions", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	m.succeed(ctx, span, start, "get_contributions", "Contributions retrieved",
		zap.Uint64("member_id", memberID),
		zap.Int("contributions_count", len(contributions)))

	return contributions, nil
}

// GetStatement implements service.MemberServices. One read-only rollup of a
// member's standing across savings, loans and ngumbato positions.
func (m *memberService) GetStatement(ctx context.Context, memberID uint64) (*dto.MemberStatementResponse, error) {
	ctx, span := m.tracer.Start(ctx, "service.GetMemberStatement")
	defer span.End()
	start := time.Now()

	m.begin(ctx, "get_statement")
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	member, err := m.memberRepository.FindByID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "get_statement", "repository_error", "Failed to fetch member", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}
	if member == nil {
		err := common.ErrMemberNotFound
		m.fail(ctx, span, start, "get_statement", "member_not_found", "Member not found", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	totalContributions, err := m.memberRepository.SumContributionsByMemberID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "get_statement", "repository_error", "Failed to sum contributions", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	activeLoans, err := m.loanRepository.CountActiveByMemberID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "get_statement", "repository_error", "Failed to count active loans", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	loanBalance, err := m.loanRepository.SumOutstandingByMemberID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "get_statement", "repository_error", "Failed to sum loan balances", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	ngumbatos, err := m.ngumbatoRepository.FindByMemberID(ctx, memberID)
	if err != nil {
		m.fail(ctx, span, start, "get_statement", "repository_error", "Failed to fetch ngumbato records", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	var ngumbatoBalance, outstandingFines float64
	for _, record := range ngumbatos {
		if record.Status != domain.NgumbatoCompleted {
			ngumbatoBalance += record.RemainingBalance
		}
		outstandingFines += record.Fines
	}

	m.succeed(ctx, span, start, "get_statement", "Member statement computed",
		zap.Uint64("member_id", memberID),
		zap.Float64("total_contributions", totalContributions),
		zap.Int64("active_loans", activeLoans),
	)

	return &dto.MemberStatementResponse{
		MemberID:           memberID,
		FullName:           member.FullName,
		TotalContributions: totalContributions,
		ActiveLoans:        int(activeLoans),
		LoanBalance:        loanBalance,
		NgumbatoBalance:    ngumbatoBalance,
		OutstandingFines:   outstandingFines,
	}, nil
}
