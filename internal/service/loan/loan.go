package loansrv

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/internal/dto"
	"github.com/wambuik/chamaflow/internal/finance"
	"github.com/wambuik/chamaflow/internal/repository"
	"github.com/wambuik/chamaflow/internal/service"
	"github.com/wambuik/chamaflow/pkg/common"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loanService struct {
	db               *gorm.DB
	loanRepository   repository.LoanRepository
	memberRepository repository.MemberRepository

	meter             metric.Meter
	tracer            trace.Tracer
	log               *zap.Logger
	operationDuration metric.Float64Histogram
	operationCount    metric.Int64Counter
	errorCount        metric.Int64Counter
	loansOriginated   metric.Int64Counter
	loansRescheduled  metric.Int64Counter
}

func NewLoanService(
	db *gorm.DB,
	loanRepository repository.LoanRepository,
	memberRepository repository.MemberRepository,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) service.LoanServices {
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

	loansOriginated, _ := meter.Int64Counter(
		"service.loans.originated",
		metric.WithDescription("Number of loan applications created"),
		metric.WithUnit("{loan}"),
	)

	loansRescheduled, _ := meter.Int64Counter(
		"service.loans.rescheduled",
		metric.WithDescription("Number of loans rescheduled"),
		metric.WithUnit("{loan}"),
	)

	return &loanService{
		db:               db,
		loanRepository:   loanRepository,
		memberRepository: memberRepository,

		meter:             meter,
		tracer:            tracer,
		log:               log,
		operationDuration: operationDuration,
		operationCount:    operationCount,
		errorCount:        errorCount,
		loansOriginated:   loansOriginated,
		loansRescheduled:  loansRescheduled,
	}
}

func (l *loanService) begin(ctx context.Context, operation string) {
	l.operationCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "loan"),
	))
}

func (l *loanService) fail(ctx context.Context, span trace.Span, start time.Time, operation, errorType, msg string, err error, fields ...zap.Field) {
	span.SetStatus(codes.Error, msg)
	span.RecordError(err)

	l.log.Error(msg, append(fields,
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Error(err),
	)...)

	l.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "loan"),
		attribute.String("error_type", errorType),
	))
	l.operationDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "loan"),
		attribute.String("status", "error"),
	))
}

func (l *loanService) succeed(ctx context.Context, span trace.Span, start time.Time, operation, msg string, fields ...zap.Field) {
	duration := float64(time.Since(start).Milliseconds())
	l.operationDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "loan"),
		attribute.String("status", "success"),
	))

	l.log.Info(msg, append(fields,
		zap.Float64("duration_ms", duration),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)...)

	span.SetStatus(codes.Ok, msg)
}

func newContractNumber() string {
	return "CHF-" + strings.ToUpper(uuid.NewString()[:8])
}

// Quote implements service.LoanServices. A quote is pure arithmetic; nothing
// is persisted.
func (l *loanService) Quote(ctx context.Context, req dto.LoanQuoteRequest) (*dto.LoanQuoteResponse, error) {
	ctx, span := l.tracer.Start(ctx, "service.QuoteLoan")
	defer span.End()
	start := time.Now()

	l.begin(ctx, "quote_loan")
	span.SetAttributes(
		attribute.Float64("loan.principal", req.Principal),
		attribute.Float64("loan.rate_percent", req.AnnualRatePercent),
		attribute.Int("loan.term_months", req.TermMonths),
	)

	installment, err := finance.ComputeMonthlyInstallment(req.Principal, req.AnnualRatePercent, req.TermMonths)
	if err != nil {
		l.fail(ctx, span, start, "quote_loan", "invalid_terms", "Loan quote rejected", err,
			zap.Float64("principal", req.Principal),
			zap.Int("term_months", req.TermMonths),
		)
		return nil, err
	}

	totals := finance.ComputeTotals(installment, req.TermMonths, req.Principal)

	l.succeed(ctx, span, start, "quote_loan", "Loan quote computed",
		zap.Float64("monthly_installment", installment),
	)

	return &dto.LoanQuoteResponse{
		Principal:          req.Principal,
		AnnualRatePercent:  req.AnnualRatePercent,
		TermMonths:         req.TermMonths,
		MonthlyInstallment: installment,
		TotalInterest:      totals.TotalInterest,
		TotalRepayment:     totals.TotalRepayment,
	}, nil
}

// Apply implements service.LoanServices. Only verified members may borrow;
// the amortization figures are fixed at application time.
func (l *loanService) Apply(ctx context.Context, req dto.LoanApplyRequest) (*domain.LoanApplication, error) {
	ctx, span := l.tracer.Start(ctx, "service.ApplyLoan")
	defer span.End()
	start := time.Now()

	l.begin(ctx, "apply_loan")
	span.SetAttributes(
		attribute.Int64("member.id", int64(req.MemberID)),
		attribute.Float64("loan.amount", req.Amount),
		attribute.Int("loan.term_months", req.TermMonths),
	)

	member, err := l.memberRepository.FindByID(ctx, req.MemberID)
	if err != nil {
		l.fail(ctx, span, start, "apply_loan", "repository_error", "Failed to fetch member", err,
			zap.Uint64("member_id", req.MemberID))
		return nil, err
	}
	if member == nil {
		err := common.ErrMemberNotFound
		l.fail(ctx, span, start, "apply_loan", "member_not_found", "Member not found", err,
			zap.Uint64("member_id", req.MemberID))
		return nil, err
	}
	if member.VerificationStatus != domain.VerificationVerified {
		err := common.ErrMemberNotVerified
		l.fail(ctx, span, start, "apply_loan", "member_not_verified", "Member is not verified", err,
			zap.Uint64("member_id", req.MemberID),
			zap.String("verification_status", string(member.VerificationStatus)))
		return nil, err
	}

	installment, err := finance.ComputeMonthlyInstallment(req.Amount, req.AnnualRatePercent, req.TermMonths)
	if err != nil {
		l.fail(ctx, span, start, "apply_loan", "invalid_terms", "Loan application rejected", err,
			zap.Float64("amount", req.Amount),
			zap.Int("term_months", req.TermMonths))
		return nil, err
	}
	totals := finance.ComputeTotals(installment, req.TermMonths, req.Amount)

	loan := &domain.LoanApplication{
		ContractNumber:      newContractNumber(),
		MemberID:            req.MemberID,
		Amount:              req.Amount,
		Purpose:             req.Purpose,
		Status:              domain.LoanPending,
		InterestRatePercent: req.AnnualRatePercent,
		TermMonths:          req.TermMonths,
		MonthlyInstallment:  installment,
		TotalInterest:       totals.TotalInterest,
		TotalRepayment:      totals.TotalRepayment,
		RemainingBalance:    totals.TotalRepayment,
		TotalInstallments:   req.TermMonths,
		Notes:               req.Notes,
	}

	if err := l.loanRepository.CreateLoan(ctx, loan); err != nil {
		l.fail(ctx, span, start, "apply_loan", "create_failed", "Failed to create loan application", err,
			zap.Uint64("member_id", req.MemberID))
		return nil, err
	}

	l.loansOriginated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", "loan"),
	))

	l.succeed(ctx, span, start, "apply_loan", "Loan application created",
		zap.Uint64("loan_id", loan.ID),
		zap.String("contract_number", loan.ContractNumber),
		zap.Float64("monthly_installment", installment),
	)
	span.SetAttributes(attribute.Int64("loan.id", int64(loan.ID)))

	return loan, nil
}

// transition fetches a loan and applies a status change under the lifecycle
// rules. mutate runs only after the from-status check passes.
func (l *loanService) transition(ctx context.Context, operation string, loanID uint64, from domain.LoanStatus, to domain.LoanStatus, mutate func(*domain.LoanApplication)) error {
	ctx, span := l.tracer.Start(ctx, "service."+operation)
	defer span.End()
	start := time.Now()

	l.begin(ctx, operation)
	span.SetAttributes(
		attribute.Int64("loan.id", int64(loanID)),
		attribute.String("loan.to_status", string(to)),
	)

	loan, err := l.loanRepository.FindByID(ctx, loanID)
	if err != nil {
		l.fail(ctx, span, start, operation, "repository_error", "Failed to fetch loan", err,
			zap.Uint64("loan_id", loanID))
		return err
	}
	if loan == nil {
		err := common.ErrLoanNotFound
		l.fail(ctx, span, start, operation, "loan_not_found", "Loan not found", err,
			zap.Uint64("loan_id", loanID))
		return err
	}
	if loan.Status != from {
		err := common.ErrInvalidTransition
		l.fail(ctx, span, start, operation, "invalid_transition", "Loan status transition rejected", err,
			zap.Uint64("loan_id", loanID),
			zap.String("current_status", string(loan.Status)),
			zap.String("requested_status", string(to)))
		return err
	}

	loan.Status = to
	if mutate != nil {
		mutate(loan)
	}

	if err := l.loanRepository.UpdateLoan(ctx, loan); err != nil {
		l.fail(ctx, span, start, operation, "update_failed", "Failed to update loan", err,
			zap.Uint64("loan_id", loanID))
		return err
	}

	l.succeed(ctx, span, start, operation, "Loan status updated",
		zap.Uint64("loan_id", loanID),
		zap.String("status", string(to)),
	)

	return nil
}

// Approve implements service.LoanServices.
func (l *loanService) Approve(ctx context.Context, loanID uint64) error {
	return l.transition(ctx, "approve_loan", loanID, domain.LoanPending, domain.LoanApproved, nil)
}

// Reject implements service.LoanServices.
func (l *loanService) Reject(ctx context.Context, loanID uint64, reason string) error {
	return l.transition(ctx, "reject_loan", loanID, domain.LoanPending, domain.LoanRejected, func(loan *domain.LoanApplication) {
		loan.Notes = reason
	})
}

// Disburse implements service.LoanServices. Disbursement anchors the whole
// repayment calendar: start, end, due and next-due dates all derive from it.
func (l *loanService) Disburse(ctx context.Context, loanID uint64, disbursedAt time.Time) error {
	return l.transition(ctx, "disburse_loan", loanID, domain.LoanApproved, domain.LoanDisbursed, func(loan *domain.LoanApplication) {
		end := disbursedAt.AddDate(0, loan.TermMonths, 0)
		next := disbursedAt.AddDate(0, 1, 0)

		loan.DisbursementDate = &disbursedAt
		loan.StartDate = &disbursedAt
		loan.EndDate = &end
		loan.DueDate = &end
		loan.NextDueDate = &next
		loan.RemainingBalance = loan.TotalRepayment
		loan.CompletedInstallments = 0
		loan.TotalInstallments = loan.TermMonths
	})
}

// Complete implements service.LoanServices.
func (l *loanService) Complete(ctx context.Context, loanID uint64) error {
	return l.transition(ctx, "complete_loan", loanID, domain.LoanDisbursed, domain.LoanCompleted, func(loan *domain.LoanApplication) {
		loan.RemainingBalance = 0
		loan.CompletedInstallments = loan.TotalInstallments
	})
}

// Reschedule implements service.LoanServices. The engine result replaces the
// loan's repayment fields in one update.
func (l *loanService) Reschedule(ctx context.Context, loanID uint64, req finance.RescheduleRequest) (*dto.RescheduleResponse, error) {
	ctx, span := l.tracer.Start(ctx, "service.RescheduleLoan")
	defer span.End()
	start := time.Now()

	l.begin(ctx, "reschedule_loan")
	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	loan, err := l.loanRepository.FindByID(ctx, loanID)
	if err != nil {
		l.fail(ctx, span, start, "reschedule_loan", "repository_error", "Failed to fetch loan", err,
			zap.Uint64("loan_id", loanID))
		return nil, err
	}
	if loan == nil {
		err := common.ErrLoanNotFound
		l.fail(ctx, span, start, "reschedule_loan", "loan_not_found", "Loan not found", err,
			zap.Uint64("loan_id", loanID))
		return nil, err
	}
	if loan.Status != domain.LoanDisbursed {
		err := common.ErrInvalidTransition
		l.fail(ctx, span, start, "reschedule_loan", "invalid_transition", "Only disbursed loans can be rescheduled", err,
			zap.Uint64("loan_id", loanID),
			zap.String("current_status", string(loan.Status)))
		return nil, err
	}

	position := finance.LoanPosition{
		RemainingBalance:      loan.RemainingBalance,
		RemainingTermMonths:   loan.TotalInstallments - loan.CompletedInstallments,
		InstallmentAmount:     loan.MonthlyInstallment,
		CompletedInstallments: loan.CompletedInstallments,
	}

	result, err := finance.Reschedule(position, req)
	if err != nil {
		l.fail(ctx, span, start, "reschedule_loan", "invalid_request", "Reschedule rejected", err,
			zap.Uint64("loan_id", loanID))
		return nil, err
	}

	loan.MonthlyInstallment = result.InstallmentAmount
	loan.TermMonths = result.TermMonths
	loan.TotalInstallments = result.TotalInstallments
	loan.StartDate = &result.StartDate
	loan.EndDate = &result.EndDate
	loan.NextDueDate = &result.NextDueDate
	loan.RemainingBalance = result.RemainingBalance
	loan.Notes = req.Reason

	if err := l.loanRepository.UpdateLoan(ctx, loan); err != nil {
		l.fail(ctx, span, start, "reschedule_loan", "update_failed", "Failed to persist reschedule", err,
			zap.Uint64("loan_id", loanID))
		return nil, err
	}

	l.loansRescheduled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", "loan"),
	))

	warning := ""
	if result.LargeAdjustment {
		warning = "installment changed by more than 1000 KSh"
		l.log.Warn("Large installment adjustment on reschedule",
			zap.Uint64("loan_id", loanID),
			zap.Float64("new_installment", result.InstallmentAmount),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
		)
	}

	l.succeed(ctx, span, start, "reschedule_loan", "Loan rescheduled",
		zap.Uint64("loan_id", loanID),
		zap.Float64("monthly_installment", result.InstallmentAmount),
		zap.Int("term_months", result.TermMonths),
	)

	return &dto.RescheduleResponse{
		ContractNumber:     loan.ContractNumber,
		MonthlyInstallment: result.InstallmentAmount,
		TermMonths:         result.TermMonths,
		TotalInstallments:  result.TotalInstallments,
		StartDate:          result.StartDate.Format("2006-01-02"),
		EndDate:            result.EndDate.Format("2006-01-02"),
		NextDueDate:        result.NextDueDate.Format("2006-01-02"),
		RemainingBalance:   result.RemainingBalance,
		Warning:            warning,
	}, nil
}

// GetLoan implements service.LoanServices.
func (l *loanService) GetLoan(ctx context.Context, loanID uint64) (*domain.LoanApplication, error) {
	ctx, span := l.tracer.Start(ctx, "service.GetLoan")
	defer span.End()
	start := time.Now()

	l.begin(ctx, "get_loan")
	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	loan, err := l.loanRepository.FindByID(ctx, loanID)
	if err != nil {
		l.fail(ctx, span, start, "get_loan", "repository_error", "Failed to fetch loan", err,
			zap.Uint64("loan_id", loanID))
		return nil, err
	}
	if loan == nil {
		err := common.ErrLoanNotFound
		l.fail(ctx, span, start, "get_loan", "loan_not_found", "Loan not found", err,
			zap.Uint64("loan_id", loanID))
		return nil, err
	}

	l.succeed(ctx, span, start, "get_loan", "Loan retrieved",
		zap.Uint64("loan_id", loanID))

	return loan, nil
}

// ListLoans implements service.LoanServices.
func (l *loanService) ListLoans(ctx context.Context, params domain.Params) (*domain.Paginated, error) {
	ctx, span := l.tracer.Start(ctx, "service.ListLoans")
	defer span.End()
	start := time.Now()

	l.begin(ctx, "list_loans")
	span.SetAttributes(
		attribute.Int("pagination.page", params.Page),
		attribute.Int("pagination.limit", params.Limit),
	)

	loans, total, err := l.loanRepository.FindPaginated(ctx, params)
	if err != nil {
		l.fail(ctx, span, start, "list_loans", "repository_error", "Failed to list loans", err)
		return nil, err
	}

	totalPages := 0
	if params.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(params.Limit)))
	}

	l.succeed(ctx, span, start, "list_loans", "Loans listed",
		zap.Int64("total", total))

	return &domain.Paginated{
		Data:       loans,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

// GetMemberLoans implements service.LoanServices.
func (l *loanService) GetMemberLoans(ctx context.Context, memberID uint64) ([]domain.LoanApplication, error) {
	ctx, span := l.tracer.Start(ctx, "service.GetMemberLoans")
	defer span.End()
	start := time.Now()

	l.begin(ctx, "get_member_loans")
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	loans, err := l.loanRepository.FindByMemberID(ctx, memberID)
	if err != nil {
		l.fail(ctx, span, start, "get_member_loans", "repository_error", "Failed to fetch member loans", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	l.succeed(ctx, span, start, "get_member_loans", "Member loans retrieved",
		zap.Uint64("member_id", memberID),
		zap.Int("loans_count", len(loans)))

	return loans, nil
}
