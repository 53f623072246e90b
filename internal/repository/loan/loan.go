package loanrepo

import (
	"context"
	"errors"
	"time"

	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/internal/model"
	"github.com/wambuik/chamaflow/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loanRepository struct {
	db     *gorm.DB
	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger

	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

func NewLoanRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) repository.LoanRepository {
	queryDuration, _ := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Duration of database queries"),
		metric.WithUnit("ms"),
	)

	queryCount, _ := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Number of database queries"),
		metric.WithUnit("{query}"),
	)

	errorCount, _ := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Number of database errors"),
		metric.WithUnit("{error}"),
	)

	return &loanRepository{
		db:            db,
		meter:         meter,
		tracer:        tracer,
		log:           log,
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}
}

func (l *loanRepository) recordQuery(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	duration := float64(time.Since(start).Milliseconds())
	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, operation+" failed")
		span.RecordError(err)
		l.errorCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("table", "loan_applications"),
		))
	} else {
		span.SetStatus(codes.Ok, operation+" completed")
	}
	l.queryDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("table", "loan_applications"),
		attribute.String("status", status),
	))
}

// CreateLoan implements repository.LoanRepository.
func (l *loanRepository) CreateLoan(ctx context.Context, loan *domain.LoanApplication) error {
	ctx, span := l.tracer.Start(ctx, "repository.CreateLoan")
	defer span.End()
	start := time.Now()

	l.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "insert"),
		attribute.String("table", "loan_applications"),
	))
	span.SetAttributes(
		attribute.String("db.operation", "insert"),
		attribute.String("loan.contract_number", loan.ContractNumber),
	)

	record := model.LoanFromEntity(loan)
	err := l.db.WithContext(ctx).Create(&record).Error
	l.recordQuery(ctx, span, "insert", start, err)
	if err != nil {
		l.log.Error("Error creating loan application",
			zap.String("contract_number", loan.ContractNumber),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return err
	}

	loan.ID = record.ID
	loan.CreatedAt = record.CreatedAt

	l.log.Info("Loan application created",
		zap.Uint64("loan_id", record.ID),
		zap.String("contract_number", loan.ContractNumber),
		zap.Float64("amount", loan.Amount),
	)

	return nil
}

// FindByID implements repository.LoanRepository.
func (l *loanRepository) FindByID(ctx context.Context, id uint64) (*domain.LoanApplication, error) {
	ctx, span := l.tracer.Start(ctx, "repository.FindLoanByID")
	defer span.End()
	start := time.Now()

	l.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "select"),
		attribute.String("table", "loan_applications"),
	))
	span.SetAttributes(attribute.Int64("loan.id", int64(id)))

	var record model.LoanApplication
	err := l.db.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.recordQuery(ctx, span, "select", start, nil)
		return nil, nil
	}
	l.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		l.log.Error("Error finding loan by ID",
			zap.Uint64("loan_id", id),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return nil, err
	}

	return model.LoanToEntity(record), nil
}

// FindByMemberID implements repository.LoanRepository.
func (l *loanRepository) FindByMemberID(ctx context.Context, memberID uint64) ([]domain.LoanApplication, error) {
	ctx, span := l.tracer.Start(ctx, "repository.FindLoansByMemberID")
	defer span.End()
	start := time.Now()

	var records []model.LoanApplication
	err := l.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&records).Error
	l.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		return nil, err
	}

	return model.LoansToEntity(records), nil
}

// FindPaginated implements repository.LoanRepository.
func (l *loanRepository) FindPaginated(ctx context.Context, params domain.Params) ([]domain.LoanApplication, int64, error) {
	ctx, span := l.tracer.Start(ctx, "repository.FindLoansPaginated")
	defer span.End()
	start := time.Now()

	query := l.db.WithContext(ctx).Model(&model.LoanApplication{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.recordQuery(ctx, span, "select", start, err)
		return nil, 0, err
	}

	var records []model.LoanApplication
	offset := (params.Page - 1) * params.Limit
	err := query.Order("created_at DESC").Offset(offset).Limit(params.Limit).Find(&records).Error
	l.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		return nil, 0, err
	}

	span.SetAttributes(attribute.Int("result.retrieved", len(records)))

	return model.LoansToEntity(records), total, nil
}

// UpdateLoan implements repository.LoanRepository. The whole repayment plan is
// written in one statement so a reschedule is never half-applied.
func (l *loanRepository) UpdateLoan(ctx context.Context, loan *domain.LoanApplication) error {
	ctx, span := l.tracer.Start(ctx, "repository.UpdateLoan")
	defer span.End()
	start := time.Now()

	l.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "update"),
		attribute.String("table", "loan_applications"),
	))
	span.SetAttributes(attribute.Int64("loan.id", int64(loan.ID)))

	record := model.LoanFromEntity(loan)
	err := l.db.WithContext(ctx).Model(&model.LoanApplication{}).Where("id = ?", loan.ID).Updates(map[string]any{
		"status":                 record.Status,
		"monthly_installment":    record.MonthlyInstallment,
		"total_interest":         record.TotalInterest,
		"total_repayment":        record.TotalRepayment,
		"remaining_balance":      record.RemainingBalance,
		"completed_installments": record.CompletedInstallments,
		"total_installments":     record.TotalInstallments,
		"term_months":            record.TermMonths,
		"start_date":             record.StartDate,
		"end_date":               record.EndDate,
		"next_due_date":          record.NextDueDate,
		"disbursement_date":      record.DisbursementDate,
		"due_date":               record.DueDate,
		"notes":                  record.Notes,
	}).Error
	l.recordQuery(ctx, span, "update", start, err)
	if err != nil {
		l.log.Error("Error updating loan",
			zap.Uint64("loan_id", loan.ID),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// SumOutstandingByMemberID implements repository.LoanRepository.
func (l *loanRepository) SumOutstandingByMemberID(ctx context.Context, memberID uint64) (float64, error) {
	ctx, span := l.tracer.Start(ctx, "repository.SumOutstandingByMemberID")
	defer span.End()
	start := time.Now()

	var total float64
	err := l.db.WithContext(ctx).
		Model(&model.LoanApplication{}).
		Where("member_id = ? AND status = ?", memberID, domain.LoanDisbursed).
		Select("COALESCE(SUM(remaining_balance), 0)").
		Scan(&total).Error
	l.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// CountActiveByMemberID implements repository.LoanRepository.
func (l *loanRepository) CountActiveByMemberID(ctx context.Context, memberID uint64) (int64, error) {
	ctx, span := l.tracer.Start(ctx, "repository.CountActiveByMemberID")
	defer span.End()
	start := time.Now()

	var count int64
	err := l.db.WithContext(ctx).
		Model(&model.LoanApplication{}).
		Where("member_id = ? AND status IN ?", memberID, []domain.LoanStatus{domain.LoanApproved, domain.LoanDisbursed}).
		Count(&count).Error
	l.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		return 0, err
	}

	return count, nil
}
