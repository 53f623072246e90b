package memberrepo

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

type memberRepository struct {
	db     *gorm.DB
	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger

	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

func NewMemberRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) repository.MemberRepository {
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

	return &memberRepository{
		db:            db,
		meter:         meter,
		tracer:        tracer,
		log:           log,
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}
}

func (m *memberRepository) recordQuery(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	duration := float64(time.Since(start).Milliseconds())
	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, operation+" failed")
		span.RecordError(err)
		m.errorCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("table", "members"),
		))
	} else {
		span.SetStatus(codes.Ok, operation+" completed")
	}
	m.queryDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("table", "members"),
		attribute.String("status", status),
	))
}

// CreateMember implements repository.MemberRepository.
func (m *memberRepository) CreateMember(ctx context.Context, member domain.Member) (*domain.Member, error) {
	ctx, span := m.tracer.Start(ctx, "repository.CreateMember")
	defer span.End()
	start := time.Now()

	m.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "insert"),
		attribute.String("table", "members"),
	))
	span.SetAttributes(
		attribute.String("db.operation", "insert"),
		attribute.String("db.table", "members"),
	)

	record := model.MemberFromEntity(&member)
	err := m.db.WithContext(ctx).Create(&record).Error
	m.recordQuery(ctx, span, "insert", start, err)
	if err != nil {
		m.log.Error("Error creating member",
			zap.String("national_id", member.NationalID),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return nil, err
	}

	m.log.Info("Member created",
		zap.Uint64("member_id", record.ID),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	return model.MemberToEntity(record), nil
}

// FindByNationalID implements repository.MemberRepository.
func (m *memberRepository) FindByNationalID(ctx context.Context, nationalID string) (*domain.Member, error) {
	ctx, span := m.tracer.Start(ctx, "repository.FindByNationalID")
	defer span.End()
	start := time.Now()

	m.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "select"),
		attribute.String("table", "members"),
	))

	var record model.Member
	err := m.db.WithContext(ctx).Where("national_id = ?", nationalID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m.recordQuery(ctx, span, "select", start, nil)
		return nil, nil
	}
	m.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		m.log.Error("Error finding member by national ID",
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return nil, err
	}

	return model.MemberToEntity(record), nil
}

// FindByID implements repository.MemberRepository.
func (m *memberRepository) FindByID(ctx context.Context, id uint64) (*domain.Member, error) {
	ctx, span := m.tracer.Start(ctx, "repository.FindByID")
	defer span.End()
	start := time.Now()

	m.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "select"),
		attribute.String("table", "members"),
	))
	span.SetAttributes(attribute.Int64("member.id", int64(id)))

	var record model.Member
	err := m.db.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m.recordQuery(ctx, span, "select", start, nil)
		return nil, nil
	}
	m.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		m.log.Error("Error finding member by ID",
			zap.Uint64("member_id", id),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return nil, err
	}

	return model.MemberToEntity(record), nil
}

// UpdateMember implements repository.MemberRepository.
func (m *memberRepository) UpdateMember(ctx context.Context, member *domain.Member) error {
	ctx, span := m.tracer.Start(ctx, "repository.UpdateMember")
	defer span.End()
	start := time.Now()

	m.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "update"),
		attribute.String("table", "members"),
	))
	span.SetAttributes(attribute.Int64("member.id", int64(member.ID)))

	record := model.MemberFromEntity(member)
	err := m.db.WithContext(ctx).Model(&model.Member{}).Where("id = ?", member.ID).Updates(map[string]any{
		"full_name":           record.FullName,
		"phone_number":        record.PhoneNumber,
		"monthly_income":      record.MonthlyIncome,
		"verification_status": record.VerificationStatus,
	}).Error
	m.recordQuery(ctx, span, "update", start, err)
	if err != nil {
		m.log.Error("Error updating member",
			zap.Uint64("member_id", member.ID),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// FindPaginated implements repository.MemberRepository.
func (m *memberRepository) FindPaginated(ctx context.Context, params domain.Params) ([]domain.Member, int64, error) {
	ctx, span := m.tracer.Start(ctx, "repository.FindPaginated")
	defer span.End()
	start := time.Now()

	m.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "select"),
		attribute.String("table", "members"),
	))

	query := m.db.WithContext(ctx).Model(&model.Member{})
	if params.Status != "" {
		query = query.Where("verification_status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		m.recordQuery(ctx, span, "select", start, err)
		return nil, 0, err
	}

	var records []model.Member
	offset := (params.Page - 1) * params.Limit
	err := query.Order("created_at DESC").Offset(offset).Limit(params.Limit).Find(&records).Error
	m.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		m.log.Error("Error listing members",
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return nil, 0, err
	}

	span.SetAttributes(attribute.Int("result.retrieved", len(records)))

	return model.MembersToEntity(records), total, nil
}

// CreateContribution implements repository.MemberRepository.
func (m *memberRepository) CreateContribution(ctx context.Context, contribution *domain.Contribution) error {
	ctx, span := m.tracer.Start(ctx, "repository.CreateContribution")
	defer span.End()
	start := time.Now()

	m.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "insert"),
		attribute.String("table", "contributions"),
	))

	record := model.ContributionFromEntity(contribution)
	err := m.db.WithContext(ctx).Create(&record).Error
	m.recordQuery(ctx, span, "insert", start, err)
	if err != nil {
		m.log.Error("Error recording contribution",
			zap.Uint64("member_id", contribution.MemberID),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return err
	}

	contribution.ID = record.ID
	contribution.RecordedAt = record.RecordedAt

	m.log.Info("Contribution recorded",
		zap.Uint64("member_id", contribution.MemberID),
		zap.Float64("amount", contribution.Amount),
		zap.String("reference", contribution.Reference),
	)

	return nil
}

// FindContributionsByMemberID implements repository.MemberRepository.
func (m *memberRepository) FindContributionsByMemberID(ctx context.Context, memberID uint64) ([]domain.Contribution, error) {
	ctx, span := m.tracer.Start(ctx, "repository.FindContributionsByMemberID")
	defer span.End()
	start := time.Now()

	m.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "select"),
		attribute.String("table", "contributions"),
	))

	var records []model.Contribution
	err := m.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("recorded_at DESC").
		Find(&records).Error
	m.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		return nil, err
	}

	return model.ContributionsToEntity(records), nil
}

// SumContributionsByMemberID implements repository.MemberRepository.
func (m *memberRepository) SumContributionsByMemberID(ctx context.Context, memberID uint64) (float64, error) {
	ctx, span := m.tracer.Start(ctx, "repository.SumContributionsByMemberID")
	defer span.End()
	start := time.Now()

	var total float64
	err := m.db.WithContext(ctx).
		Model(&model.Contribution{}).
		Where("member_id = ?", memberID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	m.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		return 0, err
	}

	return total, nil
}
