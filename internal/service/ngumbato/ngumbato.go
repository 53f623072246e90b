package ngumbatosrv

import (
	"context"
	"errors"
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

type ngumbatoService struct {
	db                 *gorm.DB
	ngumbatoRepository repository.NgumbatoRepository
	memberRepository   repository.MemberRepository

	meter             metric.Meter
	tracer            trace.Tracer
	log               *zap.Logger
	operationDuration metric.Float64Histogram
	operationCount    metric.Int64Counter
	errorCount        metric.Int64Counter
	recordsCreated    metric.Int64Counter
	paymentsRecorded  metric.Int64Counter
	finesCharged      metric.Float64Counter
	sweepsRun         metric.Int64Counter
}

func NewNgumbatoService(
	db *gorm.DB,
	ngumbatoRepository repository.NgumbatoRepository,
	memberRepository repository.MemberRepository,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) service.NgumbatoServices {
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

	recordsCreated, _ := meter.Int64Counter(
		"service.ngumbato.created",
		metric.WithDescription("Number of ngumbato records created"),
		metric.WithUnit("{record}"),
	)

	paymentsRecorded, _ := meter.Int64Counter(
		"service.ngumbato.payments",
		metric.WithDescription("Number of ngumbato payments recorded"),
		metric.WithUnit("{payment}"),
	)

	finesCharged, _ := meter.Float64Counter(
		"service.ngumbato.fines",
		metric.WithDescription("Total fines charged"),
		metric.WithUnit("KSh"),
	)

	sweepsRun, _ := meter.Int64Counter(
		"service.ngumbato.sweeps",
		metric.WithDescription("Number of lateness sweeps run"),
		metric.WithUnit("{sweep}"),
	)

	return &ngumbatoService{
		db:                 db,
		ngumbatoRepository: ngumbatoRepository,
		memberRepository:   memberRepository,

		meter:             meter,
		tracer:            tracer,
		log:               log,
		operationDuration: operationDuration,
		operationCount:    operationCount,
		errorCount:        errorCount,
		recordsCreated:    recordsCreated,
		paymentsRecorded:  paymentsRecorded,
		finesCharged:      finesCharged,
		sweepsRun:         sweepsRun,
	}
}

func (n *ngumbatoService) begin(ctx context.Context, operation string) {
	n.operationCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "ngumbato"),
	))
}

func (n *ngumbatoService) fail(ctx context.Context, span trace.Span, start time.Time, operation, errorType, msg string, err error, fields ...zap.Field) {
	span.SetStatus(codes.Error, msg)
	span.RecordError(err)

	n.log.Error(msg, append(fields,
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Error(err),
	)...)

	n.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "ngumbato"),
		attribute.String("error_type", errorType),
	))
	n.operationDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "ngumbato"),
		attribute.String("status", "error"),
	))
}

func (n *ngumbatoService) succeed(ctx context.Context, span trace.Span, start time.Time, operation, msg string, fields ...zap.Field) {
	duration := float64(time.Since(start).Milliseconds())
	n.operationDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("service", "ngumbato"),
		attribute.String("status", "success"),
	))

	n.log.Info(msg, append(fields,
		zap.Float64("duration_ms", duration),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)...)

	span.SetStatus(codes.Ok, msg)
}

func newReferenceNumber() string {
	return "NGB-" + strings.ToUpper(uuid.NewString()[:8])
}

// findRecord loads a record or maps its absence to the not-found sentinel.
func (n *ngumbatoService) findRecord(ctx context.Context, id uint64) (*domain.NgumbatoRecord, error) {
	record, err := n.ngumbatoRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, common.ErrNgumbatoNotFound
	}
	return record, nil
}

// Create implements service.NgumbatoServices. The full installment schedule
// is generated up front and persisted with the record.
func (n *ngumbatoService) Create(ctx context.Context, req dto.CreateNgumbatoRequest) (*domain.NgumbatoRecord, error) {
	ctx, span := n.tracer.Start(ctx, "service.CreateNgumbato")
	defer span.End()
	start := time.Now()

	n.begin(ctx, "create_ngumbato")
	span.SetAttributes(
		attribute.Int64("member.id", int64(req.MemberID)),
		attribute.Float64("ngumbato.principle", req.PrincipleAmount),
		attribute.Int("ngumbato.duration_months", req.DurationMonths),
	)

	member, err := n.memberRepository.FindByID(ctx, req.MemberID)
	if err != nil {
		n.fail(ctx, span, start, "create_ngumbato", "repository_error", "Failed to fetch member", err,
			zap.Uint64("member_id", req.MemberID))
		return nil, err
	}
	if member == nil {
		err := common.ErrMemberNotFound
		n.fail(ctx, span, start, "create_ngumbato", "member_not_found", "Member not found", err,
			zap.Uint64("member_id", req.MemberID))
		return nil, err
	}
	if member.VerificationStatus != domain.VerificationVerified {
		err := common.ErrMemberNotVerified
		n.fail(ctx, span, start, "create_ngumbato", "member_not_verified", "Member is not verified", err,
			zap.Uint64("member_id", req.MemberID))
		return nil, err
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		n.fail(ctx, span, start, "create_ngumbato", "invalid_date", "Invalid start date", err,
			zap.String("start_date", req.StartDate))
		return nil, err
	}

	fineRate := req.FineRatePercent
	if fineRate == 0 {
		fineRate = finance.DefaultFineRatePercent
	}

	installments, err := finance.GenerateSchedule(req.PrincipleAmount, startDate, req.DurationMonths, fineRate)
	if err != nil {
		n.fail(ctx, span, start, "create_ngumbato", "invalid_terms", "Schedule generation rejected", err,
			zap.Float64("principle", req.PrincipleAmount),
			zap.Int("duration_months", req.DurationMonths))
		return nil, err
	}

	record := &domain.NgumbatoRecord{
		ReferenceNumber:     newReferenceNumber(),
		MemberID:            req.MemberID,
		PrincipleAmount:     req.PrincipleAmount,
		MonthlyContribution: finance.MonthlyContribution(req.PrincipleAmount),
		StartDate:           startDate,
		DueDate:             startDate.AddDate(0, req.DurationMonths, 0),
		FineRatePercent:     fineRate,
		Status:              domain.NgumbatoActive,
		TotalPaid:           0,
		RemainingBalance:    req.PrincipleAmount,
		Fines:               0,
		Installments:        installments,
	}

	if err := n.ngumbatoRepository.CreateRecord(ctx, record); err != nil {
		n.fail(ctx, span, start, "create_ngumbato", "create_failed", "Failed to create ngumbato record", err,
			zap.Uint64("member_id", req.MemberID))
		return nil, err
	}

	n.recordsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", "ngumbato"),
	))

	n.succeed(ctx, span, start, "create_ngumbato", "Ngumbato record created",
		zap.Uint64("ngumbato_id", record.ID),
		zap.String("reference", record.ReferenceNumber),
		zap.Float64("monthly_contribution", record.MonthlyContribution),
		zap.Int("installments", len(installments)),
	)
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(record.ID)))

	return record, nil
}

// Get implements service.NgumbatoServices.
func (n *ngumbatoService) Get(ctx context.Context, id uint64) (*domain.NgumbatoRecord, error) {
	ctx, span := n.tracer.Start(ctx, "service.GetNgumbato")
	defer span.End()
	start := time.Now()

	n.begin(ctx, "get_ngumbato")
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(id)))

	record, err := n.findRecord(ctx, id)
	if err != nil {
		n.fail(ctx, span, start, "get_ngumbato", "lookup_failed", "Failed to fetch ngumbato record", err,
			zap.Uint64("ngumbato_id", id))
		return nil, err
	}

	n.succeed(ctx, span, start, "get_ngumbato", "Ngumbato record retrieved",
		zap.Uint64("ngumbato_id", id))

	return record, nil
}

// GetMemberRecords implements service.NgumbatoServices.
func (n *ngumbatoService) GetMemberRecords(ctx context.Context, memberID uint64) ([]domain.NgumbatoRecord, error) {
	ctx, span := n.tracer.Start(ctx, "service.GetMemberNgumbatos")
	defer span.End()
	start := time.Now()

	n.begin(ctx, "get_member_ngumbatos")
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	records, err := n.ngumbatoRepository.FindByMemberID(ctx, memberID)
	if err != nil {
		n.fail(ctx, span, start, "get_member_ngumbatos", "repository_error", "Failed to fetch member records", err,
			zap.Uint64("member_id", memberID))
		return nil, err
	}

	n.succeed(ctx, span, start, "get_member_ngumbatos", "Member ngumbato records retrieved",
		zap.Uint64("member_id", memberID),
		zap.Int("records_count", len(records)))

	return records, nil
}

// RecordPayment implements service.NgumbatoServices. A payment against a fully
// paid schedule still moves the aggregates; the caller gets the engine warning
// back as a non-fatal message.
func (n *ngumbatoService) RecordPayment(ctx context.Context, id uint64, req dto.NgumbatoPaymentRequest) (*domain.NgumbatoRecord, string, error) {
	ctx, span := n.tracer.Start(ctx, "service.RecordNgumbatoPayment")
	defer span.End()
	start := time.Now()

	n.begin(ctx, "record_payment")
	span.SetAttributes(
		attribute.Int64("ngumbato.id", int64(id)),
		attribute.Float64("payment.amount", req.Amount),
		attribute.Float64("payment.fine_amount", req.FineAmount),
	)

	record, err := n.findRecord(ctx, id)
	if err != nil {
		n.fail(ctx, span, start, "record_payment", "lookup_failed", "Failed to fetch ngumbato record", err,
			zap.Uint64("ngumbato_id", id))
		return nil, "", err
	}

	paymentDate, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		n.fail(ctx, span, start, "record_payment", "invalid_date", "Invalid payment date", err,
			zap.String("payment_date", req.PaymentDate))
		return nil, "", err
	}

	updated, engineErr := finance.RecordPayment(*record, req.Amount, req.FineAmount, paymentDate)
	warning := ""
	if engineErr != nil {
		if !errors.Is(engineErr, finance.ErrNoEligibleInstallment) {
			n.fail(ctx, span, start, "record_payment", "invalid_payment", "Payment rejected", engineErr,
				zap.Uint64("ngumbato_id", id),
				zap.Float64("amount", req.Amount))
			return nil, "", engineErr
		}
		warning = engineErr.Error()
	}

	if err := n.ngumbatoRepository.SaveRecord(ctx, &updated); err != nil {
		n.fail(ctx, span, start, "record_payment", "save_failed", "Failed to persist payment", err,
			zap.Uint64("ngumbato_id", id))
		return nil, "", err
	}

	n.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", "ngumbato"),
	))
	if req.FineAmount > 0 {
		n.finesCharged.Add(ctx, req.FineAmount, metric.WithAttributes(
			attribute.String("service", "ngumbato"),
			attribute.String("source", "payment"),
		))
	}

	n.succeed(ctx, span, start, "record_payment", "Ngumbato payment recorded",
		zap.Uint64("ngumbato_id", id),
		zap.Float64("amount", req.Amount),
		zap.Float64("remaining_balance", updated.RemainingBalance),
		zap.String("status", string(updated.Status)),
	)

	return &updated, warning, nil
}

// AddFine implements service.NgumbatoServices.
func (n *ngumbatoService) AddFine(ctx context.Context, id uint64, req dto.NgumbatoFineRequest) (*domain.NgumbatoRecord, string, error) {
	ctx, span := n.tracer.Start(ctx, "service.AddNgumbatoFine")
	defer span.End()
	start := time.Now()

	n.begin(ctx, "add_fine")
	span.SetAttributes(
		attribute.Int64("ngumbato.id", int64(id)),
		attribute.Float64("fine.amount", req.Amount),
	)

	record, err := n.findRecord(ctx, id)
	if err != nil {
		n.fail(ctx, span, start, "add_fine", "lookup_failed", "Failed to fetch ngumbato record", err,
			zap.Uint64("ngumbato_id", id))
		return nil, "", err
	}

	applyDate, err := time.Parse("2006-01-02", req.ApplyDate)
	if err != nil {
		n.fail(ctx, span, start, "add_fine", "invalid_date", "Invalid apply date", err,
			zap.String("apply_date", req.ApplyDate))
		return nil, "", err
	}

	updated, engineErr := finance.AddManualFine(*record, req.Amount, req.Reason, applyDate)
	warning := ""
	if engineErr != nil {
		if !errors.Is(engineErr, finance.ErrNoEligibleInstallment) {
			n.fail(ctx, span, start, "add_fine", "invalid_fine", "Manual fine rejected", engineErr,
				zap.Uint64("ngumbato_id", id),
				zap.Float64("amount", req.Amount))
			return nil, "", engineErr
		}
		warning = engineErr.Error()
	}

	if err := n.ngumbatoRepository.SaveRecord(ctx, &updated); err != nil {
		n.fail(ctx, span, start, "add_fine", "save_failed", "Failed to persist fine", err,
			zap.Uint64("ngumbato_id", id))
		return nil, "", err
	}

	n.finesCharged.Add(ctx, req.Amount, metric.WithAttributes(
		attribute.String("service", "ngumbato"),
		attribute.String("source", "manual"),
	))

	n.succeed(ctx, span, start, "add_fine", "Manual fine recorded",
		zap.Uint64("ngumbato_id", id),
		zap.Float64("amount", req.Amount),
		zap.String("reason", req.Reason),
	)

	return &updated, warning, nil
}

// Summary implements service.NgumbatoServices.
func (n *ngumbatoService) Summary(ctx context.Context, id uint64) (*dto.NgumbatoSummaryResponse, error) {
	ctx, span := n.tracer.Start(ctx, "service.NgumbatoSummary")
	defer span.End()
	start := time.Now()

	n.begin(ctx, "summary")
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(id)))

	record, err := n.findRecord(ctx, id)
	if err != nil {
		n.fail(ctx, span, start, "summary", "lookup_failed", "Failed to fetch ngumbato record", err,
			zap.Uint64("ngumbato_id", id))
		return nil, err
	}

	n.succeed(ctx, span, start, "summary", "Ngumbato summary computed",
		zap.Uint64("ngumbato_id", id))

	return &dto.NgumbatoSummaryResponse{
		ReferenceNumber:    record.ReferenceNumber,
		Status:             string(record.Status),
		TotalPaid:          record.TotalPaid,
		RemainingBalance:   record.RemainingBalance,
		Fines:              record.Fines,
		OverduePayments:    finance.OverduePaymentsCount(*record),
		ProgressPercentage: finance.ProgressPercentage(*record),
	}, nil
}

// sweepChanged reports whether a sweep pass produced anything worth writing.
func sweepChanged(record domain.NgumbatoRecord, result finance.LatenessResult) bool {
	if result.HasNewOverdue || result.TotalFines != record.Fines {
		return true
	}
	for i := range result.Installments {
		if result.Installments[i].DaysLate != record.Installments[i].DaysLate {
			return true
		}
	}
	return false
}

// SweepLateness implements service.NgumbatoServices. One pass over every
// active record with a single shared clock; each changed record is saved in
// its own transaction so one bad row cannot poison the sweep.
func (n *ngumbatoService) SweepLateness(ctx context.Context, now time.Time) (int, error) {
	ctx, span := n.tracer.Start(ctx, "service.SweepLateness")
	defer span.End()
	start := time.Now()

	n.begin(ctx, "sweep_lateness")
	span.SetAttributes(attribute.String("sweep.clock", now.Format(time.RFC3339)))

	records, err := n.ngumbatoRepository.FindActive(ctx)
	if err != nil {
		n.fail(ctx, span, start, "sweep_lateness", "repository_error", "Failed to load active records", err)
		return 0, err
	}

	changed := 0
	for i := range records {
		result := finance.EvaluateLateness(records[i], now)
		if !sweepChanged(records[i], result) {
			continue
		}

		updated := finance.ApplyLateness(records[i], result)
		if err := n.ngumbatoRepository.SaveRecord(ctx, &updated); err != nil {
			n.log.Error("Failed to persist sweep result",
				zap.Uint64("ngumbato_id", records[i].ID),
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.Error(err),
			)
			continue
		}

		if delta := result.TotalFines - records[i].Fines; delta > 0 {
			n.finesCharged.Add(ctx, delta, metric.WithAttributes(
				attribute.String("service", "ngumbato"),
				attribute.String("source", "sweep"),
			))
		}
		if updated.Status == domain.NgumbatoDefaulted && records[i].Status != domain.NgumbatoDefaulted {
			n.log.Warn("Ngumbato record defaulted",
				zap.Uint64("ngumbato_id", updated.ID),
				zap.String("reference", updated.ReferenceNumber),
				zap.Float64("fines", updated.Fines),
			)
		}
		changed++
	}

	n.sweepsRun.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", "ngumbato"),
	))

	n.succeed(ctx, span, start, "sweep_lateness", "Lateness sweep finished",
		zap.Int("records_scanned", len(records)),
		zap.Int("records_changed", changed),
	)
	span.SetAttributes(
		attribute.Int("sweep.scanned", len(records)),
		attribute.Int("sweep.changed", changed),
	)

	return changed, nil
}
