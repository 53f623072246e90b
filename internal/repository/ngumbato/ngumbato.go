package ngumbatorepo

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
	"gorm.io/gorm/clause"
)

type ngumbatoRepository struct {
	db     *gorm.DB
	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger

	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

func NewNgumbatoRepository(
	db *gorm.DB,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) repository.NgumbatoRepository {
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

	return &ngumbatoRepository{
		db:            db,
		meter:         meter,
		tracer:        tracer,
		log:           log,
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}
}

func (n *ngumbatoRepository) recordQuery(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	duration := float64(time.Since(start).Milliseconds())
	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, operation+" failed")
		span.RecordError(err)
		n.errorCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("table", "ngumbato_records"),
		))
	} else {
		span.SetStatus(codes.Ok, operation+" completed")
	}
	n.queryDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("table", "ngumbato_records"),
		attribute.String("status", status),
	))
}

// CreateRecord implements repository.NgumbatoRepository. The record and its
// installment schedule are inserted in one transaction.
func (n *ngumbatoRepository) CreateRecord(ctx context.Context, record *domain.NgumbatoRecord) error {
	ctx, span := n.tracer.Start(ctx, "repository.CreateNgumbatoRecord")
	defer span.End()
	start := time.Now()

	n.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "insert"),
		attribute.String("table", "ngumbato_records"),
	))
	span.SetAttributes(
		attribute.String("ngumbato.reference", record.ReferenceNumber),
		attribute.Int("ngumbato.installments", len(record.Installments)),
	)

	row := model.NgumbatoFromEntity(record)
	err := n.db.WithContext(ctx).Create(&row).Error
	n.recordQuery(ctx, span, "insert", start, err)
	if err != nil {
		n.log.Error("Error creating ngumbato record",
			zap.String("reference", record.ReferenceNumber),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return err
	}

	record.ID = row.ID
	record.CreatedAt = row.CreatedAt
	for i := range row.Installments {
		record.Installments[i].ID = row.Installments[i].ID
		record.Installments[i].NgumbatoID = row.ID
	}

	n.log.Info("Ngumbato record created",
		zap.Uint64("ngumbato_id", row.ID),
		zap.String("reference", record.ReferenceNumber),
		zap.Float64("principle", record.PrincipleAmount),
	)

	return nil
}

// FindByID implements repository.NgumbatoRepository. Installments come back
// ordered by schedule position.
func (n *ngumbatoRepository) FindByID(ctx context.Context, id uint64) (*domain.NgumbatoRecord, error) {
	ctx, span := n.tracer.Start(ctx, "repository.FindNgumbatoByID")
	defer span.End()
	start := time.Now()

	n.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "select"),
		attribute.String("table", "ngumbato_records"),
	))
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(id)))

	var row model.NgumbatoRecord
	err := n.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		n.recordQuery(ctx, span, "select", start, nil)
		return nil, nil
	}
	n.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		n.log.Error("Error finding ngumbato record",
			zap.Uint64("ngumbato_id", id),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return nil, err
	}

	return model.NgumbatoToEntity(row), nil
}

// FindByMemberID implements repository.NgumbatoRepository.
func (n *ngumbatoRepository) FindByMemberID(ctx context.Context, memberID uint64) ([]domain.NgumbatoRecord, error) {
	ctx, span := n.tracer.Start(ctx, "repository.FindNgumbatosByMemberID")
	defer span.End()
	start := time.Now()

	var rows []model.NgumbatoRecord
	err := n.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&rows).Error
	n.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		return nil, err
	}

	return model.NgumbatosToEntity(rows), nil
}

// FindActive implements repository.NgumbatoRepository. Used by the lateness
// sweep, so it loads installments eagerly.
func (n *ngumbatoRepository) FindActive(ctx context.Context) ([]domain.NgumbatoRecord, error) {
	ctx, span := n.tracer.Start(ctx, "repository.FindActiveNgumbatos")
	defer span.End()
	start := time.Now()

	var rows []model.NgumbatoRecord
	err := n.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("status = ?", domain.NgumbatoActive).
		Find(&rows).Error
	n.recordQuery(ctx, span, "select", start, err)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.retrieved", len(rows)))

	return model.NgumbatosToEntity(rows), nil
}

// SaveRecord implements repository.NgumbatoRepository. The record row and its
// installments are written in one transaction; a payment or fine either lands
// entirely or not at all.
func (n *ngumbatoRepository) SaveRecord(ctx context.Context, record *domain.NgumbatoRecord) error {
	ctx, span := n.tracer.Start(ctx, "repository.SaveNgumbatoRecord")
	defer span.End()
	start := time.Now()

	n.queryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "update"),
		attribute.String("table", "ngumbato_records"),
	))
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(record.ID)))

	row := model.NgumbatoFromEntity(record)
	err := n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.NgumbatoRecord{}).Where("id = ?", row.ID).Updates(map[string]any{
			"status":            row.Status,
			"total_paid":        row.TotalPaid,
			"remaining_balance": row.RemainingBalance,
			"fines":             row.Fines,
		}).Error; err != nil {
			return err
		}

		for i := range row.Installments {
			inst := &row.Installments[i]
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"status", "paid_date", "fine_amount", "fine_paid", "days_late",
				}),
			}).Create(inst).Error; err != nil {
				return err
			}
		}

		return nil
	})
	n.recordQuery(ctx, span, "update", start, err)
	if err != nil {
		n.log.Error("Error saving ngumbato record",
			zap.Uint64("ngumbato_id", record.ID),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		return err
	}

	return nil
}
