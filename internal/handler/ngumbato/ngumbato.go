package ngumbatohandler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/wambuik/chamaflow/internal/dto"
	"github.com/wambuik/chamaflow/internal/finance"
	"github.com/wambuik/chamaflow/internal/service"
	"github.com/wambuik/chamaflow/pkg/common"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type NgumbatoHandler struct {
	ngumbatoService service.NgumbatoServices
	validate        *validator.Validate

	meter           metric.Meter
	tracer          trace.Tracer
	log             *zap.Logger
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
}

func NewNgumbatoHandler(
	ngumbatoService service.NgumbatoServices,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) *NgumbatoHandler {
	requestCount, err := meter.Int64Counter(
		"api.request.count",
		metric.WithDescription("Number of API requests received"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create request count metric", zap.Error(err))
	}

	requestDuration, err := meter.Float64Histogram(
		"api.request.duration",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create request duration metric", zap.Error(err))
	}

	errorCount, err := meter.Int64Counter(
		"api.error.count",
		metric.WithDescription("Number of API errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create error count metric", zap.Error(err))
	}

	return &NgumbatoHandler{
		ngumbatoService: ngumbatoService,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		meter:           meter,
		tracer:          tracer,
		log:             log,
		requestCount:    requestCount,
		requestDuration: requestDuration,
		errorCount:      errorCount,
	}
}

func (h *NgumbatoHandler) startRequest(c *fiber.Ctx, name string) (context.Context, trace.Span, time.Time) {
	ctx := c.UserContext()
	ctx, span := h.tracer.Start(ctx, name)

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	h.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	return ctx, span, time.Now()
}

func (h *NgumbatoHandler) recordError(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, err error, statusCode int, errorType, message string, fields ...zap.Field) error {
	h.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.String("error_type", errorType),
		attribute.Int("status_code", statusCode),
	))

	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	h.requestDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.Int("status_code", statusCode),
	))

	span.SetAttributes(
		attribute.String("error.type", errorType),
		attribute.String("error.message", err.Error()),
		attribute.Int("http.status_code", statusCode),
	)
	span.RecordError(err)

	logFields := append([]zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Int("status_code", statusCode),
		zap.String("error_type", errorType),
		zap.Float64("duration_ms", duration),
	}, fields...)

	h.log.Error(message, logFields...)

	return c.Status(statusCode).JSON(fiber.Map{"error": message})
}

func (h *NgumbatoHandler) recordSuccess(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, statusCode int, responseData interface{}, fields ...zap.Field) error {
	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	h.requestDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.Int("status_code", statusCode),
	))

	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Float64("request.duration_ms", duration),
	)

	logFields := append([]zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Int("status_code", statusCode),
		zap.Float64("duration_ms", duration),
	}, fields...)

	h.log.Info("Request completed successfully", logFields...)

	return c.Status(statusCode).JSON(responseData)
}

func (h *NgumbatoHandler) mapNgumbatoError(
	ctx context.Context, span trace.Span, c *fiber.Ctx, start time.Time, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, common.ErrNgumbatoNotFound):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusNotFound, "ngumbato_not_found", "Ngumbato record not found", fields...)
	case errors.Is(err, common.ErrMemberNotFound):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusNotFound, "member_not_found", "Member not found", fields...)
	case errors.Is(err, common.ErrMemberNotVerified):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusUnprocessableEntity, "member_not_verified", "Member is not verified", fields...)
	case errors.Is(err, finance.ErrInvalidNgumbatoTerms):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusUnprocessableEntity, "invalid_terms", "Ngumbato principal and duration must be positive", fields...)
	case errors.Is(err, finance.ErrInvalidPaymentAmount):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "invalid_payment", "Payment amount cannot be negative", fields...)
	case errors.Is(err, finance.ErrMissingFineReason):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "missing_reason", "A manual fine requires a reason", fields...)
	case errors.Is(err, finance.ErrInvalidFineAmount):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "invalid_fine", "Fine amount must be positive", fields...)
	default:
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusInternalServerError, "service_error", "An internal server error occurred", append(fields, zap.Error(err))...)
	}
}

func parseRecordID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}

func (h *NgumbatoHandler) Create(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.CreateNgumbato")
	defer span.End()

	var req dto.CreateNgumbatoRequest
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Int64("member.id", int64(req.MemberID)),
		attribute.Float64("ngumbato.principle", req.PrincipleAmount),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	record, err := h.ngumbatoService.Create(serviceCtx, req)
	if err != nil {
		return h.mapNgumbatoError(ctx, span, c, start, err,
			zap.Uint64("member_id", req.MemberID),
			zap.Float64("principle", req.PrincipleAmount))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusCreated, record,
		zap.Uint64("ngumbato_id", record.ID),
		zap.String("reference", record.ReferenceNumber),
	)
}

func (h *NgumbatoHandler) Get(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.GetNgumbato")
	defer span.End()

	id, err := parseRecordID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid record ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(id)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	record, err := h.ngumbatoService.Get(serviceCtx, id)
	if err != nil {
		return h.mapNgumbatoError(ctx, span, c, start, err, zap.Uint64("ngumbato_id", id))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, record,
		zap.Uint64("ngumbato_id", id))
}

func (h *NgumbatoHandler) RecordPayment(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.RecordNgumbatoPayment")
	defer span.End()

	id, err := parseRecordID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid record ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(id)))

	var req dto.NgumbatoPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	record, warning, err := h.ngumbatoService.RecordPayment(serviceCtx, id, req)
	if err != nil {
		return h.mapNgumbatoError(ctx, span, c, start, err,
			zap.Uint64("ngumbato_id", id),
			zap.Float64("amount", req.Amount))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK,
		dto.PaymentResponse{Record: record, Warning: warning},
		zap.Uint64("ngumbato_id", id),
		zap.Float64("amount", req.Amount),
		zap.String("status", string(record.Status)),
	)
}

func (h *NgumbatoHandler) AddFine(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.AddNgumbatoFine")
	defer span.End()

	id, err := parseRecordID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid record ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(id)))

	var req dto.NgumbatoFineRequest
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	record, warning, err := h.ngumbatoService.AddFine(serviceCtx, id, req)
	if err != nil {
		return h.mapNgumbatoError(ctx, span, c, start, err,
			zap.Uint64("ngumbato_id", id),
			zap.Float64("amount", req.Amount))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK,
		dto.PaymentResponse{Record: record, Warning: warning},
		zap.Uint64("ngumbato_id", id),
		zap.Float64("amount", req.Amount),
	)
}

func (h *NgumbatoHandler) Summary(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.NgumbatoSummary")
	defer span.End()

	id, err := parseRecordID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid record ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("ngumbato.id", int64(id)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	summary, err := h.ngumbatoService.Summary(serviceCtx, id)
	if err != nil {
		return h.mapNgumbatoError(ctx, span, c, start, err, zap.Uint64("ngumbato_id", id))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, summary,
		zap.Uint64("ngumbato_id", id),
		zap.Float64("progress", summary.ProgressPercentage),
	)
}
