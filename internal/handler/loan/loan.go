package loanhandler

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

type LoanHandler struct {
	loanService service.LoanServices
	validate    *validator.Validate

	meter           metric.Meter
	tracer          trace.Tracer
	log             *zap.Logger
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
}

func NewLoanHandler(
	loanService service.LoanServices,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) *LoanHandler {
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

	return &LoanHandler{
		loanService:     loanService,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		meter:           meter,
		tracer:          tracer,
		log:             log,
		requestCount:    requestCount,
		requestDuration: requestDuration,
		errorCount:      errorCount,
	}
}

func (h *LoanHandler) startRequest(c *fiber.Ctx, name string) (context.Context, trace.Span, time.Time) {
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

func (h *LoanHandler) recordError(
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

func (h *LoanHandler) recordSuccess(
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

// mapLoanError translates service and engine errors to HTTP statuses. Bad
// terms are unprocessable, missing request fields are bad requests, lifecycle
// violations are conflicts.
func (h *LoanHandler) mapLoanError(
	ctx context.Context, span trace.Span, c *fiber.Ctx, start time.Time, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, common.ErrLoanNotFound):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusNotFound, "loan_not_found", "Loan application not found", fields...)
	case errors.Is(err, common.ErrMemberNotFound):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusNotFound, "member_not_found", "Member not found", fields...)
	case errors.Is(err, common.ErrMemberNotVerified):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusUnprocessableEntity, "member_not_verified", "Member is not verified", fields...)
	case errors.Is(err, common.ErrInvalidTransition):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusConflict, "invalid_transition", "Loan status transition not allowed", fields...)
	case errors.Is(err, finance.ErrAmountOutOfRange):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusUnprocessableEntity, "amount_out_of_range", "Loan amount exceeds the group maximum", fields...)
	case errors.Is(err, finance.ErrTermOutOfRange):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusUnprocessableEntity, "term_out_of_range", "Loan term exceeds the group maximum", fields...)
	case errors.Is(err, finance.ErrInvalidLoanTerms):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusUnprocessableEntity, "invalid_terms", "Loan terms are invalid", fields...)
	case errors.Is(err, finance.ErrMissingRescheduleReason):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "missing_reason", "A reschedule requires a reason", fields...)
	case errors.Is(err, finance.ErrNoRescheduleChange):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "no_adjustment", "A reschedule must change the term or the installment amount", fields...)
	default:
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusInternalServerError, "service_error", "An internal server error occurred", append(fields, zap.Error(err))...)
	}
}

func parseLoanID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("loanId"), 10, 64)
}

func (h *LoanHandler) Quote(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.QuoteLoan")
	defer span.End()

	var req dto.LoanQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Float64("loan.principal", req.Principal),
		attribute.Int("loan.term_months", req.TermMonths),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.Quote(serviceCtx, req)
	if err != nil {
		return h.mapLoanError(ctx, span, c, start, err,
			zap.Float64("principal", req.Principal),
			zap.Int("term_months", req.TermMonths))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Float64("principal", req.Principal),
		zap.Float64("monthly_installment", res.MonthlyInstallment),
	)
}

func (h *LoanHandler) Apply(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.ApplyLoan")
	defer span.End()

	var req dto.LoanApplyRequest
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
		attribute.Float64("loan.amount", req.Amount),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	loan, err := h.loanService.Apply(serviceCtx, req)
	if err != nil {
		return h.mapLoanError(ctx, span, c, start, err,
			zap.Uint64("member_id", req.MemberID),
			zap.Float64("amount", req.Amount))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusCreated, loan,
		zap.Uint64("loan_id", loan.ID),
		zap.String("contract_number", loan.ContractNumber),
	)
}

func (h *LoanHandler) List(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.ListLoans")
	defer span.End()

	params := dto.ParamsFromQuery(c)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.ListLoans(serviceCtx, params)
	if err != nil {
		return h.mapLoanError(ctx, span, c, start, err)
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Int64("total", res.Total))
}

func (h *LoanHandler) Get(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.GetLoan")
	defer span.End()

	loanID, err := parseLoanID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	loan, err := h.loanService.GetLoan(serviceCtx, loanID)
	if err != nil {
		return h.mapLoanError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, loan,
		zap.Uint64("loan_id", loanID))
}

// statusChange wraps the four one-shot lifecycle endpoints that share a shape.
func (h *LoanHandler) statusChange(c *fiber.Ctx, name string, apply func(ctx context.Context, loanID uint64) error) error {
	ctx, span, start := h.startRequest(c, name)
	defer span.End()

	loanID, err := parseLoanID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := apply(serviceCtx, loanID); err != nil {
		return h.mapLoanError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK,
		fiber.Map{"loan_id": loanID}, zap.Uint64("loan_id", loanID))
}

func (h *LoanHandler) Approve(c *fiber.Ctx) error {
	return h.statusChange(c, "handler.ApproveLoan", h.loanService.Approve)
}

func (h *LoanHandler) Reject(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.RejectLoan")
	defer span.End()

	loanID, err := parseLoanID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	// The reason body is optional, but a body that is present must parse.
	var body struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
		}
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.loanService.Reject(serviceCtx, loanID, body.Reason); err != nil {
		return h.mapLoanError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK,
		fiber.Map{"loan_id": loanID}, zap.Uint64("loan_id", loanID))
}

func (h *LoanHandler) Disburse(c *fiber.Ctx) error {
	return h.statusChange(c, "handler.DisburseLoan", func(ctx context.Context, loanID uint64) error {
		return h.loanService.Disburse(ctx, loanID, time.Now().UTC())
	})
}

func (h *LoanHandler) Complete(c *fiber.Ctx) error {
	return h.statusChange(c, "handler.CompleteLoan", h.loanService.Complete)
}

func (h *LoanHandler) Reschedule(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.RescheduleLoan")
	defer span.End()

	loanID, err := parseLoanID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	var req dto.LoanRescheduleRequest
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

	res, err := h.loanService.Reschedule(serviceCtx, loanID, req.ToFinanceRequest())
	if err != nil {
		return h.mapLoanError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("loan_id", loanID),
		zap.Float64("monthly_installment", res.MonthlyInstallment),
		zap.Bool("large_adjustment", res.Warning != ""),
	)
}
