package memberhandler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/wambuik/chamaflow/internal/dto"
	"github.com/wambuik/chamaflow/internal/service"
	"github.com/wambuik/chamaflow/middleware"
	"github.com/wambuik/chamaflow/pkg/common"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type MemberHandler struct {
	memberService   service.MemberServices
	loanService     service.LoanServices
	ngumbatoService service.NgumbatoServices
	validate        *validator.Validate

	meter           metric.Meter
	tracer          trace.Tracer
	log             *zap.Logger
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
}

func NewMemberHandler(
	memberService service.MemberServices,
	loanService service.LoanServices,
	ngumbatoService service.NgumbatoServices,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) *MemberHandler {
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

	return &MemberHandler{
		memberService:   memberService,
		loanService:     loanService,
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

func (h *MemberHandler) startRequest(c *fiber.Ctx, name string) (context.Context, trace.Span, time.Time) {
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

func (h *MemberHandler) recordError(
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

func (h *MemberHandler) recordSuccess(
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

func (h *MemberHandler) mapMemberError(
	ctx context.Context, span trace.Span, c *fiber.Ctx, start time.Time, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, common.ErrMemberNotFound):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusNotFound, "member_not_found", "Member not found", fields...)
	case errors.Is(err, common.ErrNationalIDExists):
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusConflict, "duplicate_member", "National ID is already registered", fields...)
	default:
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusInternalServerError, "service_error", "An internal server error occurred", append(fields, zap.Error(err))...)
	}
}

// claimsOrError pulls the JWT claims the auth middleware stashed in locals.
func (h *MemberHandler) claimsOrError(
	ctx context.Context, span trace.Span, c *fiber.Ctx, start time.Time) (uint64, error) {
	claims, err := middleware.GetClaimsFromLocals(c)
	if err != nil {
		return 0, h.recordError(ctx, span, c, start, err,
			fiber.StatusUnauthorized, "claims_missing", "Could not parse user claims", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("member.id", int64(claims.UserID)))
	return claims.UserID, nil
}

func parseMemberID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("memberId"), 10, 64)
}

func (h *MemberHandler) Register(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.RegisterMember")
	defer span.End()

	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}

	idPhoto, err := c.FormFile("id_photo")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "missing_file", "ID photo is required", zap.Error(err))
	}
	selfie, err := c.FormFile("selfie_photo")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "missing_file", "Selfie photo is required", zap.Error(err))
	}
	req.IDPhoto = idPhoto
	req.SelfiePhoto = selfie

	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	span.SetAttributes(attribute.String("member.national_id", req.NationalID))

	serviceCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	member, err := h.memberService.Register(serviceCtx, req)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err,
			zap.String("national_id", req.NationalID))
	}

	member.Password = ""

	return h.recordSuccess(ctx, span, c, start, fiber.StatusCreated, member,
		zap.Uint64("member_id", member.ID),
		zap.String("full_name", member.FullName),
	)
}

func (h *MemberHandler) GetMyProfile(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.GetMyProfile")
	defer span.End()

	memberID, errResp := h.claimsOrError(ctx, span, c, start)
	if errResp != nil {
		return errResp
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	member, err := h.memberService.GetProfile(serviceCtx, memberID)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	member.Password = ""

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, member,
		zap.Uint64("member_id", memberID))
}

func (h *MemberHandler) UpdateMyProfile(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.UpdateMyProfile")
	defer span.End()

	memberID, errResp := h.claimsOrError(ctx, span, c, start)
	if errResp != nil {
		return errResp
	}

	var req dto.UpdateProfileRequest
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

	if err := h.memberService.UpdateProfile(serviceCtx, memberID, dto.UpdateToEntity(req)); err != nil {
		return h.mapMemberError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK,
		fiber.Map{"member_id": memberID}, zap.Uint64("member_id", memberID))
}

func (h *MemberHandler) GetMyLoans(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.GetMyLoans")
	defer span.End()

	memberID, errResp := h.claimsOrError(ctx, span, c, start)
	if errResp != nil {
		return errResp
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	loans, err := h.loanService.GetMemberLoans(serviceCtx, memberID)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, loans,
		zap.Uint64("member_id", memberID),
		zap.Int("loans_count", len(loans)))
}

func (h *MemberHandler) GetMyNgumbato(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.GetMyNgumbato")
	defer span.End()

	memberID, errResp := h.claimsOrError(ctx, span, c, start)
	if errResp != nil {
		return errResp
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	records, err := h.ngumbatoService.GetMemberRecords(serviceCtx, memberID)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, records,
		zap.Uint64("member_id", memberID),
		zap.Int("records_count", len(records)))
}

func (h *MemberHandler) GetMyStatement(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.GetMyStatement")
	defer span.End()

	memberID, errResp := h.claimsOrError(ctx, span, c, start)
	if errResp != nil {
		return errResp
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	statement, err := h.memberService.GetStatement(serviceCtx, memberID)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, statement,
		zap.Uint64("member_id", memberID))
}

func (h *MemberHandler) ListMembers(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.ListMembers")
	defer span.End()

	params := dto.ParamsFromQuery(c)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.memberService.ListMembers(serviceCtx, params)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err)
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Int64("total", res.Total))
}

func (h *MemberHandler) GetMember(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.GetMember")
	defer span.End()

	memberID, err := parseMemberID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid member ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	member, err := h.memberService.GetProfile(serviceCtx, memberID)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	member.Password = ""

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, member,
		zap.Uint64("member_id", memberID))
}

func (h *MemberHandler) VerifyMember(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.VerifyMember")
	defer span.End()

	memberID, err := parseMemberID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid member ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	var req dto.VerificationRequest
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

	if err := h.memberService.VerifyMember(serviceCtx, memberID, req); err != nil {
		return h.mapMemberError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK,
		fiber.Map{"member_id": memberID, "status": req.Status},
		zap.Uint64("member_id", memberID),
		zap.String("verification_status", string(req.Status)),
	)
}

func (h *MemberHandler) RecordContribution(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.RecordContribution")
	defer span.End()

	memberID, err := parseMemberID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid member ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	var req dto.ContributionRequest
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

	contribution, err := h.memberService.RecordContribution(serviceCtx, memberID, req)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err,
			zap.Uint64("member_id", memberID),
			zap.Float64("amount", req.Amount))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusCreated, contribution,
		zap.Uint64("member_id", memberID),
		zap.Float64("amount", req.Amount),
		zap.String("reference", contribution.Reference),
	)
}

func (h *MemberHandler) GetContributions(c *fiber.Ctx) error {
	ctx, span, start := h.startRequest(c, "handler.GetContributions")
	defer span.End()

	memberID, err := parseMemberID(c)
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid member ID", zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	contributions, err := h.memberService.GetContributions(serviceCtx, memberID)
	if err != nil {
		return h.mapMemberError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, contributions,
		zap.Uint64("member_id", memberID),
		zap.Int("contributions_count", len(contributions)))
}
