package privatesrv

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
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

type privateService struct {
	db               *gorm.DB
	memberRepository repository.MemberRepository

	jwtSecret string

	meter          metric.Meter
	tracer         trace.Tracer
	log            *zap.Logger
	loginCount     metric.Int64Counter
	loginFailCount metric.Int64Counter
}

func NewPrivateService(
	db *gorm.DB,
	jwtSecret string,
	memberRepository repository.MemberRepository,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) service.PrivateService {
	loginCount, _ := meter.Int64Counter(
		"service.logins.count",
		metric.WithDescription("Number of successful logins"),
		metric.WithUnit("{login}"),
	)

	loginFailCount, _ := meter.Int64Counter(
		"service.logins.failed",
		metric.WithDescription("Number of failed login attempts"),
		metric.WithUnit("{login}"),
	)

	return &privateService{
		db:               db,
		memberRepository: memberRepository,

		jwtSecret: jwtSecret,

		meter:          meter,
		tracer:         tracer,
		log:            log,
		loginCount:     loginCount,
		loginFailCount: loginFailCount,
	}
}

// Login implements service.PrivateService. A wrong national ID and a wrong
// password fail identically so the endpoint leaks nothing about membership.
func (p *privateService) Login(ctx context.Context, data dto.LoginRequest) (*dto.LoginResponse, error) {
	ctx, span := p.tracer.Start(ctx, "service.Login")
	defer span.End()

	member, err := p.memberRepository.FindByNationalID(ctx, data.NationalID)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to fetch member")
		span.RecordError(err)
		return nil, err
	}
	if member == nil || !password.CheckPasswordHash(data.Password, member.Password) {
		p.loginFailCount.Add(ctx, 1)
		p.log.Warn("Login rejected",
			zap.String("trace_id", span.SpanContext().TraceID().String()),
		)
		return nil, common.ErrInvalidCredentials
	}

	claims := &domain.JwtCustomClaims{
		UserID: member.ID,
		Role:   member.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
			Issuer:    "chamaflow",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(p.jwtSecret))
	if err != nil {
		span.SetStatus(codes.Error, "Failed to sign token")
		span.RecordError(err)
		return nil, err
	}

	p.loginCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", string(member.Role)),
	))
	p.log.Info("Member logged in",
		zap.Uint64("member_id", member.ID),
		zap.String("role", string(member.Role)),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	span.SetStatus(codes.Ok, "Login succeeded")

	return &dto.LoginResponse{Token: signedToken}, nil
}
