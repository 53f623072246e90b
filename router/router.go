package router

import (
	"errors"
	"time"

	"github.com/wambuik/chamaflow/config"
	mysqldb "github.com/wambuik/chamaflow/infra/mysql"
	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/middleware"
	ratelimiter "github.com/wambuik/chamaflow/pkg/rate-limiter"
	"github.com/wambuik/chamaflow/pkg/telemetry"
	"github.com/wambuik/chamaflow/presenter"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewRouter(
	presenter presenter.Presenter,
	db *gorm.DB,
	tel *telemetry.OpenTelemetry,
	cfg *config.Config,
	limiter *ratelimiter.RateLimiter,
	store *session.Store,
) *fiber.App {

	jwtAuth := middleware.NewJWTAuthMiddleware(cfg.JWT_SECRET_KEY)
	customCSRF := middleware.NewCustomCSRFMiddleware(store)
	requireTreasurer := middleware.RequireRole(domain.TreasurerRole)
	requireMember := middleware.RequireRole(domain.MemberRole, domain.TreasurerRole)

	app := fiber.New(fiber.Config{
		BodyLimit:    10 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: ErrorCustomHandler(tel.Log),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:5000",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-CSRF-Token",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${ip} ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(otelfiber.Middleware(
		otelfiber.WithTracerProvider(tel.TracerProvider),
		otelfiber.WithPropagators(otel.GetTextMapPropagator()),
	))

	if cfg.REQUESTS_METRIC {
		zap.L().Info("Enabling HTTP request metrics middleware")
		app.Use(middleware.NewOtelMiddleware().Handle())
	} else {
		zap.L().Info("HTTP request metrics middleware is disabled")
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := mysqldb.Ping(db, c.Context()); err != nil {
			zap.L().Error("Health check failed: database ping error", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":      "healthy",
			"service":     cfg.SERVICE_NAME,
			"version":     cfg.SERVICE_VERSION,
			"environment": cfg.ENVIRONMENT,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := app.Group("/api/v1")

	api.Use(limiter.RateLimitMiddleware())

	authAPI := api.Group("/auth")
	{
		authAPI.Post("/register", presenter.MemberPresenter.Register)
		authAPI.Post("/login", presenter.PrivatePresenter.Login)
		authAPI.Post("/logout", jwtAuth, presenter.PrivatePresenter.Logout)
		authAPI.Get("/csrf-token", func(c *fiber.Ctx) error {
			sess, err := store.Get(c)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Session error"})
			}

			token := sess.Get("csrf_token")
			if token == nil {
				newToken, err := middleware.GenerateCSRFToken()
				if err != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate CSRF token"})
				}
				sess.Set("csrf_token", newToken)
				sess.Save()
				token = newToken
			}
			return c.JSON(fiber.Map{"csrf_token": token})
		})
	}

	meAPI := api.Group("/me", jwtAuth, requireMember)
	{
		meAPI.Get("/profile", presenter.MemberPresenter.GetMyProfile)
		meAPI.Put("/profile", customCSRF, presenter.MemberPresenter.UpdateMyProfile)
		meAPI.Get("/loans", presenter.MemberPresenter.GetMyLoans)
		meAPI.Get("/ngumbato", presenter.MemberPresenter.GetMyNgumbato)
		meAPI.Get("/statement", presenter.MemberPresenter.GetMyStatement)
	}

	treasurerAPI := api.Group("/treasurer", jwtAuth, customCSRF, requireTreasurer)

	treasurerMembersAPI := treasurerAPI.Group("/members")
	{
		treasurerMembersAPI.Get("/", presenter.MemberPresenter.ListMembers)
		treasurerMembersAPI.Get("/:memberId", presenter.MemberPresenter.GetMember)
		treasurerMembersAPI.Post("/:memberId/verify", presenter.MemberPresenter.VerifyMember)
		treasurerMembersAPI.Post("/:memberId/contributions", presenter.MemberPresenter.RecordContribution)
		treasurerMembersAPI.Get("/:memberId/contributions", presenter.MemberPresenter.GetContributions)
	}

	treasurerLoansAPI := treasurerAPI.Group("/loans")
	{
		treasurerLoansAPI.Post("/quote", presenter.LoanPresenter.Quote)
		treasurerLoansAPI.Post("/", presenter.LoanPresenter.Apply)
		treasurerLoansAPI.Get("/", presenter.LoanPresenter.List)
		treasurerLoansAPI.Get("/:loanId", presenter.LoanPresenter.Get)
		treasurerLoansAPI.Post("/:loanId/approve", presenter.LoanPresenter.Approve)
		treasurerLoansAPI.Post("/:loanId/reject", presenter.LoanPresenter.Reject)
		treasurerLoansAPI.Post("/:loanId/disburse", presenter.LoanPresenter.Disburse)
		treasurerLoansAPI.Post("/:loanId/complete", presenter.LoanPresenter.Complete)
		treasurerLoansAPI.Post("/:loanId/reschedule", presenter.LoanPresenter.Reschedule)
	}

	treasurerNgumbatoAPI := treasurerAPI.Group("/ngumbato")
	{
		treasurerNgumbatoAPI.Post("/", presenter.NgumbatoPresenter.Create)
		treasurerNgumbatoAPI.Get("/:id", presenter.NgumbatoPresenter.Get)
		treasurerNgumbatoAPI.Post("/:id/payments", presenter.NgumbatoPresenter.RecordPayment)
		treasurerNgumbatoAPI.Post("/:id/fines", presenter.NgumbatoPresenter.AddFine)
		treasurerNgumbatoAPI.Get("/:id/summary", presenter.NgumbatoPresenter.Summary)
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Resource not found",
			"path":    c.Path(),
		})
	})

	return app
}

func ErrorCustomHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		log.Error("Request error occured",
			zap.Error(err),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Int("status_code", code),
		)

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
			"code":    code,
		})
	}
}
