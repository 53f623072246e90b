package loanhandler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	loanhandler "github.com/wambuik/chamaflow/internal/handler/loan"

	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/internal/dto"
	"github.com/wambuik/chamaflow/internal/finance"
	"github.com/wambuik/chamaflow/pkg/common"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type mockLoanService struct {
	MockQuoteResult      *dto.LoanQuoteResponse
	MockApplyResult      *domain.LoanApplication
	MockRescheduleResult *dto.RescheduleResponse
	MockGetLoanResult    *domain.LoanApplication
	MockListResult       *domain.Paginated
	MockMemberLoans      []domain.LoanApplication
	MockError            error
}

func (m *mockLoanService) Quote(ctx context.Context, req dto.LoanQuoteRequest) (*dto.LoanQuoteResponse, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockQuoteResult, nil
}

func (m *mockLoanService) Apply(ctx context.Context, req dto.LoanApplyRequest) (*domain.LoanApplication, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockApplyResult, nil
}

func (m *mockLoanService) Approve(ctx context.Context, loanID uint64) error {
	return m.MockError
}

func (m *mockLoanService) Reject(ctx context.Context, loanID uint64, reason string) error {
	return m.MockError
}

func (m *mockLoanService) Disburse(ctx context.Context, loanID uint64, disbursedAt time.Time) error {
	return m.MockError
}

func (m *mockLoanService) Complete(ctx context.Context, loanID uint64) error {
	return m.MockError
}

func (m *mockLoanService) Reschedule(ctx context.Context, loanID uint64, req finance.RescheduleRequest) (*dto.RescheduleResponse, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockRescheduleResult, nil
}

func (m *mockLoanService) GetLoan(ctx context.Context, loanID uint64) (*domain.LoanApplication, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockGetLoanResult, nil
}

func (m *mockLoanService) ListLoans(ctx context.Context, params domain.Params) (*domain.Paginated, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockListResult, nil
}

func (m *mockLoanService) GetMemberLoans(ctx context.Context, memberID uint64) ([]domain.LoanApplication, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockMemberLoans, nil
}

func setupLoanApp(mockService *mockLoanService) *fiber.App {
	handler := loanhandler.NewLoanHandler(
		mockService,
		metricnoop.NewMeterProvider().Meter("test"),
		tracenoop.NewTracerProvider().Tracer("test"),
		zap.NewNop(),
	)

	app := fiber.New()

	loans := app.Group("/loans")
	loans.Post("/quote", handler.Quote)
	loans.Post("/", handler.Apply)
	loans.Get("/", handler.List)
	loans.Get("/:loanId", handler.Get)
	loans.Post("/:loanId/approve", handler.Approve)
	loans.Post("/:loanId/reject", handler.Reject)
	loans.Post("/:loanId/disburse", handler.Disburse)
	loans.Post("/:loanId/complete", handler.Complete)
	loans.Post("/:loanId/reschedule", handler.Reschedule)

	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLoanHandler_Quote(t *testing.T) {
	mockService := &mockLoanService{}
	app := setupLoanApp(mockService)

	t.Run("Success", func(t *testing.T) {
		mockService.MockQuoteResult = &dto.LoanQuoteResponse{
			Principal:          50000,
			AnnualRatePercent:  10,
			TermMonths:         12,
			MonthlyInstallment: 4395.79,
			TotalInterest:      2749.48,
			TotalRepayment:     52749.48,
		}
		mockService.MockError = nil

		body := `{"principal": 50000, "annual_rate_percent": 10, "term_months": 12}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/quote", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var quote dto.LoanQuoteResponse
		json.NewDecoder(resp.Body).Decode(&quote)
		assert.Equal(t, 4395.79, quote.MonthlyInstallment)
	})

	t.Run("Principal Above Group Maximum", func(t *testing.T) {
		body := `{"principal": 2000000, "annual_rate_percent": 10, "term_months": 12}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/quote", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Engine Rejects Terms", func(t *testing.T) {
		mockService.MockError = finance.ErrInvalidLoanTerms

		body := `{"principal": 50000, "annual_rate_percent": 10, "term_months": 12}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/quote", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestLoanHandler_Apply(t *testing.T) {
	mockService := &mockLoanService{}
	app := setupLoanApp(mockService)

	t.Run("Success", func(t *testing.T) {
		mockService.MockApplyResult = &domain.LoanApplication{
			ID:             7,
			ContractNumber: "CHF-A1B2C3D4",
			MemberID:       2,
			Amount:         50000,
			Status:         domain.LoanPending,
		}
		mockService.MockError = nil

		body := `{"member_id": 2, "amount": 50000, "purpose": "school fees", "annual_rate_percent": 10, "term_months": 12}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("Member Not Verified", func(t *testing.T) {
		mockService.MockError = common.ErrMemberNotVerified

		body := `{"member_id": 2, "amount": 50000, "purpose": "school fees", "annual_rate_percent": 10, "term_months": 12}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("Missing Purpose", func(t *testing.T) {
		mockService.MockError = nil

		body := `{"member_id": 2, "amount": 50000, "annual_rate_percent": 10, "term_months": 12}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoanHandler_Get(t *testing.T) {
	mockService := &mockLoanService{}
	app := setupLoanApp(mockService)

	t.Run("Success", func(t *testing.T) {
		mockService.MockGetLoanResult = &domain.LoanApplication{ID: 7, ContractNumber: "CHF-A1B2C3D4"}
		mockService.MockError = nil

		req := httptest.NewRequest(http.MethodGet, "/loans/7", nil)
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Loan Not Found", func(t *testing.T) {
		mockService.MockGetLoanResult = nil
		mockService.MockError = common.ErrLoanNotFound

		req := httptest.NewRequest(http.MethodGet, "/loans/99", nil)
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Invalid Loan ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/loans/abc", nil)
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoanHandler_Lifecycle(t *testing.T) {
	mockService := &mockLoanService{}
	app := setupLoanApp(mockService)

	t.Run("Approve Success", func(t *testing.T) {
		mockService.MockError = nil

		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/loans/7/approve", nil))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Approve After Rejection Is A Conflict", func(t *testing.T) {
		mockService.MockError = common.ErrInvalidTransition

		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/loans/7/approve", nil))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Disburse Success", func(t *testing.T) {
		mockService.MockError = nil

		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/loans/7/disburse", nil))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Reject With Reason", func(t *testing.T) {
		mockService.MockError = nil

		body := `{"reason": "income too low"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/7/reject", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Reject Without Body", func(t *testing.T) {
		mockService.MockError = nil

		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/loans/7/reject", nil))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Reject With Malformed Body", func(t *testing.T) {
		mockService.MockError = nil

		body := `{"reason": `
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/7/reject", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoanHandler_Reschedule(t *testing.T) {
	mockService := &mockLoanService{}
	app := setupLoanApp(mockService)

	t.Run("Success With Warning", func(t *testing.T) {
		mockService.MockRescheduleResult = &dto.RescheduleResponse{
			ContractNumber:     "CHF-A1B2C3D4",
			MonthlyInstallment: 2500,
			TermMonths:         18,
			RemainingBalance:   45000,
			Warning:            "installment changed by more than 1000 KSh",
		}
		mockService.MockError = nil

		body := `{"new_term_months": 18, "new_start_date": "2026-09-01", "reason": "drought season"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/7/reschedule", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res dto.RescheduleResponse
		json.NewDecoder(resp.Body).Decode(&res)
		assert.NotEmpty(t, res.Warning)
	})

	t.Run("Missing Reason", func(t *testing.T) {
		body := `{"new_term_months": 18, "new_start_date": "2026-09-01"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/7/reschedule", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("No Adjustment Requested", func(t *testing.T) {
		mockService.MockError = finance.ErrNoRescheduleChange

		body := `{"new_start_date": "2026-09-01", "reason": "drought season"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/7/reschedule", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Only Disbursed Loans Reschedule", func(t *testing.T) {
		mockService.MockError = common.ErrInvalidTransition

		body := `{"new_term_months": 18, "new_start_date": "2026-09-01", "reason": "drought season"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/loans/7/reschedule", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}
