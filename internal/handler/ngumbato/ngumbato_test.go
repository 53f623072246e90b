package ngumbatohandler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ngumbatohandler "github.com/wambuik/chamaflow/internal/handler/ngumbato"

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

type mockNgumbatoService struct {
	MockCreateResult  *domain.NgumbatoRecord
	MockGetResult     *domain.NgumbatoRecord
	MockMemberRecords []domain.NgumbatoRecord
	MockPaymentResult *domain.NgumbatoRecord
	MockWarning       string
	MockSummaryResult *dto.NgumbatoSummaryResponse
	MockSweepChanged  int
	MockError         error
}

func (m *mockNgumbatoService) Create(ctx context.Context, req dto.CreateNgumbatoRequest) (*domain.NgumbatoRecord, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockCreateResult, nil
}

func (m *mockNgumbatoService) Get(ctx context.Context, id uint64) (*domain.NgumbatoRecord, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockGetResult, nil
}

func (m *mockNgumbatoService) GetMemberRecords(ctx context.Context, memberID uint64) ([]domain.NgumbatoRecord, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockMemberRecords, nil
}

func (m *mockNgumbatoService) RecordPayment(ctx context.Context, id uint64, req dto.NgumbatoPaymentRequest) (*domain.NgumbatoRecord, string, error) {
	if m.MockError != nil {
		return nil, "", m.MockError
	}
	return m.MockPaymentResult, m.MockWarning, nil
}

func (m *mockNgumbatoService) AddFine(ctx context.Context, id uint64, req dto.NgumbatoFineRequest) (*domain.NgumbatoRecord, string, error) {
	if m.MockError != nil {
		return nil, "", m.MockError
	}
	return m.MockPaymentResult, m.MockWarning, nil
}

func (m *mockNgumbatoService) Summary(ctx context.Context, id uint64) (*dto.NgumbatoSummaryResponse, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockSummaryResult, nil
}

func (m *mockNgumbatoService) SweepLateness(ctx context.Context, now time.Time) (int, error) {
	if m.MockError != nil {
		return 0, m.MockError
	}
	return m.MockSweepChanged, nil
}

func setupNgumbatoApp(mockService *mockNgumbatoService) *fiber.App {
	handler := ngumbatohandler.NewNgumbatoHandler(
		mockService,
		metricnoop.NewMeterProvider().Meter("test"),
		tracenoop.NewTracerProvider().Tracer("test"),
		zap.NewNop(),
	)

	app := fiber.New()

	ngumbato := app.Group("/ngumbato")
	ngumbato.Post("/", handler.Create)
	ngumbato.Get("/:id", handler.Get)
	ngumbato.Post("/:id/payments", handler.RecordPayment)
	ngumbato.Post("/:id/fines", handler.AddFine)
	ngumbato.Get("/:id/summary", handler.Summary)

	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestNgumbatoHandler_Create(t *testing.T) {
	mockService := &mockNgumbatoService{}
	app := setupNgumbatoApp(mockService)

	t.Run("Success", func(t *testing.T) {
		mockService.MockCreateResult = &domain.NgumbatoRecord{
			ID:                  3,
			ReferenceNumber:     "NGB-A1B2C3D4",
			MemberID:            2,
			PrincipleAmount:     100000,
			MonthlyContribution: 10000,
			Status:              domain.NgumbatoActive,
		}
		mockService.MockError = nil

		body := `{"member_id": 2, "principle_amount": 100000, "start_date": "2026-09-01", "duration_months": 10, "fine_rate_percent": 5}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("Member Not Verified", func(t *testing.T) {
		mockService.MockError = common.ErrMemberNotVerified

		body := `{"member_id": 2, "principle_amount": 100000, "start_date": "2026-09-01", "duration_months": 10, "fine_rate_percent": 5}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("Malformed Start Date", func(t *testing.T) {
		mockService.MockError = nil

		body := `{"member_id": 2, "principle_amount": 100000, "start_date": "01/09/2026", "duration_months": 10}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestNgumbatoHandler_RecordPayment(t *testing.T) {
	mockService := &mockNgumbatoService{}
	app := setupNgumbatoApp(mockService)

	t.Run("Success", func(t *testing.T) {
		mockService.MockPaymentResult = &domain.NgumbatoRecord{
			ID:              3,
			ReferenceNumber: "NGB-A1B2C3D4",
			Status:          domain.NgumbatoActive,
			TotalPaid:       10000,
		}
		mockService.MockWarning = ""
		mockService.MockError = nil

		body := `{"amount": 10000, "payment_date": "2026-09-05"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/3/payments", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res dto.PaymentResponse
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Empty(t, res.Warning)
	})

	t.Run("No Eligible Installment Returns Warning", func(t *testing.T) {
		mockService.MockPaymentResult = &domain.NgumbatoRecord{
			ID:     3,
			Status: domain.NgumbatoCompleted,
		}
		mockService.MockWarning = finance.ErrNoEligibleInstallment.Error()
		mockService.MockError = nil

		body := `{"amount": 10000, "payment_date": "2026-09-05"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/3/payments", body))
		defer resp.Body.Close()

		// Still a 200, the payment is recorded, the caller just gets told
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res dto.PaymentResponse
		json.NewDecoder(resp.Body).Decode(&res)
		assert.NotEmpty(t, res.Warning)
	})

	t.Run("Record Not Found", func(t *testing.T) {
		mockService.MockError = common.ErrNgumbatoNotFound

		body := `{"amount": 10000, "payment_date": "2026-09-05"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/99/payments", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Negative Amount", func(t *testing.T) {
		mockService.MockError = nil

		body := `{"amount": -50, "payment_date": "2026-09-05"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/3/payments", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestNgumbatoHandler_AddFine(t *testing.T) {
	mockService := &mockNgumbatoService{}
	app := setupNgumbatoApp(mockService)

	t.Run("Success", func(t *testing.T) {
		mockService.MockPaymentResult = &domain.NgumbatoRecord{
			ID:    3,
			Fines: 500,
		}
		mockService.MockWarning = ""
		mockService.MockError = nil

		body := `{"amount": 500, "reason": "missed meeting", "apply_date": "2026-09-05"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/3/fines", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Missing Reason", func(t *testing.T) {
		body := `{"amount": 500, "apply_date": "2026-09-05"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/3/fines", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Engine Rejects Fine Amount", func(t *testing.T) {
		mockService.MockError = finance.ErrInvalidFineAmount

		body := `{"amount": 500, "reason": "missed meeting", "apply_date": "2026-09-05"}`
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/ngumbato/3/fines", body))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestNgumbatoHandler_Summary(t *testing.T) {
	mockService := &mockNgumbatoService{}
	app := setupNgumbatoApp(mockService)

	t.Run("Success", func(t *testing.T) {
		mockService.MockSummaryResult = &dto.NgumbatoSummaryResponse{
			ReferenceNumber:    "NGB-A1B2C3D4",
			Status:             "ACTIVE",
			TotalPaid:          30000,
			RemainingBalance:   70000,
			Fines:              500,
			OverduePayments:    1,
			ProgressPercentage: 30,
		}
		mockService.MockError = nil

		req := httptest.NewRequest(http.MethodGet, "/ngumbato/3/summary", nil)
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var summary dto.NgumbatoSummaryResponse
		json.NewDecoder(resp.Body).Decode(&summary)
		assert.Equal(t, float64(30), summary.ProgressPercentage)
	})

	t.Run("Record Not Found", func(t *testing.T) {
		mockService.MockSummaryResult = nil
		mockService.MockError = common.ErrNgumbatoNotFound

		req := httptest.NewRequest(http.MethodGet, "/ngumbato/99/summary", nil)
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
