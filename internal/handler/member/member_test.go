package memberhandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	memberhandler "github.com/wambuik/chamaflow/internal/handler/member"

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

type mockMemberService struct {
	MockRegisterResult      *domain.Member
	MockGetProfileResult    *domain.Member
	MockListResult          *domain.Paginated
	MockContributionResult  *domain.Contribution
	MockContributionsResult []domain.Contribution
	MockStatementResult     *dto.MemberStatementResponse
	MockError               error
}

func (m *mockMemberService) Register(ctx context.Context, req dto.RegisterRequest) (*domain.Member, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockRegisterResult, nil
}

func (m *mockMemberService) GetProfile(ctx context.Context, memberID uint64) (*domain.Member, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockGetProfileResult, nil
}

func (m *mockMemberService) UpdateProfile(ctx context.Context, memberID uint64, req domain.Member) error {
	return m.MockError
}

func (m *mockMemberService) VerifyMember(ctx context.Context, memberID uint64, req dto.VerificationRequest) error {
	return m.MockError
}

func (m *mockMemberService) ListMembers(ctx context.Context, params domain.Params) (*domain.Paginated, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockListResult, nil
}

func (m *mockMemberService) RecordContribution(ctx context.Context, memberID uint64, req dto.ContributionRequest) (*domain.Contribution, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockContributionResult, nil
}

func (m *mockMemberService) GetContributions(ctx context.Context, memberID uint64) ([]domain.Contribution, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockContributionsResult, nil
}

func (m *mockMemberService) GetStatement(ctx context.Context, memberID uint64) (*dto.MemberStatementResponse, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockStatementResult, nil
}

type mockLoanService struct {
	MockMemberLoans []domain.LoanApplication
	MockError       error
}

func (m *mockLoanService) Quote(ctx context.Context, req dto.LoanQuoteRequest) (*dto.LoanQuoteResponse, error) {
	return nil, m.MockError
}

func (m *mockLoanService) Apply(ctx context.Context, req dto.LoanApplyRequest) (*domain.LoanApplication, error) {
	return nil, m.MockError
}

func (m *mockLoanService) Approve(ctx context.Context, loanID uint64) error { return m.MockError }

func (m *mockLoanService) Reject(ctx context.Context, loanID uint64, reason string) error {
	return m.MockError
}

func (m *mockLoanService) Disburse(ctx context.Context, loanID uint64, disbursedAt time.Time) error {
	return m.MockError
}

func (m *mockLoanService) Complete(ctx context.Context, loanID uint64) error { return m.MockError }

func (m *mockLoanService) Reschedule(ctx context.Context, loanID uint64, req finance.RescheduleRequest) (*dto.RescheduleResponse, error) {
	return nil, m.MockError
}

func (m *mockLoanService) GetLoan(ctx context.Context, loanID uint64) (*domain.LoanApplication, error) {
	return nil, m.MockError
}

func (m *mockLoanService) ListLoans(ctx context.Context, params domain.Params) (*domain.Paginated, error) {
	return nil, m.MockError
}

func (m *mockLoanService) GetMemberLoans(ctx context.Context, memberID uint64) ([]domain.LoanApplication, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockMemberLoans, nil
}

type mockNgumbatoService struct {
	MockMemberRecords []domain.NgumbatoRecord
	MockError         error
}

func (m *mockNgumbatoService) Create(ctx context.Context, req dto.CreateNgumbatoRequest) (*domain.NgumbatoRecord, error) {
	return nil, m.MockError
}

func (m *mockNgumbatoService) Get(ctx context.Context, id uint64) (*domain.NgumbatoRecord, error) {
	return nil, m.MockError
}

func (m *mockNgumbatoService) GetMemberRecords(ctx context.Context, memberID uint64) ([]domain.NgumbatoRecord, error) {
	if m.MockError != nil {
		return nil, m.MockError
	}
	return m.MockMemberRecords, nil
}

func (m *mockNgumbatoService) RecordPayment(ctx context.Context, id uint64, req dto.NgumbatoPaymentRequest) (*domain.NgumbatoRecord, string, error) {
	return nil, "", m.MockError
}

func (m *mockNgumbatoService) AddFine(ctx context.Context, id uint64, req dto.NgumbatoFineRequest) (*domain.NgumbatoRecord, string, error) {
	return nil, "", m.MockError
}

func (m *mockNgumbatoService) Summary(ctx context.Context, id uint64) (*dto.NgumbatoSummaryResponse, error) {
	return nil, m.MockError
}

func (m *mockNgumbatoService) SweepLateness(ctx context.Context, now time.Time) (int, error) {
	return 0, m.MockError
}

func setupMemberApp(memberService *mockMemberService, loanService *mockLoanService, ngumbatoService *mockNgumbatoService) *fiber.App {
	handler := memberhandler.NewMemberHandler(
		memberService,
		loanService,
		ngumbatoService,
		metricnoop.NewMeterProvider().Meter("test"),
		tracenoop.NewTracerProvider().Tracer("test"),
		zap.NewNop(),
	)

	app := fiber.New()

	// Stand-in for the JWT middleware
	authMiddleware := func(c *fiber.Ctx) error {
		c.Locals("user", &domain.JwtCustomClaims{UserID: 2, Role: domain.MemberRole})
		return c.Next()
	}

	app.Post("/register", handler.Register)
	app.Get("/me/profile", authMiddleware, handler.GetMyProfile)
	app.Put("/me/profile", authMiddleware, handler.UpdateMyProfile)
	app.Get("/me/loans", authMiddleware, handler.GetMyLoans)
	app.Get("/me/ngumbato", authMiddleware, handler.GetMyNgumbato)
	app.Get("/me/statement", authMiddleware, handler.GetMyStatement)
	app.Get("/members", handler.ListMembers)
	app.Get("/members/:memberId", handler.GetMember)
	app.Post("/members/:memberId/verify", handler.VerifyMember)
	app.Post("/members/:memberId/contributions", handler.RecordContribution)
	app.Get("/members/:memberId/contributions", handler.GetContributions)

	return app
}

// createRegisterRequest builds a multipart/form-data registration request.
func createRegisterRequest(t *testing.T, fields map[string]string, withFiles bool) *http.Request {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for key, val := range fields {
		assert.NoError(t, writer.WriteField(key, val))
	}

	if withFiles {
		for _, key := range []string{"id_photo", "selfie_photo"} {
			part, err := writer.CreateFormFile(key, key+".jpg")
			assert.NoError(t, err)
			_, err = io.WriteString(part, "dummy content")
			assert.NoError(t, err)
		}
	}

	assert.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func registerFields() map[string]string {
	return map[string]string{
		"national_id":    "12345678",
		"full_name":      "Wanjiku Kamau",
		"phone_number":   "+254712345678",
		"password":       "hunter2hunter2",
		"monthly_income": "45000",
	}
}

func TestMemberHandler_Register(t *testing.T) {
	memberService := &mockMemberService{}
	app := setupMemberApp(memberService, &mockLoanService{}, &mockNgumbatoService{})

	t.Run("Success", func(t *testing.T) {
		memberService.MockRegisterResult = &domain.Member{
			ID:                 2,
			NationalID:         "12345678",
			FullName:           "Wanjiku Kamau",
			VerificationStatus: domain.VerificationPending,
		}
		memberService.MockError = nil

		resp, _ := app.Test(createRegisterRequest(t, registerFields(), true), -1)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var member domain.Member
		json.NewDecoder(resp.Body).Decode(&member)
		assert.Empty(t, member.Password)
	})

	t.Run("Duplicate National ID", func(t *testing.T) {
		memberService.MockError = common.ErrNationalIDExists

		resp, _ := app.Test(createRegisterRequest(t, registerFields(), true), -1)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Missing Photos", func(t *testing.T) {
		memberService.MockError = nil

		resp, _ := app.Test(createRegisterRequest(t, registerFields(), false), -1)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMemberHandler_Me(t *testing.T) {
	memberService := &mockMemberService{}
	loanService := &mockLoanService{}
	ngumbatoService := &mockNgumbatoService{}
	app := setupMemberApp(memberService, loanService, ngumbatoService)

	t.Run("Get Profile", func(t *testing.T) {
		memberService.MockGetProfileResult = &domain.Member{ID: 2, FullName: "Wanjiku Kamau", Password: "secret"}
		memberService.MockError = nil

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/me/profile", nil))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Get My Loans", func(t *testing.T) {
		loanService.MockMemberLoans = []domain.LoanApplication{{ID: 7, MemberID: 2}}
		loanService.MockError = nil

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/me/loans", nil))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Get My Statement", func(t *testing.T) {
		memberService.MockStatementResult = &dto.MemberStatementResponse{
			MemberID:           2,
			FullName:           "Wanjiku Kamau",
			TotalContributions: 120000,
			ActiveLoans:        1,
			LoanBalance:        45000,
		}
		memberService.MockError = nil

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/me/statement", nil))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var statement dto.MemberStatementResponse
		json.NewDecoder(resp.Body).Decode(&statement)
		assert.Equal(t, float64(120000), statement.TotalContributions)
	})

	t.Run("Update Profile", func(t *testing.T) {
		memberService.MockError = nil

		body := `{"full_name": "Wanjiku K. Kamau", "phone_number": "+254712345678", "monthly_income": 50000}`
		req := httptest.NewRequest(http.MethodPut, "/me/profile", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestMemberHandler_VerifyMember(t *testing.T) {
	memberService := &mockMemberService{}
	app := setupMemberApp(memberService, &mockLoanService{}, &mockNgumbatoService{})

	t.Run("Success", func(t *testing.T) {
		memberService.MockError = nil

		body := `{"status": "VERIFIED"}`
		req := httptest.NewRequest(http.MethodPost, "/members/2/verify", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Invalid Status", func(t *testing.T) {
		body := `{"status": "MAYBE"}`
		req := httptest.NewRequest(http.MethodPost, "/members/2/verify", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Member Not Found", func(t *testing.T) {
		memberService.MockError = common.ErrMemberNotFound

		body := `{"status": "VERIFIED"}`
		req := httptest.NewRequest(http.MethodPost, "/members/99/verify", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestMemberHandler_RecordContribution(t *testing.T) {
	memberService := &mockMemberService{}
	app := setupMemberApp(memberService, &mockLoanService{}, &mockNgumbatoService{})

	t.Run("Success", func(t *testing.T) {
		memberService.MockContributionResult = &domain.Contribution{
			ID:        11,
			MemberID:  2,
			Amount:    5000,
			Method:    "mpesa",
			Reference: "CTR-A1B2C3D4",
		}
		memberService.MockError = nil

		body := `{"amount": 5000, "method": "mpesa"}`
		req := httptest.NewRequest(http.MethodPost, "/members/2/contributions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("Unknown Method", func(t *testing.T) {
		body := `{"amount": 5000, "method": "barter"}`
		req := httptest.NewRequest(http.MethodPost, "/members/2/contributions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMemberHandler_ListMembers(t *testing.T) {
	memberService := &mockMemberService{}
	app := setupMemberApp(memberService, &mockLoanService{}, &mockNgumbatoService{})

	t.Run("Success", func(t *testing.T) {
		memberService.MockListResult = &domain.Paginated{
			Data:  []domain.Member{{ID: 2}},
			Total: 1, Page: 1, Limit: 10, TotalPages: 1,
		}
		memberService.MockError = nil

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/members?status=PENDING", nil))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
