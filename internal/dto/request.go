package dto

import (
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wambuik/chamaflow/internal/domain"
	"github.com/wambuik/chamaflow/internal/finance"
)

type LoginRequest struct {
	NationalID string `json:"national_id" validate:"required,len=8,numeric"`
	Password   string `json:"password" validate:"required,min=8"`
}

type RegisterRequest struct {
	NationalID    string                `form:"national_id" validate:"required,len=8,numeric"`
	FullName      string                `form:"full_name" validate:"required"`
	PhoneNumber   string                `form:"phone_number" validate:"required,min=10,max=13"`
	Password      string                `form:"password" validate:"required,min=8"`
	MonthlyIncome float64               `form:"monthly_income" validate:"required,gt=0"`
	IDPhoto       *multipart.FileHeader `form:"id_photo" validate:"required"`
	SelfiePhoto   *multipart.FileHeader `form:"selfie_photo" validate:"required"`
}

type UpdateProfileRequest struct {
	FullName      string  `json:"full_name" validate:"required"`
	PhoneNumber   string  `json:"phone_number" validate:"required,min=10,max=13"`
	MonthlyIncome float64 `json:"monthly_income" validate:"required,gt=0"`
}

type VerificationRequest struct {
	Status domain.VerificationStatus `json:"status" validate:"required,oneof=VERIFIED REJECTED"`
	Reason string                    `json:"reason,omitempty"`
}

type ContributionRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required,oneof=mpesa bank cash"`
	Notes  string  `json:"notes,omitempty"`
}

// LoanQuoteRequest bounds mirror group policy: principal capped at 1,000,000
// KSh, terms at 60 months, and rates above 50% are rejected as invalid terms.
type LoanQuoteRequest struct {
	Principal         float64 `json:"principal" validate:"required,gt=0,lte=1000000"`
	AnnualRatePercent float64 `json:"annual_rate_percent" validate:"gte=0,lte=50"`
	TermMonths        int     `json:"term_months" validate:"required,gt=0,lte=60"`
}

type LoanApplyRequest struct {
	MemberID          uint64  `json:"member_id" validate:"required"`
	Amount            float64 `json:"amount" validate:"required,gt=0,lte=1000000"`
	Purpose           string  `json:"purpose" validate:"required"`
	AnnualRatePercent float64 `json:"annual_rate_percent" validate:"gte=0,lte=50"`
	TermMonths        int     `json:"term_months" validate:"required,gt=0,lte=60"`
	Notes             string  `json:"notes,omitempty"`
}

type LoanRescheduleRequest struct {
	NewTermMonths        *int     `json:"new_term_months,omitempty" validate:"omitempty,gt=0,lte=60"`
	NewInstallmentAmount *float64 `json:"new_installment_amount,omitempty" validate:"omitempty,gt=0"`
	NewStartDate         string   `json:"new_start_date" validate:"required,datetime=2006-01-02"`
	Reason               string   `json:"reason" validate:"required"`
}

type CreateNgumbatoRequest struct {
	MemberID        uint64  `json:"member_id" validate:"required"`
	PrincipleAmount float64 `json:"principle_amount" validate:"required,gt=0"`
	StartDate       string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	DurationMonths  int     `json:"duration_months" validate:"required,gt=0,lte=60"`
	FineRatePercent float64 `json:"fine_rate_percent" validate:"gte=0,lte=50"`
}

type NgumbatoPaymentRequest struct {
	Amount      float64 `json:"amount" validate:"gte=0"`
	FineAmount  float64 `json:"fine_amount" validate:"gte=0"`
	PaymentDate string  `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Notes       string  `json:"notes,omitempty"`
}

type NgumbatoFineRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reason    string  `json:"reason" validate:"required"`
	ApplyDate string  `json:"apply_date" validate:"required,datetime=2006-01-02"`
}

// --- Mapping --- //

func RegisterToEntity(req RegisterRequest, idPhotoURL, selfieURL string) *domain.Member {
	return &domain.Member{
		NationalID:         req.NationalID,
		FullName:           req.FullName,
		PhoneNumber:        req.PhoneNumber,
		Password:           req.Password,
		Role:               domain.MemberRole,
		IDPhotoURL:         idPhotoURL,
		SelfiePhotoURL:     selfieURL,
		MonthlyIncome:      req.MonthlyIncome,
		VerificationStatus: domain.VerificationPending,
	}
}

func UpdateToEntity(req UpdateProfileRequest) domain.Member {
	return domain.Member{
		FullName:      req.FullName,
		PhoneNumber:   req.PhoneNumber,
		MonthlyIncome: req.MonthlyIncome,
	}
}

// ParamsFromQuery reads the shared pagination query parameters with sane
// bounds: page defaults to 1, limit to 10, capped at 100.
func ParamsFromQuery(c *fiber.Ctx) domain.Params {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	return domain.Params{
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	}
}

func (r LoanRescheduleRequest) ToFinanceRequest() finance.RescheduleRequest {
	startDate, _ := time.Parse("2006-01-02", r.NewStartDate)
	return finance.RescheduleRequest{
		NewTermMonths:        r.NewTermMonths,
		NewInstallmentAmount: r.NewInstallmentAmount,
		NewStartDate:         startDate,
		Reason:               r.Reason,
	}
}
