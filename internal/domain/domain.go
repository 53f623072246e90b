package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	TreasurerRole Role = "treasurer"
	MemberRole    Role = "member"
)

// Member is a registered chama member. Treasurers are members with an
// elevated role and approve loans, verify registrations and record payments.
type Member struct {
	ID                 uint64
	NationalID         string
	FullName           string
	PhoneNumber        string
	Password           string
	Role               Role
	IDPhotoURL         string
	SelfiePhotoURL     string
	MonthlyIncome      float64
	VerificationStatus VerificationStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Contributions   []Contribution
	Loans           []LoanApplication
	NgumbatoRecords []NgumbatoRecord
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Contribution is a single savings deposit into the group pot.
type Contribution struct {
	ID         uint64
	MemberID   uint64
	Amount     float64
	Method     string
	Reference  string
	Notes      string
	RecordedAt time.Time
}

type LoanStatus string

const (
	LoanPending   LoanStatus = "PENDING"
	LoanApproved  LoanStatus = "APPROVED"
	LoanRejected  LoanStatus = "REJECTED"
	LoanDisbursed LoanStatus = "DISBURSED"
	LoanCompleted LoanStatus = "COMPLETED"
)

// LoanApplication carries a loan through its whole lifecycle. Amortization
// figures are computed once at quote/approval time and replaced atomically by a
// reschedule; they are never derived lazily.
type LoanApplication struct {
	ID                    uint64
	ContractNumber        string
	MemberID              uint64
	Amount                float64
	Purpose               string
	Status                LoanStatus
	InterestRatePercent   float64
	TermMonths            int
	MonthlyInstallment    float64
	TotalInterest         float64
	TotalRepayment        float64
	RemainingBalance      float64
	CompletedInstallments int
	TotalInstallments     int
	StartDate             *time.Time
	EndDate               *time.Time
	NextDueDate           *time.Time
	DisbursementDate      *time.Time
	DueDate               *time.Time
	Notes                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time

	Member Member
}

type NgumbatoStatus string

const (
	NgumbatoActive    NgumbatoStatus = "ACTIVE"
	NgumbatoCompleted NgumbatoStatus = "COMPLETED"
	NgumbatoDefaulted NgumbatoStatus = "DEFAULTED"
)

// NgumbatoRecord is a rotating-fund position: a principal repaid through fixed
// monthly contributions of 10% of the principal, with monthly-compounding fines
// on late installments. The record exclusively owns its installments.
type NgumbatoRecord struct {
	ID                  uint64
	ReferenceNumber     string
	MemberID            uint64
	PrincipleAmount     float64
	MonthlyContribution float64
	StartDate           time.Time
	DueDate             time.Time
	FineRatePercent     float64
	Status              NgumbatoStatus
	TotalPaid           float64
	RemainingBalance    float64
	Fines               float64
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Member       Member
	Installments []PaymentInstallment
}

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
)

// PaymentInstallment is one scheduled monthly contribution. A paid installment
// is never re-evaluated for lateness.
type PaymentInstallment struct {
	ID         uint64
	NgumbatoID uint64
	Position   int
	DueDate    time.Time
	PaidDate   *time.Time
	Amount     float64
	Status     InstallmentStatus
	FineAmount float64
	FinePaid   bool
	DaysLate   int
}

type JwtCustomClaims struct {
	UserID uint64 `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

type Params struct {
	Status string
	Page   int
	Limit  int
}

type Paginated struct {
	Data       any
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}
