package model

import (
	"time"

	"github.com/wambuik/chamaflow/internal/domain"

	"gorm.io/gorm"
)

// Member represents the members table
type Member struct {
	ID                 uint64                    `gorm:"primaryKey;autoIncrement" json:"id"`
	NationalID         string                    `gorm:"type:varchar(16);not null;uniqueIndex" json:"national_id"`
	FullName           string                    `gorm:"type:varchar(255);not null" json:"full_name"`
	PhoneNumber        string                    `gorm:"type:varchar(20);not null" json:"phone_number"`
	Password           string                    `gorm:"type:varchar(255);not null" json:"-"`
	Role               domain.Role               `gorm:"type:enum('treasurer','member');default:'member';not null" json:"role"`
	IDPhotoURL         string                    `gorm:"type:varchar(255)" json:"id_photo_url"`
	SelfiePhotoURL     string                    `gorm:"type:varchar(255)" json:"selfie_photo_url"`
	MonthlyIncome      float64                   `gorm:"type:decimal(15,2);not null" json:"monthly_income"`
	VerificationStatus domain.VerificationStatus `gorm:"type:enum('PENDING','VERIFIED','REJECTED');default:'PENDING';not null" json:"verification_status"`
	CreatedAt          time.Time                 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                 `gorm:"autoUpdateTime" json:"updated_at"`

	Contributions   []Contribution    `gorm:"foreignKey:MemberID" json:"contributions,omitempty"`
	Loans           []LoanApplication `gorm:"foreignKey:MemberID" json:"loans,omitempty"`
	NgumbatoRecords []NgumbatoRecord  `gorm:"foreignKey:MemberID" json:"ngumbato_records,omitempty"`
}

// Contribution represents the contributions table
type Contribution struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID   uint64    `gorm:"not null;index" json:"member_id"`
	Amount     float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Method     string    `gorm:"type:varchar(30);not null" json:"method"`
	Reference  string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`
	Notes      string    `gorm:"type:varchar(255)" json:"notes"`
	RecordedAt time.Time `gorm:"autoCreateTime" json:"recorded_at"`

	Member Member `gorm:"foreignKey:MemberID;constraint:OnDelete:RESTRICT" json:"member"`
}

// LoanApplication represents the loan_applications table
type LoanApplication struct {
	ID                    uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ContractNumber        string            `gorm:"type:varchar(50);not null;uniqueIndex" json:"contract_number"`
	MemberID              uint64            `gorm:"not null;index" json:"member_id"`
	Amount                float64           `gorm:"type:decimal(15,2);not null" json:"amount"`
	Purpose               string            `gorm:"type:varchar(255);not null" json:"purpose"`
	Status                domain.LoanStatus `gorm:"type:enum('PENDING','APPROVED','REJECTED','DISBURSED','COMPLETED');default:'PENDING';not null" json:"status"`
	InterestRatePercent   float64           `gorm:"type:decimal(5,2);not null" json:"interest_rate_percent"`
	TermMonths            int               `gorm:"not null" json:"term_months"`
	MonthlyInstallment    float64           `gorm:"type:decimal(15,2);not null" json:"monthly_installment"`
	TotalInterest         float64           `gorm:"type:decimal(15,2);not null" json:"total_interest"`
	TotalRepayment        float64           `gorm:"type:decimal(15,2);not null" json:"total_repayment"`
	RemainingBalance      float64           `gorm:"type:decimal(15,2);not null" json:"remaining_balance"`
	CompletedInstallments int               `gorm:"not null;default:0" json:"completed_installments"`
	TotalInstallments     int               `gorm:"not null;default:0" json:"total_installments"`
	StartDate             *time.Time        `gorm:"type:date" json:"start_date"`
	EndDate               *time.Time        `gorm:"type:date" json:"end_date"`
	NextDueDate           *time.Time        `gorm:"type:date" json:"next_due_date"`
	DisbursementDate      *time.Time        `gorm:"type:date" json:"disbursement_date"`
	DueDate               *time.Time        `gorm:"type:date" json:"due_date"`
	Notes                 string            `gorm:"type:text" json:"notes"`
	CreatedAt             time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	Member Member `gorm:"foreignKey:MemberID;constraint:OnDelete:RESTRICT" json:"member"`
}

// NgumbatoRecord represents the ngumbato_records table
type NgumbatoRecord struct {
	ID                  uint64                `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferenceNumber     string                `gorm:"type:varchar(50);not null;uniqueIndex" json:"reference_number"`
	MemberID            uint64                `gorm:"not null;index" json:"member_id"`
	PrincipleAmount     float64               `gorm:"type:decimal(15,2);not null" json:"principle_amount"`
	MonthlyContribution float64               `gorm:"type:decimal(15,2);not null" json:"monthly_contribution"`
	StartDate           time.Time             `gorm:"type:date;not null" json:"start_date"`
	DueDate             time.Time             `gorm:"type:date;not null" json:"due_date"`
	FineRatePercent     float64               `gorm:"type:decimal(5,2);not null;default:5" json:"fine_rate_percent"`
	Status              domain.NgumbatoStatus `gorm:"type:enum('ACTIVE','COMPLETED','DEFAULTED');default:'ACTIVE';not null" json:"status"`
	TotalPaid           float64               `gorm:"type:decimal(15,2);not null;default:0" json:"total_paid"`
	RemainingBalance    float64               `gorm:"type:decimal(15,2);not null" json:"remaining_balance"`
	Fines               float64               `gorm:"type:decimal(15,2);not null;default:0" json:"fines"`
	CreatedAt           time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time             `gorm:"autoUpdateTime" json:"updated_at"`

	Member       Member               `gorm:"foreignKey:MemberID;constraint:OnDelete:RESTRICT" json:"member"`
	Installments []PaymentInstallment `gorm:"foreignKey:NgumbatoID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
}

// PaymentInstallment represents the payment_installments table. Installments
// belong to exactly one ngumbato record and are read in position order.
type PaymentInstallment struct {
	ID         uint64                   `gorm:"primaryKey;autoIncrement" json:"id"`
	NgumbatoID uint64                   `gorm:"not null;index" json:"ngumbato_id"`
	Position   int                      `gorm:"not null" json:"position"`
	DueDate    time.Time                `gorm:"type:date;not null" json:"due_date"`
	PaidDate   *time.Time               `gorm:"type:date" json:"paid_date"`
	Amount     float64                  `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status     domain.InstallmentStatus `gorm:"type:enum('PENDING','PAID','OVERDUE');default:'PENDING';not null" json:"status"`
	FineAmount float64                  `gorm:"type:decimal(15,2);not null;default:0" json:"fine_amount"`
	FinePaid   bool                     `gorm:"not null;default:false" json:"fine_paid"`
	DaysLate   int                      `gorm:"not null;default:0" json:"days_late"`
}

func (Member) TableName() string {
	return "members"
}

func (Contribution) TableName() string {
	return "contributions"
}

func (LoanApplication) TableName() string {
	return "loan_applications"
}

func (NgumbatoRecord) TableName() string {
	return "ngumbato_records"
}

func (PaymentInstallment) TableName() string {
	return "payment_installments"
}

// Database migration function
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&Contribution{},
		&LoanApplication{},
		&NgumbatoRecord{},
		&PaymentInstallment{},
	)
}
