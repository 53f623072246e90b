package dto

type LoginResponse struct {
	Token string `json:"token"`
}

type LoanQuoteResponse struct {
	Principal          float64 `json:"principal"`
	AnnualRatePercent  float64 `json:"annual_rate_percent"`
	TermMonths         int     `json:"term_months"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	TotalInterest      float64 `json:"total_interest"`
	TotalRepayment     float64 `json:"total_repayment"`
}

type RescheduleResponse struct {
	ContractNumber     string  `json:"contract_number"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	TermMonths         int     `json:"term_months"`
	TotalInstallments  int     `json:"total_installments"`
	StartDate          string  `json:"start_date"`
	EndDate            string  `json:"end_date"`
	NextDueDate        string  `json:"next_due_date"`
	RemainingBalance   float64 `json:"remaining_balance"`
	Warning            string  `json:"warning,omitempty"`
}

type NgumbatoSummaryResponse struct {
	ReferenceNumber    string  `json:"reference_number"`
	Status             string  `json:"status"`
	TotalPaid          float64 `json:"total_paid"`
	RemainingBalance   float64 `json:"remaining_balance"`
	Fines              float64 `json:"fines"`
	OverduePayments    int     `json:"overdue_payments"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

type PaymentResponse struct {
	Record  any    `json:"record"`
	Warning string `json:"warning,omitempty"`
}

type MemberStatementResponse struct {
	MemberID           uint64  `json:"member_id"`
	FullName           string  `json:"full_name"`
	TotalContributions float64 `json:"total_contributions"`
	ActiveLoans        int     `json:"active_loans"`
	LoanBalance        float64 `json:"loan_balance"`
	NgumbatoBalance    float64 `json:"ngumbato_balance"`
	OutstandingFines   float64 `json:"outstanding_fines"`
}
