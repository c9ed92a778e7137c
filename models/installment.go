package models

import (
	"time"
)

// InstallmentStatus represents the repayment state of a single EMI
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
	InstallmentStatusWaived  InstallmentStatus = "waived"
)

// EMIInstallment is one row of a loan's amortization schedule. Exactly
// tenure_months installments exist per disbursed loan, with contiguous
// sequence numbers starting at 1. Due dates are date-only; the time
// component is always midnight UTC.
type EMIInstallment struct {
	ID             int64             `db:"id"`
	LoanID         int64             `db:"loan_id"`
	SequenceNumber int               `db:"sequence_number"`
	DueDate        time.Time         `db:"due_date"`
	AmountDue      int64             `db:"amount_due"`
	AmountPaid     int64             `db:"amount_paid"`
	PaidAt         *time.Time        `db:"paid_at"`
	Status         InstallmentStatus `db:"status"`
}

// IsSettled reports whether the installment no longer requires payment
func (i *EMIInstallment) IsSettled() bool {
	return i.Status == InstallmentStatusPaid || i.Status == InstallmentStatusWaived
}

// IsPayable reports whether a payment can still be recorded against it
func (i *EMIInstallment) IsPayable() bool {
	return i.Status == InstallmentStatusPending || i.Status == InstallmentStatusOverdue
}

// RepaymentProgress summarizes how far along a loan's schedule is.
// Waived installments count toward completion but not toward the paid
// amount.
type RepaymentProgress struct {
	TotalInstallments int     `json:"total_installments"`
	PaidCount         int     `json:"paid_count"`
	WaivedCount       int     `json:"waived_count"`
	OverdueCount      int     `json:"overdue_count"`
	PaidAmount        int64   `json:"paid_amount"`
	RemainingAmount   int64   `json:"remaining_amount"`
	PercentComplete   float64 `json:"percent_complete"`
}

// Complete reports whether every installment is settled
func (p RepaymentProgress) Complete() bool {
	return p.TotalInstallments > 0 && p.PaidCount+p.WaivedCount == p.TotalInstallments
}

// Affordability is the result of an EMI-to-income evaluation
type Affordability struct {
	EMIAmount     int64   `json:"emi_amount"`
	MonthlyIncome int64   `json:"monthly_income"`
	Ratio         float64 `json:"ratio"`
	Threshold     float64 `json:"threshold"`
	Affordable    bool    `json:"affordable"`
}
