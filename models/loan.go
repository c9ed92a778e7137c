package models

import (
	"time"

	"github.com/google/uuid"
)

// LoanStatus represents where a loan is in its lifecycle
type LoanStatus string

const (
	LoanStatusApplied     LoanStatus = "applied"
	LoanStatusUnderReview LoanStatus = "under_review"
	LoanStatusApproved    LoanStatus = "approved"
	LoanStatusDisbursed   LoanStatus = "disbursed"
	LoanStatusActive      LoanStatus = "active"
	LoanStatusClosed      LoanStatus = "closed"
	LoanStatusRejected    LoanStatus = "rejected"
	LoanStatusDefaulted   LoanStatus = "defaulted"
)

// LoanEvent represents a lifecycle event applied to a loan
type LoanEvent string

const (
	LoanEventSubmitForReview      LoanEvent = "submit_for_review"
	LoanEventApprove              LoanEvent = "approve"
	LoanEventReject               LoanEvent = "reject"
	LoanEventDisburse             LoanEvent = "disburse"
	LoanEventActivate             LoanEvent = "activate"
	LoanEventRecordPayment        LoanEvent = "record_payment"
	LoanEventWaiveInstallment     LoanEvent = "waive_installment"
	LoanEventCompleteFinalPayment LoanEvent = "complete_final_payment"
	LoanEventMarkDefaulted        LoanEvent = "mark_defaulted"
)

// transitions is the single closed definition of the lifecycle. Every
// status check in the system goes through NextStatus; there are no ad
// hoc string comparisons elsewhere.
var transitions = map[LoanStatus]map[LoanEvent]LoanStatus{
	LoanStatusApplied: {
		LoanEventSubmitForReview: LoanStatusUnderReview,
		LoanEventReject:          LoanStatusRejected,
	},
	LoanStatusUnderReview: {
		LoanEventApprove: LoanStatusApproved,
		LoanEventReject:  LoanStatusRejected,
	},
	LoanStatusApproved: {
		LoanEventDisburse: LoanStatusDisbursed,
	},
	LoanStatusDisbursed: {
		LoanEventActivate: LoanStatusActive,
	},
	LoanStatusActive: {
		LoanEventRecordPayment:        LoanStatusActive,
		LoanEventWaiveInstallment:     LoanStatusActive,
		LoanEventCompleteFinalPayment: LoanStatusClosed,
		LoanEventMarkDefaulted:        LoanStatusDefaulted,
	},
}

// NextStatus returns the status the event leads to from the current
// status. ok is false when the event is not valid in that status,
// including every event attempted from a terminal status.
func (s LoanStatus) NextStatus(event LoanEvent) (LoanStatus, bool) {
	next, ok := transitions[s][event]
	return next, ok
}

// IsTerminal reports whether no further transitions are possible
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusClosed || s == LoanStatusRejected || s == LoanStatusDefaulted
}

// LoanTerms holds the derived repayment terms for a principal, rate and
// tenure. Amounts are in minor currency units; the invariants
// total_payable ~= emi * tenure and
// total_interest = total_payable - principal hold by construction.
type LoanTerms struct {
	Principal         int64   `json:"principal"`
	AnnualRatePercent float64 `json:"annual_rate_percent"`
	TenureMonths      int     `json:"tenure_months"`
	EMIAmount         int64   `json:"emi_amount"`
	TotalInterest     int64   `json:"total_interest"`
	TotalPayable      int64   `json:"total_payable"`
}

// Loan represents a buyout loan owned by a lender. It is created when a
// candidate applies and mutated only through lifecycle transitions;
// closed, rejected and defaulted loans are retained, never deleted.
type Loan struct {
	ID                int64      `db:"id"`
	Reference         uuid.UUID  `db:"reference"`
	BuyoutRequestID   int64      `db:"buyout_request_id"`
	LenderID          int64      `db:"lender_id"`
	Principal         int64      `db:"principal"`
	AnnualRatePercent float64    `db:"annual_rate_percent"`
	TenureMonths      int        `db:"tenure_months"`
	EMIAmount         int64      `db:"emi_amount"`
	TotalInterest     int64      `db:"total_interest"`
	TotalPayable      int64      `db:"total_payable"`
	Status            LoanStatus `db:"status"`
	DisbursedAt       *time.Time `db:"disbursed_at"`
	FirstEMIDate      *time.Time `db:"first_emi_date"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Terms returns the frozen repayment terms stored on the loan
func (l *Loan) Terms() LoanTerms {
	return LoanTerms{
		Principal:         l.Principal,
		AnnualRatePercent: l.AnnualRatePercent,
		TenureMonths:      l.TenureMonths,
		EMIAmount:         l.EMIAmount,
		TotalInterest:     l.TotalInterest,
		TotalPayable:      l.TotalPayable,
	}
}

// ApplyTerms stores computed terms on the loan
func (l *Loan) ApplyTerms(terms LoanTerms) {
	l.EMIAmount = terms.EMIAmount
	l.TotalInterest = terms.TotalInterest
	l.TotalPayable = terms.TotalPayable
}

// IsServicing reports whether the loan has a live repayment schedule
func (l *Loan) IsServicing() bool {
	return l.Status == LoanStatusDisbursed || l.Status == LoanStatusActive
}
