package testutil

import (
	"time"

	"buyoutengine/models"

	"github.com/google/uuid"
)

// CreateTestBuyoutRequest creates a buyout request with default values.
// The amounts match a 100000-per-month salary over a 90-day notice.
func CreateTestBuyoutRequest(candidateID int64) *models.BuyoutRequest {
	return &models.BuyoutRequest{
		Reference:        uuid.New(),
		CandidateID:      candidateID,
		MonthlySalary:    100000,
		NoticePeriodDays: 90,
		DailySalary:      3333,
		BuyoutAmount:     299970,
	}
}

// CreateTestLoan creates an applied loan with default terms against the
// given buyout request. Terms match a 300000 principal at 12% over 12
// months.
func CreateTestLoan(buyoutRequestID, lenderID int64) *models.Loan {
	return &models.Loan{
		Reference:         uuid.New(),
		BuyoutRequestID:   buyoutRequestID,
		LenderID:          lenderID,
		Principal:         300000,
		AnnualRatePercent: 12,
		TenureMonths:      12,
		EMIAmount:         26655,
		TotalInterest:     19856,
		TotalPayable:      319856,
		Status:            models.LoanStatusApplied,
	}
}

// CreateTestLoanWithStatus creates a loan in a specific lifecycle status
func CreateTestLoanWithStatus(buyoutRequestID, lenderID int64, status models.LoanStatus) *models.Loan {
	loan := CreateTestLoan(buyoutRequestID, lenderID)
	loan.Status = status
	return loan
}

// CreateTestInstallment creates a pending installment for a loan
func CreateTestInstallment(loanID int64, sequenceNumber int, dueDate time.Time, amountDue int64) *models.EMIInstallment {
	return &models.EMIInstallment{
		LoanID:         loanID,
		SequenceNumber: sequenceNumber,
		DueDate:        dueDate,
		AmountDue:      amountDue,
		Status:         models.InstallmentStatusPending,
	}
}
