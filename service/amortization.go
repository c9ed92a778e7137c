package service

import (
	"math"
	"time"

	"buyoutengine/models"
	"buyoutengine/moneymath"

	"github.com/shopspring/decimal"
)

// ComputeEMI derives repayment terms for a principal using the standard
// reducing-balance formula:
//
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1)
//
// where r is the monthly rate and n the tenure in months. The zero-rate
// case divides the principal evenly instead; the general formula's
// denominator would be 0/0 there. Rounding is applied once per output,
// never between chained operations.
func ComputeEMI(principal int64, annualRatePercent float64, tenureMonths int) (models.LoanTerms, error) {
	if principal <= 0 {
		return models.LoanTerms{}, &InvalidInputError{Field: "principal", Reason: "must be positive"}
	}
	if tenureMonths < 1 {
		return models.LoanTerms{}, &InvalidInputError{Field: "tenure_months", Reason: "must be at least 1"}
	}
	if math.IsNaN(annualRatePercent) || math.IsInf(annualRatePercent, 0) {
		return models.LoanTerms{}, &InvalidInputError{Field: "annual_rate_percent", Reason: "must be finite"}
	}
	if annualRatePercent < 0 {
		return models.LoanTerms{}, &InvalidInputError{Field: "annual_rate_percent", Reason: "must not be negative"}
	}

	monthlyRate := decimal.NewFromFloat(annualRatePercent).Div(decimal.NewFromInt(1200))
	tenure := moneymath.FromInt(tenureMonths)

	var rawEMI decimal.Decimal
	if monthlyRate.IsZero() {
		rawEMI = moneymath.FromUnits(principal).Div(tenure)
	} else {
		one := decimal.NewFromInt(1)
		growth := one.Add(monthlyRate).Pow(tenure)
		rawEMI = moneymath.FromUnits(principal).Mul(monthlyRate).Mul(growth).Div(growth.Sub(one))
	}

	totalPayable := moneymath.Round(rawEMI.Mul(tenure))

	return models.LoanTerms{
		Principal:         principal,
		AnnualRatePercent: annualRatePercent,
		TenureMonths:      tenureMonths,
		EMIAmount:         moneymath.Round(rawEMI),
		TotalInterest:     totalPayable - principal,
		TotalPayable:      totalPayable,
	}, nil
}

// GenerateSchedule produces the full amortization schedule for frozen
// loan terms. Installment n falls due at firstEMIDate + (n-1) months;
// every installment owes the EMI except the last, which absorbs the
// rounding drift so the schedule sums exactly to the total payable.
//
// The schedule is generated exactly once, at disbursement. Regenerating
// it for an existing loan would move due dates candidates were already
// notified of, so there is deliberately no operation that does.
func GenerateSchedule(loanID int64, terms models.LoanTerms, firstEMIDate time.Time) ([]*models.EMIInstallment, error) {
	if terms.TenureMonths < 1 {
		return nil, &InvalidInputError{Field: "tenure_months", Reason: "must be at least 1"}
	}
	if firstEMIDate.IsZero() {
		return nil, &InvalidInputError{Field: "first_emi_date", Reason: "is required"}
	}

	anchor := DateOnly(firstEMIDate)
	installments := make([]*models.EMIInstallment, 0, terms.TenureMonths)

	for n := 1; n <= terms.TenureMonths; n++ {
		amountDue := terms.EMIAmount
		if n == terms.TenureMonths {
			amountDue = terms.TotalPayable - terms.EMIAmount*int64(terms.TenureMonths-1)
		}
		installments = append(installments, &models.EMIInstallment{
			LoanID:         loanID,
			SequenceNumber: n,
			DueDate:        anchor.AddDate(0, n-1, 0),
			AmountDue:      amountDue,
			Status:         models.InstallmentStatusPending,
		})
	}

	return installments, nil
}

// DateOnly strips the time component; due-date arithmetic works on
// calendar dates at midnight UTC, never instants.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
