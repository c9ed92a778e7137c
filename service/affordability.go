package service

import (
	"buyoutengine/models"
	"buyoutengine/moneymath"
)

// Evaluate computes the EMI-to-income ratio and flags whether the EMI
// fits under the lender's threshold. The threshold is policy, not a law
// of nature: 0.30 platform-wide by default, overridable per lender via
// configuration.
func Evaluate(emiAmount, monthlyIncome int64, threshold float64) (models.Affordability, error) {
	if monthlyIncome <= 0 {
		return models.Affordability{}, &InvalidInputError{Field: "monthly_income", Reason: "must be positive"}
	}
	if emiAmount < 0 {
		return models.Affordability{}, &InvalidInputError{Field: "emi_amount", Reason: "must not be negative"}
	}

	ratio := moneymath.Ratio(emiAmount, monthlyIncome)

	return models.Affordability{
		EMIAmount:     emiAmount,
		MonthlyIncome: monthlyIncome,
		Ratio:         ratio,
		Threshold:     threshold,
		Affordable:    ratio < threshold,
	}, nil
}
