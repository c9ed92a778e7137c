package models

import (
	"time"

	"github.com/google/uuid"
)

// BuyoutQuote is the result of a buyout calculation. Amounts are in
// minor currency units. A quote is not persisted; see BuyoutRequest.
type BuyoutQuote struct {
	MonthlySalary    int64 `json:"monthly_salary"`
	NoticePeriodDays int   `json:"notice_period_days"`
	DailySalary      int64 `json:"daily_salary"`
	BuyoutAmount     int64 `json:"buyout_amount"`
}

// BuyoutRequest represents a candidate's or company's request to buy out
// a notice period. Once a loan references it, the request is immutable;
// renegotiation means creating a new request.
type BuyoutRequest struct {
	ID               int64     `db:"id"`
	Reference        uuid.UUID `db:"reference"`
	CandidateID      int64     `db:"candidate_id"`
	MonthlySalary    int64     `db:"monthly_salary"`
	NoticePeriodDays int       `db:"notice_period_days"`
	DailySalary      int64     `db:"daily_salary"`
	BuyoutAmount     int64     `db:"buyout_amount"`
	CreatedAt        time.Time `db:"created_at"`
}

// Quote returns the calculation snapshot stored on the request.
func (r *BuyoutRequest) Quote() BuyoutQuote {
	return BuyoutQuote{
		MonthlySalary:    r.MonthlySalary,
		NoticePeriodDays: r.NoticePeriodDays,
		DailySalary:      r.DailySalary,
		BuyoutAmount:     r.BuyoutAmount,
	}
}
