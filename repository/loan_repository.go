package repository

import (
	"context"
	"fmt"

	"buyoutengine/database"
	"buyoutengine/models"

	"github.com/jackc/pgx/v5"
)

const loanColumns = `
	id, reference, buyout_request_id, lender_id, principal, annual_rate_percent,
	tenure_months, emi_amount, total_interest, total_payable, status,
	disbursed_at, first_emi_date, created_at, updated_at
`

// LoanRepository implements loan data access
type LoanRepository struct {
	q queryable
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *database.DB) *LoanRepository {
	return &LoanRepository{q: db.Pool}
}

// newLoanRepositoryWithTx creates a new loan repository with a transaction
func newLoanRepositoryWithTx(tx queryable) *LoanRepository {
	return &LoanRepository{q: tx}
}

// Create persists a new loan application
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	query := `
		INSERT INTO loans (reference, buyout_request_id, lender_id, principal, annual_rate_percent,
			tenure_months, emi_amount, total_interest, total_payable, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		loan.Reference,
		loan.BuyoutRequestID,
		loan.LenderID,
		loan.Principal,
		loan.AnnualRatePercent,
		loan.TenureMonths,
		loan.EMIAmount,
		loan.TotalInterest,
		loan.TotalPayable,
		loan.Status,
	).Scan(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}

	return nil
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	loan, err := scanLoan(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %d: %w", id, err)
	}

	return loan, nil
}

// GetByIDForUpdate retrieves a loan and locks its row, serializing
// lifecycle transitions per loan for the duration of the transaction.
func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	loan, err := scanLoan(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock loan %d: %w", id, err)
	}

	return loan, nil
}

// Update persists the loan's mutable fields
func (r *LoanRepository) Update(ctx context.Context, loan *models.Loan) error {
	query := `
		UPDATE loans
		SET emi_amount = $1,
			total_interest = $2,
			total_payable = $3,
			status = $4,
			disbursed_at = $5,
			first_emi_date = $6,
			updated_at = NOW()
		WHERE id = $7
	`

	result, err := r.q.Exec(ctx, query,
		loan.EMIAmount,
		loan.TotalInterest,
		loan.TotalPayable,
		loan.Status,
		loan.DisbursedAt,
		loan.FirstEMIDate,
		loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan %d: %w", loan.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("loan %d not found", loan.ID)
	}

	return nil
}

// GetByLender returns loans owned by a lender, optionally filtered by status
func (r *LoanRepository) GetByLender(ctx context.Context, lenderID int64, status *models.LoanStatus) ([]*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE lender_id = $1`
	args := []any{lenderID}

	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get loans for lender %d: %w", lenderID, err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}

	return loans, rows.Err()
}

// GetByBuyoutRequest returns the loan created from a buyout request
func (r *LoanRepository) GetByBuyoutRequest(ctx context.Context, buyoutRequestID int64) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE buyout_request_id = $1`

	loan, err := scanLoan(r.q.QueryRow(ctx, query, buyoutRequestID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan for buyout request %d: %w", buyoutRequestID, err)
	}

	return loan, nil
}

func scanLoan(row pgx.Row) (*models.Loan, error) {
	var loan models.Loan
	err := row.Scan(
		&loan.ID,
		&loan.Reference,
		&loan.BuyoutRequestID,
		&loan.LenderID,
		&loan.Principal,
		&loan.AnnualRatePercent,
		&loan.TenureMonths,
		&loan.EMIAmount,
		&loan.TotalInterest,
		&loan.TotalPayable,
		&loan.Status,
		&loan.DisbursedAt,
		&loan.FirstEMIDate,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}
