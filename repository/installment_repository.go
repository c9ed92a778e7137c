package repository

import (
	"context"
	"fmt"
	"time"

	"buyoutengine/database"
	"buyoutengine/models"

	"github.com/jackc/pgx/v5"
)

// InstallmentRepository implements EMI schedule data access
type InstallmentRepository struct {
	q queryable
}

// NewInstallmentRepository creates a new installment repository
func NewInstallmentRepository(db *database.DB) *InstallmentRepository {
	return &InstallmentRepository{q: db.Pool}
}

// newInstallmentRepositoryWithTx creates a new installment repository with a transaction
func newInstallmentRepositoryWithTx(tx queryable) *InstallmentRepository {
	return &InstallmentRepository{q: tx}
}

// CreateSchedule persists a full schedule. The caller runs inside a
// transaction, so partial schedules never become visible.
func (r *InstallmentRepository) CreateSchedule(ctx context.Context, installments []*models.EMIInstallment) error {
	query := `
		INSERT INTO emi_installments (loan_id, sequence_number, due_date, amount_due, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	for _, installment := range installments {
		err := r.q.QueryRow(ctx, query,
			installment.LoanID,
			installment.SequenceNumber,
			installment.DueDate,
			installment.AmountDue,
			installment.Status,
		).Scan(&installment.ID)
		if err != nil {
			return fmt.Errorf("failed to create installment %d: %w", installment.SequenceNumber, err)
		}
	}

	return nil
}

// GetByLoan returns all installments for a loan ordered by sequence
func (r *InstallmentRepository) GetByLoan(ctx context.Context, loanID int64) ([]*models.EMIInstallment, error) {
	query := `
		SELECT id, loan_id, sequence_number, due_date, amount_due, amount_paid, paid_at, status
		FROM emi_installments
		WHERE loan_id = $1
		ORDER BY sequence_number
	`

	rows, err := r.q.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments for loan %d: %w", loanID, err)
	}
	defer rows.Close()

	var installments []*models.EMIInstallment
	for rows.Next() {
		installment, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		installments = append(installments, installment)
	}

	return installments, rows.Err()
}

// GetBySequence retrieves a single installment
func (r *InstallmentRepository) GetBySequence(ctx context.Context, loanID int64, sequenceNumber int) (*models.EMIInstallment, error) {
	query := `
		SELECT id, loan_id, sequence_number, due_date, amount_due, amount_paid, paid_at, status
		FROM emi_installments
		WHERE loan_id = $1 AND sequence_number = $2
	`

	installment, err := scanInstallment(r.q.QueryRow(ctx, query, loanID, sequenceNumber))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installment %d of loan %d: %w", sequenceNumber, loanID, err)
	}

	return installment, nil
}

// MarkPaid settles an installment if it is still payable. The status
// guard in the WHERE clause makes the settle conditional: of two
// concurrent payments for the same installment, exactly one sees a row.
func (r *InstallmentRepository) MarkPaid(ctx context.Context, loanID int64, sequenceNumber int, amountPaid int64, paidAt time.Time) (bool, error) {
	query := `
		UPDATE emi_installments
		SET status = $1, amount_paid = $2, paid_at = $3
		WHERE loan_id = $4 AND sequence_number = $5 AND status IN ($6, $7)
	`

	result, err := r.q.Exec(ctx, query,
		models.InstallmentStatusPaid,
		amountPaid,
		paidAt,
		loanID,
		sequenceNumber,
		models.InstallmentStatusPending,
		models.InstallmentStatusOverdue,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark installment %d of loan %d paid: %w", sequenceNumber, loanID, err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkWaived waives a payable installment
func (r *InstallmentRepository) MarkWaived(ctx context.Context, loanID int64, sequenceNumber int) (bool, error) {
	query := `
		UPDATE emi_installments
		SET status = $1
		WHERE loan_id = $2 AND sequence_number = $3 AND status IN ($4, $5)
	`

	result, err := r.q.Exec(ctx, query,
		models.InstallmentStatusWaived,
		loanID,
		sequenceNumber,
		models.InstallmentStatusPending,
		models.InstallmentStatusOverdue,
	)
	if err != nil {
		return false, fmt.Errorf("failed to waive installment %d of loan %d: %w", sequenceNumber, loanID, err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkOverdue sets the given pending installments to overdue
func (r *InstallmentRepository) MarkOverdue(ctx context.Context, loanID int64, sequenceNumbers []int) error {
	query := `
		UPDATE emi_installments
		SET status = $1
		WHERE loan_id = $2 AND sequence_number = ANY($3) AND status = $4
	`

	_, err := r.q.Exec(ctx, query,
		models.InstallmentStatusOverdue,
		loanID,
		sequenceNumbers,
		models.InstallmentStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark installments overdue for loan %d: %w", loanID, err)
	}

	return nil
}

func scanInstallment(row pgx.Row) (*models.EMIInstallment, error) {
	var installment models.EMIInstallment
	err := row.Scan(
		&installment.ID,
		&installment.LoanID,
		&installment.SequenceNumber,
		&installment.DueDate,
		&installment.AmountDue,
		&installment.AmountPaid,
		&installment.PaidAt,
		&installment.Status,
	)
	if err != nil {
		return nil, err
	}
	return &installment, nil
}
