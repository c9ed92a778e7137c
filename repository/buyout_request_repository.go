package repository

import (
	"context"
	"fmt"

	"buyoutengine/database"
	"buyoutengine/models"

	"github.com/jackc/pgx/v5"
)

// BuyoutRequestRepository implements buyout request data access
type BuyoutRequestRepository struct {
	q queryable
}

// NewBuyoutRequestRepository creates a new buyout request repository
func NewBuyoutRequestRepository(db *database.DB) *BuyoutRequestRepository {
	return &BuyoutRequestRepository{q: db.Pool}
}

// newBuyoutRequestRepositoryWithTx creates a new buyout request repository with a transaction
func newBuyoutRequestRepositoryWithTx(tx queryable) *BuyoutRequestRepository {
	return &BuyoutRequestRepository{q: tx}
}

// Create persists a new buyout request
func (r *BuyoutRequestRepository) Create(ctx context.Context, request *models.BuyoutRequest) error {
	query := `
		INSERT INTO buyout_requests (reference, candidate_id, monthly_salary, notice_period_days, daily_salary, buyout_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		request.Reference,
		request.CandidateID,
		request.MonthlySalary,
		request.NoticePeriodDays,
		request.DailySalary,
		request.BuyoutAmount,
	).Scan(&request.ID, &request.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create buyout request: %w", err)
	}

	return nil
}

// GetByID retrieves a buyout request by its ID
func (r *BuyoutRequestRepository) GetByID(ctx context.Context, id int64) (*models.BuyoutRequest, error) {
	query := `
		SELECT id, reference, candidate_id, monthly_salary, notice_period_days, daily_salary, buyout_amount, created_at
		FROM buyout_requests
		WHERE id = $1
	`

	request, err := scanBuyoutRequest(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get buyout request %d: %w", id, err)
	}

	return request, nil
}

// GetByCandidate returns the most recent requests for a candidate
func (r *BuyoutRequestRepository) GetByCandidate(ctx context.Context, candidateID int64, limit int) ([]*models.BuyoutRequest, error) {
	query := `
		SELECT id, reference, candidate_id, monthly_salary, notice_period_days, daily_salary, buyout_amount, created_at
		FROM buyout_requests
		WHERE candidate_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyout requests for candidate %d: %w", candidateID, err)
	}
	defer rows.Close()

	var requests []*models.BuyoutRequest
	for rows.Next() {
		request, err := scanBuyoutRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan buyout request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

func scanBuyoutRequest(row pgx.Row) (*models.BuyoutRequest, error) {
	var request models.BuyoutRequest
	err := row.Scan(
		&request.ID,
		&request.Reference,
		&request.CandidateID,
		&request.MonthlySalary,
		&request.NoticePeriodDays,
		&request.DailySalary,
		&request.BuyoutAmount,
		&request.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}
