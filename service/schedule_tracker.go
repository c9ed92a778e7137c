package service

import (
	"context"
	"fmt"
	"time"

	"buyoutengine/models"
)

// Classify walks a schedule against a clock: an unpaid installment due
// strictly more than graceDays before asOf becomes overdue; anything
// due today or later stays pending. Settled installments are never
// touched. Statuses are updated in place and the changed sequence
// numbers returned.
func Classify(installments []*models.EMIInstallment, asOf time.Time, graceDays int) []int {
	asOfDate := DateOnly(asOf)

	var changed []int
	for _, installment := range installments {
		if installment.IsSettled() {
			continue
		}

		deadline := installment.DueDate.AddDate(0, 0, graceDays)
		if deadline.Before(asOfDate) {
			if installment.Status != models.InstallmentStatusOverdue {
				installment.Status = models.InstallmentStatusOverdue
				changed = append(changed, installment.SequenceNumber)
			}
		}
	}
	return changed
}

// SummarizeProgress aggregates installment states into the repayment
// progress shown on loan detail views. Waived installments count toward
// completion but not toward the paid amount.
func SummarizeProgress(installments []*models.EMIInstallment) models.RepaymentProgress {
	progress := models.RepaymentProgress{
		TotalInstallments: len(installments),
	}

	for _, installment := range installments {
		switch installment.Status {
		case models.InstallmentStatusPaid:
			progress.PaidCount++
			progress.PaidAmount += installment.AmountPaid
		case models.InstallmentStatusWaived:
			progress.WaivedCount++
		case models.InstallmentStatusOverdue:
			progress.OverdueCount++
			progress.RemainingAmount += installment.AmountDue
		default:
			progress.RemainingAmount += installment.AmountDue
		}
	}

	if progress.TotalInstallments > 0 {
		settled := progress.PaidCount + progress.WaivedCount
		progress.PercentComplete = float64(settled) / float64(progress.TotalInstallments) * 100
	}

	return progress
}

type trackerService struct {
	uowFactory UnitOfWorkFactory
	graceDays  int
}

// NewTrackerService creates a new schedule tracker service
func NewTrackerService(uowFactory UnitOfWorkFactory, graceDays int) TrackerService {
	return &trackerService{
		uowFactory: uowFactory,
		graceDays:  graceDays,
	}
}

// Schedule returns a loan's installments with in-memory classification
// applied as of the given date. Nothing is persisted; callers that need
// the stored statuses updated use RefreshStatuses.
func (s *trackerService) Schedule(ctx context.Context, loanID int64, asOf time.Time) ([]*models.EMIInstallment, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	installments, err := s.loadSchedule(ctx, uow, loanID)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	Classify(installments, asOf, s.graceDays)
	return installments, nil
}

// RefreshStatuses persists overdue statuses for a loan as of the given
// date and returns how many installments changed.
func (s *trackerService) RefreshStatuses(ctx context.Context, loanID int64, asOf time.Time) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Lock the loan so the refresh serializes with payments
	loan, err := uow.LoanRepository().GetByIDForUpdate(ctx, loanID)
	if err != nil {
		return 0, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return 0, &NotFoundError{Entity: "loan", ID: loanID}
	}

	installments, err := uow.InstallmentRepository().GetByLoan(ctx, loanID)
	if err != nil {
		return 0, fmt.Errorf("failed to get installments: %w", err)
	}

	changed := Classify(installments, asOf, s.graceDays)
	if len(changed) > 0 {
		if err := uow.InstallmentRepository().MarkOverdue(ctx, loanID, changed); err != nil {
			return 0, fmt.Errorf("failed to mark installments overdue: %w", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(changed), nil
}

// Progress returns aggregate repayment progress for a loan
func (s *trackerService) Progress(ctx context.Context, loanID int64) (models.RepaymentProgress, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return models.RepaymentProgress{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	installments, err := s.loadSchedule(ctx, uow, loanID)
	if err != nil {
		return models.RepaymentProgress{}, err
	}

	if err := uow.Commit(); err != nil {
		return models.RepaymentProgress{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return SummarizeProgress(installments), nil
}

func (s *trackerService) loadSchedule(ctx context.Context, uow UnitOfWork, loanID int64) ([]*models.EMIInstallment, error) {
	loan, err := uow.LoanRepository().GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, &NotFoundError{Entity: "loan", ID: loanID}
	}

	installments, err := uow.InstallmentRepository().GetByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments: %w", err)
	}

	return installments, nil
}
