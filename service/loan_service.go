package service

import (
	"context"
	"fmt"
	"time"

	"buyoutengine/events"
	"buyoutengine/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type loanService struct {
	uowFactory         UnitOfWorkFactory
	graceDays          int
	defaultOverdueDays int
}

// NewLoanService creates a new loan lifecycle service. graceDays and
// defaultOverdueDays come from lender policy configuration.
func NewLoanService(uowFactory UnitOfWorkFactory, graceDays, defaultOverdueDays int) LoanService {
	return &loanService{
		uowFactory:         uowFactory,
		graceDays:          graceDays,
		defaultOverdueDays: defaultOverdueDays,
	}
}

// Apply creates a loan application against a buyout request. The
// principal is the request's buyout amount; terms are computed now so
// underwriting can see them, and frozen again at approval.
func (s *loanService) Apply(ctx context.Context, buyoutRequestID, lenderID int64, annualRatePercent float64, tenureMonths int) (*models.Loan, error) {
	if lenderID <= 0 {
		return nil, &InvalidInputError{Field: "lender_id", Reason: "must be positive"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	request, err := uow.BuyoutRequestRepository().GetByID(ctx, buyoutRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyout request: %w", err)
	}
	if request == nil {
		return nil, &NotFoundError{Entity: "buyout request", ID: buyoutRequestID}
	}

	existing, err := uow.LoanRepository().GetByBuyoutRequest(ctx, buyoutRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing loan: %w", err)
	}
	if existing != nil {
		return nil, &InconsistentError{Reason: fmt.Sprintf("buyout request %d already has loan %d", buyoutRequestID, existing.ID)}
	}

	terms, err := ComputeEMI(request.BuyoutAmount, annualRatePercent, tenureMonths)
	if err != nil {
		return nil, err
	}

	loan := &models.Loan{
		Reference:         uuid.New(),
		BuyoutRequestID:   buyoutRequestID,
		LenderID:          lenderID,
		Principal:         terms.Principal,
		AnnualRatePercent: annualRatePercent,
		TenureMonths:      tenureMonths,
		Status:            models.LoanStatusApplied,
	}
	loan.ApplyTerms(terms)

	if err := uow.LoanRepository().Create(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loanID":    loan.ID,
		"lenderID":  lenderID,
		"principal": loan.Principal,
	}).Info("Loan application created")

	return loan, nil
}

// SubmitForReview moves an applied loan into underwriting
func (s *loanService) SubmitForReview(ctx context.Context, loanID int64) (*models.Loan, error) {
	return s.simpleTransition(ctx, loanID, models.LoanEventSubmitForReview, nil)
}

// Approve approves a loan under review. The terms are recomputed from
// the stored principal, rate and tenure and frozen on the loan record;
// after this point they never change.
func (s *loanService) Approve(ctx context.Context, loanID int64) (*models.Loan, error) {
	return s.simpleTransition(ctx, loanID, models.LoanEventApprove, func(loan *models.Loan) error {
		terms, err := ComputeEMI(loan.Principal, loan.AnnualRatePercent, loan.TenureMonths)
		if err != nil {
			return err
		}
		loan.ApplyTerms(terms)
		return nil
	})
}

// Reject rejects an applied or under-review loan
func (s *loanService) Reject(ctx context.Context, loanID int64) (*models.Loan, error) {
	return s.simpleTransition(ctx, loanID, models.LoanEventReject, nil)
}

// Disburse records the disbursement date and generates the EMI
// schedule, anchored at firstEMIDate. The schedule is created exactly
// once here; no other operation regenerates it.
func (s *loanService) Disburse(ctx context.Context, loanID int64, disbursedAt, firstEMIDate time.Time) (*models.Loan, error) {
	if disbursedAt.IsZero() {
		return nil, &InvalidInputError{Field: "disbursed_at", Reason: "is required"}
	}
	if firstEMIDate.IsZero() {
		return nil, &InvalidInputError{Field: "first_emi_date", Reason: "is required"}
	}

	disbursedDate := DateOnly(disbursedAt)
	firstDate := DateOnly(firstEMIDate)
	if firstDate.Before(disbursedDate) {
		return nil, &InvalidInputError{Field: "first_emi_date", Reason: "must not precede the disbursement date"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := s.lockLoan(ctx, uow, loanID)
	if err != nil {
		return nil, err
	}

	next, ok := loan.Status.NextStatus(models.LoanEventDisburse)
	if !ok {
		return nil, &InvalidTransitionError{LoanID: loanID, Status: loan.Status, Event: models.LoanEventDisburse}
	}

	schedule, err := GenerateSchedule(loan.ID, loan.Terms(), firstDate)
	if err != nil {
		return nil, err
	}
	if err := uow.InstallmentRepository().CreateSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	oldStatus := loan.Status
	loan.Status = next
	loan.DisbursedAt = &disbursedDate

	if err := uow.LoanRepository().Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	uow.EventBus().Publish(events.LoanStatusChangeEvent{
		LoanID:    loan.ID,
		OldStatus: oldStatus,
		NewStatus: loan.Status,
		Event:     models.LoanEventDisburse,
	})
	uow.EventBus().Publish(events.LoanDisbursedEvent{
		LoanID:           loan.ID,
		Principal:        loan.Principal,
		InstallmentCount: len(schedule),
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loanID":       loan.ID,
		"installments": len(schedule),
	}).Info("Loan disbursed")

	return loan, nil
}

// Activate records the first EMI date and starts repayment. The date
// must match the schedule generated at disbursement; accepting any
// other date would silently desynchronize the loan from the due dates
// candidates were notified of.
func (s *loanService) Activate(ctx context.Context, loanID int64, firstEMIDate time.Time) (*models.Loan, error) {
	if firstEMIDate.IsZero() {
		return nil, &InvalidInputError{Field: "first_emi_date", Reason: "is required"}
	}
	firstDate := DateOnly(firstEMIDate)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := s.lockLoan(ctx, uow, loanID)
	if err != nil {
		return nil, err
	}

	next, ok := loan.Status.NextStatus(models.LoanEventActivate)
	if !ok {
		return nil, &InvalidTransitionError{LoanID: loanID, Status: loan.Status, Event: models.LoanEventActivate}
	}

	first, err := uow.InstallmentRepository().GetBySequence(ctx, loanID, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to get first installment: %w", err)
	}
	if first == nil {
		return nil, &InconsistentError{Reason: fmt.Sprintf("loan %d has no schedule", loanID)}
	}
	if !first.DueDate.Equal(firstDate) {
		return nil, &InconsistentError{Reason: fmt.Sprintf(
			"first EMI date %s does not match the generated schedule (%s)",
			firstDate.Format("2006-01-02"), first.DueDate.Format("2006-01-02"))}
	}

	oldStatus := loan.Status
	loan.Status = next
	loan.FirstEMIDate = &firstDate

	if err := uow.LoanRepository().Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	uow.EventBus().Publish(events.LoanStatusChangeEvent{
		LoanID:    loan.ID,
		OldStatus: oldStatus,
		NewStatus: loan.Status,
		Event:     models.LoanEventActivate,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return loan, nil
}

// RecordPayment settles one installment of an active loan. The payment
// is whole-installment; the conditional update in the repository
// guarantees two concurrent payments for the same installment cannot
// both succeed.
func (s *loanService) RecordPayment(ctx context.Context, loanID int64, sequenceNumber int, paidAt time.Time) (*models.EMIInstallment, error) {
	if sequenceNumber < 1 {
		return nil, &InvalidInputError{Field: "sequence_number", Reason: "must be at least 1"}
	}
	if paidAt.IsZero() {
		return nil, &InvalidInputError{Field: "paid_at", Reason: "is required"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := s.lockLoan(ctx, uow, loanID)
	if err != nil {
		return nil, err
	}

	if _, ok := loan.Status.NextStatus(models.LoanEventRecordPayment); !ok {
		return nil, &InvalidTransitionError{LoanID: loanID, Status: loan.Status, Event: models.LoanEventRecordPayment}
	}

	installment, err := uow.InstallmentRepository().GetBySequence(ctx, loanID, sequenceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	if installment == nil {
		return nil, &NotFoundError{Entity: "installment", ID: int64(sequenceNumber)}
	}
	if !installment.IsPayable() {
		return nil, &InconsistentError{Reason: fmt.Sprintf("installment %d of loan %d is already %s", sequenceNumber, loanID, installment.Status)}
	}

	paidDate := DateOnly(paidAt)
	updated, err := uow.InstallmentRepository().MarkPaid(ctx, loanID, sequenceNumber, installment.AmountDue, paidDate)
	if err != nil {
		return nil, fmt.Errorf("failed to mark installment paid: %w", err)
	}
	if !updated {
		return nil, &InconsistentError{Reason: fmt.Sprintf("installment %d of loan %d was settled concurrently", sequenceNumber, loanID)}
	}

	installment.Status = models.InstallmentStatusPaid
	installment.AmountPaid = installment.AmountDue
	installment.PaidAt = &paidDate

	uow.EventBus().Publish(events.InstallmentPaidEvent{
		LoanID:         loanID,
		SequenceNumber: sequenceNumber,
		AmountPaid:     installment.AmountPaid,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loanID":   loanID,
		"sequence": sequenceNumber,
		"amount":   installment.AmountPaid,
	}).Info("EMI payment recorded")

	return installment, nil
}

// WaiveInstallment waives one payable installment of an active loan
func (s *loanService) WaiveInstallment(ctx context.Context, loanID int64, sequenceNumber int) (*models.EMIInstallment, error) {
	if sequenceNumber < 1 {
		return nil, &InvalidInputError{Field: "sequence_number", Reason: "must be at least 1"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := s.lockLoan(ctx, uow, loanID)
	if err != nil {
		return nil, err
	}

	if _, ok := loan.Status.NextStatus(models.LoanEventWaiveInstallment); !ok {
		return nil, &InvalidTransitionError{LoanID: loanID, Status: loan.Status, Event: models.LoanEventWaiveInstallment}
	}

	installment, err := uow.InstallmentRepository().GetBySequence(ctx, loanID, sequenceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	if installment == nil {
		return nil, &NotFoundError{Entity: "installment", ID: int64(sequenceNumber)}
	}
	if !installment.IsPayable() {
		return nil, &InconsistentError{Reason: fmt.Sprintf("installment %d of loan %d is already %s", sequenceNumber, loanID, installment.Status)}
	}

	updated, err := uow.InstallmentRepository().MarkWaived(ctx, loanID, sequenceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to waive installment: %w", err)
	}
	if !updated {
		return nil, &InconsistentError{Reason: fmt.Sprintf("installment %d of loan %d was settled concurrently", sequenceNumber, loanID)}
	}

	installment.Status = models.InstallmentStatusWaived

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return installment, nil
}

// CompleteFinalPayment closes an active loan. Guard: every installment
// must be settled first.
func (s *loanService) CompleteFinalPayment(ctx context.Context, loanID int64) (*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := s.lockLoan(ctx, uow, loanID)
	if err != nil {
		return nil, err
	}

	next, ok := loan.Status.NextStatus(models.LoanEventCompleteFinalPayment)
	if !ok {
		return nil, &InvalidTransitionError{LoanID: loanID, Status: loan.Status, Event: models.LoanEventCompleteFinalPayment}
	}

	installments, err := uow.InstallmentRepository().GetByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments: %w", err)
	}

	progress := SummarizeProgress(installments)
	if !progress.Complete() {
		return nil, &InconsistentError{Reason: fmt.Sprintf(
			"loan %d has %d unsettled installments", loanID,
			progress.TotalInstallments-progress.PaidCount-progress.WaivedCount)}
	}

	oldStatus := loan.Status
	loan.Status = next

	if err := uow.LoanRepository().Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	uow.EventBus().Publish(events.LoanStatusChangeEvent{
		LoanID:    loan.ID,
		OldStatus: oldStatus,
		NewStatus: loan.Status,
		Event:     models.LoanEventCompleteFinalPayment,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("loanID", loanID).Info("Loan closed")

	return loan, nil
}

// MarkDefaulted moves an active loan to defaulted. Guard: at least one
// unpaid installment must have been overdue for longer than the
// configured threshold as of the given date.
func (s *loanService) MarkDefaulted(ctx context.Context, loanID int64, asOf time.Time) (*models.Loan, error) {
	if asOf.IsZero() {
		return nil, &InvalidInputError{Field: "as_of", Reason: "is required"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := s.lockLoan(ctx, uow, loanID)
	if err != nil {
		return nil, err
	}

	next, ok := loan.Status.NextStatus(models.LoanEventMarkDefaulted)
	if !ok {
		return nil, &InvalidTransitionError{LoanID: loanID, Status: loan.Status, Event: models.LoanEventMarkDefaulted}
	}

	installments, err := uow.InstallmentRepository().GetByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments: %w", err)
	}

	maxOverdue := maxOverdueDays(installments, asOf)
	if maxOverdue <= s.defaultOverdueDays {
		return nil, &InconsistentError{Reason: fmt.Sprintf(
			"loan %d is %d days overdue, below the %d-day default threshold", loanID, maxOverdue, s.defaultOverdueDays)}
	}

	oldStatus := loan.Status
	loan.Status = next

	if err := uow.LoanRepository().Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	uow.EventBus().Publish(events.LoanStatusChangeEvent{
		LoanID:    loan.ID,
		OldStatus: oldStatus,
		NewStatus: loan.Status,
		Event:     models.LoanEventMarkDefaulted,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loanID":      loanID,
		"overdueDays": maxOverdue,
	}).Warn("Loan marked defaulted")

	return loan, nil
}

// GetLoan retrieves a loan by ID
func (s *loanService) GetLoan(ctx context.Context, loanID int64) (*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, &NotFoundError{Entity: "loan", ID: loanID}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return loan, nil
}

// simpleTransition handles transitions whose only side effect touches
// the loan row itself. mutate, when given, runs after the transition
// check and before the update.
func (s *loanService) simpleTransition(ctx context.Context, loanID int64, event models.LoanEvent, mutate func(*models.Loan) error) (*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := s.lockLoan(ctx, uow, loanID)
	if err != nil {
		return nil, err
	}

	next, ok := loan.Status.NextStatus(event)
	if !ok {
		return nil, &InvalidTransitionError{LoanID: loanID, Status: loan.Status, Event: event}
	}

	if mutate != nil {
		if err := mutate(loan); err != nil {
			return nil, err
		}
	}

	oldStatus := loan.Status
	loan.Status = next

	if err := uow.LoanRepository().Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	uow.EventBus().Publish(events.LoanStatusChangeEvent{
		LoanID:    loan.ID,
		OldStatus: oldStatus,
		NewStatus: loan.Status,
		Event:     event,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loanID": loan.ID,
		"event":  event,
		"status": loan.Status,
	}).Info("Loan transitioned")

	return loan, nil
}

func (s *loanService) lockLoan(ctx context.Context, uow UnitOfWork, loanID int64) (*models.Loan, error) {
	loan, err := uow.LoanRepository().GetByIDForUpdate(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, &NotFoundError{Entity: "loan", ID: loanID}
	}
	return loan, nil
}

// maxOverdueDays returns the age in days of the oldest unpaid, past-due
// installment as of the given date.
func maxOverdueDays(installments []*models.EMIInstallment, asOf time.Time) int {
	asOfDate := DateOnly(asOf)

	max := 0
	for _, installment := range installments {
		if installment.IsSettled() {
			continue
		}
		if installment.DueDate.Before(asOfDate) {
			days := int(asOfDate.Sub(installment.DueDate).Hours() / 24)
			if days > max {
				max = days
			}
		}
	}
	return max
}
