package service

import (
	"context"
	"time"

	"buyoutengine/events"
	"buyoutengine/models"
)

// BuyoutRequestRepository defines the interface for buyout request data access
type BuyoutRequestRepository interface {
	// Create persists a new buyout request
	Create(ctx context.Context, request *models.BuyoutRequest) error

	// GetByID retrieves a buyout request by its ID
	GetByID(ctx context.Context, id int64) (*models.BuyoutRequest, error)

	// GetByCandidate returns the most recent requests for a candidate
	GetByCandidate(ctx context.Context, candidateID int64, limit int) ([]*models.BuyoutRequest, error)
}

// LoanRepository defines the interface for loan data access
type LoanRepository interface {
	// Create persists a new loan application
	Create(ctx context.Context, loan *models.Loan) error

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id int64) (*models.Loan, error)

	// GetByIDForUpdate retrieves a loan and locks its row for the
	// duration of the transaction, serializing lifecycle transitions
	// per loan
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Loan, error)

	// Update persists the loan's mutable fields (terms, status, dates)
	Update(ctx context.Context, loan *models.Loan) error

	// GetByLender returns loans owned by a lender, optionally filtered
	// by status
	GetByLender(ctx context.Context, lenderID int64, status *models.LoanStatus) ([]*models.Loan, error)

	// GetByBuyoutRequest returns the loan created from a buyout
	// request, or nil when none exists yet
	GetByBuyoutRequest(ctx context.Context, buyoutRequestID int64) (*models.Loan, error)
}

// InstallmentRepository defines the interface for EMI schedule data access
type InstallmentRepository interface {
	// CreateSchedule persists a full schedule atomically. Called once,
	// at disbursement; a schedule is never regenerated.
	CreateSchedule(ctx context.Context, installments []*models.EMIInstallment) error

	// GetByLoan returns all installments for a loan ordered by sequence
	GetByLoan(ctx context.Context, loanID int64) ([]*models.EMIInstallment, error)

	// GetBySequence retrieves a single installment
	GetBySequence(ctx context.Context, loanID int64, sequenceNumber int) (*models.EMIInstallment, error)

	// MarkPaid settles an installment if it is still payable. Returns
	// false without error when the installment was already settled, so
	// concurrent payments for the same installment cannot both succeed.
	MarkPaid(ctx context.Context, loanID int64, sequenceNumber int, amountPaid int64, paidAt time.Time) (bool, error)

	// MarkWaived waives a payable installment. Same conditional
	// semantics as MarkPaid.
	MarkWaived(ctx context.Context, loanID int64, sequenceNumber int) (bool, error)

	// MarkOverdue sets the given pending installments to overdue
	MarkOverdue(ctx context.Context, loanID int64, sequenceNumbers []int) error
}

// QuoteCache defines the interface for caching calculator responses
type QuoteCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	BuyoutRequestRepository() BuyoutRequestRepository
	LoanRepository() LoanRepository
	InstallmentRepository() InstallmentRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// BuyoutService defines the interface for buyout quoting operations
type BuyoutService interface {
	// Quote computes a buyout quote without persisting anything
	Quote(ctx context.Context, monthlySalary int64, noticePeriodDays int) (models.BuyoutQuote, error)

	// CreateRequest computes and persists a buyout request for a candidate
	CreateRequest(ctx context.Context, candidateID int64, monthlySalary int64, noticePeriodDays int) (*models.BuyoutRequest, error)

	// GetRequest retrieves a stored buyout request
	GetRequest(ctx context.Context, id int64) (*models.BuyoutRequest, error)
}

// LoanService defines the interface for loan lifecycle operations.
// Every method validates the transition against the loan's current
// status and returns *InvalidTransitionError when the event does not
// apply; a failed call leaves the loan exactly as it was.
type LoanService interface {
	// Apply creates a loan application against a buyout request
	Apply(ctx context.Context, buyoutRequestID, lenderID int64, annualRatePercent float64, tenureMonths int) (*models.Loan, error)

	// SubmitForReview moves an applied loan into underwriting
	SubmitForReview(ctx context.Context, loanID int64) (*models.Loan, error)

	// Approve approves a loan under review and freezes its terms
	Approve(ctx context.Context, loanID int64) (*models.Loan, error)

	// Reject rejects an applied or under-review loan
	Reject(ctx context.Context, loanID int64) (*models.Loan, error)

	// Disburse records the disbursement date and generates the EMI
	// schedule anchored at firstEMIDate
	Disburse(ctx context.Context, loanID int64, disbursedAt, firstEMIDate time.Time) (*models.Loan, error)

	// Activate records the first EMI date and starts repayment
	Activate(ctx context.Context, loanID int64, firstEMIDate time.Time) (*models.Loan, error)

	// RecordPayment settles one installment of an active loan
	RecordPayment(ctx context.Context, loanID int64, sequenceNumber int, paidAt time.Time) (*models.EMIInstallment, error)

	// WaiveInstallment waives one payable installment of an active loan
	WaiveInstallment(ctx context.Context, loanID int64, sequenceNumber int) (*models.EMIInstallment, error)

	// CompleteFinalPayment closes an active loan once every installment
	// is settled
	CompleteFinalPayment(ctx context.Context, loanID int64) (*models.Loan, error)

	// MarkDefaulted moves an active loan to defaulted once an unpaid
	// installment is overdue past the configured threshold
	MarkDefaulted(ctx context.Context, loanID int64, asOf time.Time) (*models.Loan, error)

	// GetLoan retrieves a loan by ID
	GetLoan(ctx context.Context, loanID int64) (*models.Loan, error)
}

// TrackerService defines the interface for schedule inspection
type TrackerService interface {
	// Schedule returns a loan's installments with statuses classified
	// as of the given date
	Schedule(ctx context.Context, loanID int64, asOf time.Time) ([]*models.EMIInstallment, error)

	// RefreshStatuses persists overdue statuses for a loan as of the
	// given date and returns how many installments changed
	RefreshStatuses(ctx context.Context, loanID int64, asOf time.Time) (int, error)

	// Progress returns aggregate repayment progress for a loan
	Progress(ctx context.Context, loanID int64) (models.RepaymentProgress, error)
}
