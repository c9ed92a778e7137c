package service

import (
	"context"
	"time"

	"buyoutengine/events"
	"buyoutengine/models"

	"github.com/stretchr/testify/mock"
)

// MockBuyoutRequestRepository is a mock implementation of BuyoutRequestRepository
type MockBuyoutRequestRepository struct {
	mock.Mock
}

func (m *MockBuyoutRequestRepository) Create(ctx context.Context, request *models.BuyoutRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockBuyoutRequestRepository) GetByID(ctx context.Context, id int64) (*models.BuyoutRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BuyoutRequest), args.Error(1)
}

func (m *MockBuyoutRequestRepository) GetByCandidate(ctx context.Context, candidateID int64, limit int) ([]*models.BuyoutRequest, error) {
	args := m.Called(ctx, candidateID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BuyoutRequest), args.Error(1)
}

// MockLoanRepository is a mock implementation of LoanRepository
type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id int64) (*models.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *models.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByLender(ctx context.Context, lenderID int64, status *models.LoanStatus) ([]*models.Loan, error) {
	args := m.Called(ctx, lenderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByBuyoutRequest(ctx context.Context, buyoutRequestID int64) (*models.Loan, error) {
	args := m.Called(ctx, buyoutRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

// MockInstallmentRepository is a mock implementation of InstallmentRepository
type MockInstallmentRepository struct {
	mock.Mock
}

func (m *MockInstallmentRepository) CreateSchedule(ctx context.Context, installments []*models.EMIInstallment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockInstallmentRepository) GetByLoan(ctx context.Context, loanID int64) ([]*models.EMIInstallment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EMIInstallment), args.Error(1)
}

func (m *MockInstallmentRepository) GetBySequence(ctx context.Context, loanID int64, sequenceNumber int) (*models.EMIInstallment, error) {
	args := m.Called(ctx, loanID, sequenceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EMIInstallment), args.Error(1)
}

func (m *MockInstallmentRepository) MarkPaid(ctx context.Context, loanID int64, sequenceNumber int, amountPaid int64, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, loanID, sequenceNumber, amountPaid, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockInstallmentRepository) MarkWaived(ctx context.Context, loanID int64, sequenceNumber int) (bool, error) {
	args := m.Called(ctx, loanID, sequenceNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockInstallmentRepository) MarkOverdue(ctx context.Context, loanID int64, sequenceNumbers []int) error {
	args := m.Called(ctx, loanID, sequenceNumbers)
	return args.Error(0)
}

// MockQuoteCache is a mock implementation of QuoteCache
type MockQuoteCache struct {
	mock.Mock
}

func (m *MockQuoteCache) Get(ctx context.Context, key string) (string, bool) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1)
}

func (m *MockQuoteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Published
// events are captured on the mock so tests can assert on them after
// the fact.
type MockUnitOfWork struct {
	mock.Mock
	buyoutRepo      BuyoutRequestRepository
	loanRepo        LoanRepository
	installmentRepo InstallmentRepository
	published       []events.Event
}

// SetRepositories injects the repositories the unit of work hands out
func (m *MockUnitOfWork) SetRepositories(buyoutRepo BuyoutRequestRepository, loanRepo LoanRepository, installmentRepo InstallmentRepository) {
	m.buyoutRepo = buyoutRepo
	m.loanRepo = loanRepo
	m.installmentRepo = installmentRepo
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) BuyoutRequestRepository() BuyoutRequestRepository {
	return m.buyoutRepo
}

func (m *MockUnitOfWork) LoanRepository() LoanRepository {
	return m.loanRepo
}

func (m *MockUnitOfWork) InstallmentRepository() InstallmentRepository {
	return m.installmentRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return &capturingPublisher{uow: m}
}

// PublishedEvents returns the events published during the unit of work
func (m *MockUnitOfWork) PublishedEvents() []events.Event {
	return m.published
}

type capturingPublisher struct {
	uow *MockUnitOfWork
}

func (p *capturingPublisher) Publish(event events.Event) {
	p.uow.published = append(p.uow.published, event)
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
