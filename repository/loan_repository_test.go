package repository

import (
	"context"
	"testing"
	"time"

	"buyoutengine/events"
	"buyoutengine/models"
	"buyoutengine/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	requestRepo := NewBuyoutRequestRepository(testDB.DB)
	loanRepo := NewLoanRepository(testDB.DB)

	request := testutil.CreateTestBuyoutRequest(1001)
	require.NoError(t, requestRepo.Create(ctx, request))
	require.NotZero(t, request.ID)

	loan := testutil.CreateTestLoan(request.ID, 2001)
	require.NoError(t, loanRepo.Create(ctx, loan))
	require.NotZero(t, loan.ID)

	fetched, err := loanRepo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, loan.Reference, fetched.Reference)
	assert.Equal(t, request.ID, fetched.BuyoutRequestID)
	assert.Equal(t, int64(300000), fetched.Principal)
	assert.Equal(t, int64(26655), fetched.EMIAmount)
	assert.Equal(t, models.LoanStatusApplied, fetched.Status)
	assert.Nil(t, fetched.DisbursedAt)
	assert.Nil(t, fetched.FirstEMIDate)
}

func TestLoanRepository_GetByID_NotFound(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	loanRepo := NewLoanRepository(testDB.DB)

	loan, err := loanRepo.GetByID(ctx, 99999)
	require.NoError(t, err)
	assert.Nil(t, loan)
}

func TestLoanRepository_Update(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	requestRepo := NewBuyoutRequestRepository(testDB.DB)
	loanRepo := NewLoanRepository(testDB.DB)

	request := testutil.CreateTestBuyoutRequest(1001)
	require.NoError(t, requestRepo.Create(ctx, request))

	loan := testutil.CreateTestLoan(request.ID, 2001)
	require.NoError(t, loanRepo.Create(ctx, loan))

	disbursedAt := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	loan.Status = models.LoanStatusDisbursed
	loan.DisbursedAt = &disbursedAt
	require.NoError(t, loanRepo.Update(ctx, loan))

	fetched, err := loanRepo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, models.LoanStatusDisbursed, fetched.Status)
	require.NotNil(t, fetched.DisbursedAt)
	assert.True(t, fetched.DisbursedAt.Equal(disbursedAt))
}

func TestLoanRepository_GetByBuyoutRequest(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	requestRepo := NewBuyoutRequestRepository(testDB.DB)
	loanRepo := NewLoanRepository(testDB.DB)

	request := testutil.CreateTestBuyoutRequest(1001)
	require.NoError(t, requestRepo.Create(ctx, request))

	// No loan yet
	existing, err := loanRepo.GetByBuyoutRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Nil(t, existing)

	loan := testutil.CreateTestLoan(request.ID, 2001)
	require.NoError(t, loanRepo.Create(ctx, loan))

	existing, err = loanRepo.GetByBuyoutRequest(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, loan.ID, existing.ID)
}

func TestLoanRepository_GetByLender(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	requestRepo := NewBuyoutRequestRepository(testDB.DB)
	loanRepo := NewLoanRepository(testDB.DB)

	for i := int64(0); i < 3; i++ {
		request := testutil.CreateTestBuyoutRequest(1001 + i)
		require.NoError(t, requestRepo.Create(ctx, request))

		loan := testutil.CreateTestLoan(request.ID, 2001)
		if i == 2 {
			loan.Status = models.LoanStatusRejected
		}
		require.NoError(t, loanRepo.Create(ctx, loan))
	}

	all, err := loanRepo.GetByLender(ctx, 2001, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	applied := models.LoanStatusApplied
	filtered, err := loanRepo.GetByLender(ctx, 2001, &applied)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	none, err := loanRepo.GetByLender(ctx, 9999, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInstallmentRepository_ScheduleLifecycle(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	requestRepo := NewBuyoutRequestRepository(testDB.DB)
	loanRepo := NewLoanRepository(testDB.DB)
	installmentRepo := NewInstallmentRepository(testDB.DB)

	request := testutil.CreateTestBuyoutRequest(1001)
	require.NoError(t, requestRepo.Create(ctx, request))

	loan := testutil.CreateTestLoanWithStatus(request.ID, 2001, models.LoanStatusDisbursed)
	require.NoError(t, loanRepo.Create(ctx, loan))

	firstDue := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	var schedule []*models.EMIInstallment
	for n := 1; n <= 3; n++ {
		schedule = append(schedule, testutil.CreateTestInstallment(loan.ID, n, firstDue.AddDate(0, n-1, 0), 26655))
	}
	require.NoError(t, installmentRepo.CreateSchedule(ctx, schedule))

	fetched, err := installmentRepo.GetByLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 3)
	for i, installment := range fetched {
		assert.Equal(t, i+1, installment.SequenceNumber)
		assert.Equal(t, models.InstallmentStatusPending, installment.Status)
	}

	// Settle the first installment
	paidAt := firstDue
	updated, err := installmentRepo.MarkPaid(ctx, loan.ID, 1, 26655, paidAt)
	require.NoError(t, err)
	assert.True(t, updated)

	// A second settle of the same installment must see no row
	updated, err = installmentRepo.MarkPaid(ctx, loan.ID, 1, 26655, paidAt)
	require.NoError(t, err)
	assert.False(t, updated)

	first, err := installmentRepo.GetBySequence(ctx, loan.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, models.InstallmentStatusPaid, first.Status)
	assert.Equal(t, int64(26655), first.AmountPaid)
	require.NotNil(t, first.PaidAt)

	// Waive the second
	updated, err = installmentRepo.MarkWaived(ctx, loan.ID, 2)
	require.NoError(t, err)
	assert.True(t, updated)

	// Waiving a paid installment must fail the same way a double pay does
	updated, err = installmentRepo.MarkWaived(ctx, loan.ID, 1)
	require.NoError(t, err)
	assert.False(t, updated)

	// Mark the third overdue
	require.NoError(t, installmentRepo.MarkOverdue(ctx, loan.ID, []int{3}))

	third, err := installmentRepo.GetBySequence(ctx, loan.ID, 3)
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.Equal(t, models.InstallmentStatusOverdue, third.Status)

	// MarkOverdue must not touch settled installments
	require.NoError(t, installmentRepo.MarkOverdue(ctx, loan.ID, []int{1, 2}))

	first, err = installmentRepo.GetBySequence(ctx, loan.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentStatusPaid, first.Status)
}

func TestInstallmentRepository_GetBySequence_NotFound(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	installmentRepo := NewInstallmentRepository(testDB.DB)

	installment, err := installmentRepo.GetBySequence(ctx, 99999, 1)
	require.NoError(t, err)
	assert.Nil(t, installment)
}

func TestBuyoutRequestRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	requestRepo := NewBuyoutRequestRepository(testDB.DB)

	request := testutil.CreateTestBuyoutRequest(1001)
	require.NoError(t, requestRepo.Create(ctx, request))
	require.NotZero(t, request.ID)

	fetched, err := requestRepo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, request.Reference, fetched.Reference)
	assert.Equal(t, int64(299970), fetched.BuyoutAmount)
	assert.Equal(t, int64(3333), fetched.DailySalary)

	byCandidate, err := requestRepo.GetByCandidate(ctx, 1001, 10)
	require.NoError(t, err)
	require.Len(t, byCandidate, 1)
	assert.Equal(t, request.ID, byCandidate[0].ID)
}

func TestUnitOfWork_RollbackDiscardsWrites(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	request := testutil.CreateTestBuyoutRequest(1001)
	require.NoError(t, uow.BuyoutRequestRepository().Create(ctx, request))
	require.NotZero(t, request.ID)

	require.NoError(t, uow.Rollback())

	requestRepo := NewBuyoutRequestRepository(testDB.DB)
	fetched, err := requestRepo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestUnitOfWork_CommitPersistsWrites(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	request := testutil.CreateTestBuyoutRequest(1001)
	require.NoError(t, uow.BuyoutRequestRepository().Create(ctx, request))
	require.NoError(t, uow.Commit())

	requestRepo := NewBuyoutRequestRepository(testDB.DB)
	fetched, err := requestRepo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
}
