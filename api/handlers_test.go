package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"buyoutengine/models"
	"buyoutengine/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBuyoutService struct {
	mock.Mock
}

func (m *mockBuyoutService) Quote(ctx context.Context, monthlySalary int64, noticePeriodDays int) (models.BuyoutQuote, error) {
	args := m.Called(ctx, monthlySalary, noticePeriodDays)
	return args.Get(0).(models.BuyoutQuote), args.Error(1)
}

func (m *mockBuyoutService) CreateRequest(ctx context.Context, candidateID int64, monthlySalary int64, noticePeriodDays int) (*models.BuyoutRequest, error) {
	args := m.Called(ctx, candidateID, monthlySalary, noticePeriodDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BuyoutRequest), args.Error(1)
}

func (m *mockBuyoutService) GetRequest(ctx context.Context, id int64) (*models.BuyoutRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BuyoutRequest), args.Error(1)
}

type mockLoanService struct {
	mock.Mock
}

func (m *mockLoanService) Apply(ctx context.Context, buyoutRequestID, lenderID int64, annualRatePercent float64, tenureMonths int) (*models.Loan, error) {
	args := m.Called(ctx, buyoutRequestID, lenderID, annualRatePercent, tenureMonths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *mockLoanService) SubmitForReview(ctx context.Context, loanID int64) (*models.Loan, error) {
	return m.loanCall(m.Called(ctx, loanID))
}

func (m *mockLoanService) Approve(ctx context.Context, loanID int64) (*models.Loan, error) {
	return m.loanCall(m.Called(ctx, loanID))
}

func (m *mockLoanService) Reject(ctx context.Context, loanID int64) (*models.Loan, error) {
	return m.loanCall(m.Called(ctx, loanID))
}

func (m *mockLoanService) Disburse(ctx context.Context, loanID int64, disbursedAt, firstEMIDate time.Time) (*models.Loan, error) {
	return m.loanCall(m.Called(ctx, loanID, disbursedAt, firstEMIDate))
}

func (m *mockLoanService) Activate(ctx context.Context, loanID int64, firstEMIDate time.Time) (*models.Loan, error) {
	return m.loanCall(m.Called(ctx, loanID, firstEMIDate))
}

func (m *mockLoanService) RecordPayment(ctx context.Context, loanID int64, sequenceNumber int, paidAt time.Time) (*models.EMIInstallment, error) {
	args := m.Called(ctx, loanID, sequenceNumber, paidAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EMIInstallment), args.Error(1)
}

func (m *mockLoanService) WaiveInstallment(ctx context.Context, loanID int64, sequenceNumber int) (*models.EMIInstallment, error) {
	args := m.Called(ctx, loanID, sequenceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EMIInstallment), args.Error(1)
}

func (m *mockLoanService) CompleteFinalPayment(ctx context.Context, loanID int64) (*models.Loan, error) {
	return m.loanCall(m.Called(ctx, loanID))
}

func (m *mockLoanService) MarkDefaulted(ctx context.Context, loanID int64, asOf time.Time) (*models.Loan, error) {
	return m.loanCall(m.Called(ctx, loanID, asOf))
}

func (m *mockLoanService) GetLoan(ctx context.Context, loanID int64) (*models.Loan, error) {
	return m.loanCall(m.Called(ctx, loanID))
}

func (m *mockLoanService) loanCall(args mock.Arguments) (*models.Loan, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

type mockTrackerService struct {
	mock.Mock
}

func (m *mockTrackerService) Schedule(ctx context.Context, loanID int64, asOf time.Time) ([]*models.EMIInstallment, error) {
	args := m.Called(ctx, loanID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EMIInstallment), args.Error(1)
}

func (m *mockTrackerService) RefreshStatuses(ctx context.Context, loanID int64, asOf time.Time) (int, error) {
	args := m.Called(ctx, loanID, asOf)
	return args.Int(0), args.Error(1)
}

func (m *mockTrackerService) Progress(ctx context.Context, loanID int64) (models.RepaymentProgress, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).(models.RepaymentProgress), args.Error(1)
}

func setupTestServer(t *testing.T) (*mockBuyoutService, *mockLoanService, *mockTrackerService, *httptest.Server) {
	buyout := new(mockBuyoutService)
	loans := new(mockLoanService)
	tracker := new(mockTrackerService)

	handlers := NewHandlers(buyout, loans, tracker, 0.30, 12)
	server := httptest.NewServer(Routes(handlers))
	t.Cleanup(server.Close)

	return buyout, loans, tracker, server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func testActiveLoan() *models.Loan {
	return &models.Loan{
		ID:                42,
		Reference:         uuid.New(),
		BuyoutRequestID:   7,
		LenderID:          2001,
		Principal:         300000,
		AnnualRatePercent: 12,
		TenureMonths:      12,
		EMIAmount:         26655,
		TotalInterest:     19856,
		TotalPayable:      319856,
		Status:            models.LoanStatusActive,
		CreatedAt:         time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCalculateEMIHandler(t *testing.T) {
	_, _, _, server := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/loans/calculate-emi", map[string]any{
		"principal":           300000,
		"annual_rate_percent": 12,
		"tenure_months":       12,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var terms models.LoanTerms
	decodeBody(t, resp, &terms)
	assert.Equal(t, int64(26655), terms.EMIAmount)
	assert.Equal(t, int64(19856), terms.TotalInterest)
	assert.Equal(t, int64(319856), terms.TotalPayable)
}

func TestCalculateEMIHandler_InvalidInput(t *testing.T) {
	_, _, _, server := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/loans/calculate-emi", map[string]any{
		"principal":           0,
		"annual_rate_percent": 12,
		"tenure_months":       12,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCalculateBuyoutHandler(t *testing.T) {
	buyout, _, _, server := setupTestServer(t)

	quote := models.BuyoutQuote{
		MonthlySalary:    100000,
		NoticePeriodDays: 90,
		DailySalary:      3333,
		BuyoutAmount:     299970,
	}
	buyout.On("Quote", mock.Anything, int64(100000), 90).Return(quote, nil)

	resp := postJSON(t, server.URL+"/api/buyout/calculate", map[string]any{
		"monthly_salary":     100000,
		"notice_period_days": 90,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		models.BuyoutQuote
		SampleEMIs []struct {
			TenureMonths int   `json:"tenure_months"`
			EMIAmount    int64 `json:"emi_amount"`
		} `json:"sample_emis"`
	}
	decodeBody(t, resp, &body)

	assert.Equal(t, int64(299970), body.BuyoutAmount)
	require.Len(t, body.SampleEMIs, 3)
	assert.Equal(t, 6, body.SampleEMIs[0].TenureMonths)
	assert.Equal(t, 12, body.SampleEMIs[1].TenureMonths)
	assert.Equal(t, 24, body.SampleEMIs[2].TenureMonths)
	for _, sample := range body.SampleEMIs {
		assert.Positive(t, sample.EMIAmount)
	}
}

func TestAffordabilityHandler(t *testing.T) {
	_, _, _, server := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/loans/affordability", map[string]any{
		"emi_amount":     26655,
		"monthly_income": 100000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.Affordability
	decodeBody(t, resp, &result)
	assert.True(t, result.Affordable)
	assert.InDelta(t, 0.26655, result.Ratio, 1e-9)
	assert.Equal(t, 0.30, result.Threshold)
}

func TestCreateBuyoutRequestHandler(t *testing.T) {
	buyout, _, _, server := setupTestServer(t)

	request := &models.BuyoutRequest{
		ID:               7,
		Reference:        uuid.New(),
		CandidateID:      1001,
		MonthlySalary:    100000,
		NoticePeriodDays: 90,
		DailySalary:      3333,
		BuyoutAmount:     299970,
		CreatedAt:        time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	buyout.On("CreateRequest", mock.Anything, int64(1001), int64(100000), 90).Return(request, nil)

	resp := postJSON(t, server.URL+"/api/buyout/requests", map[string]any{
		"candidate_id":       1001,
		"monthly_salary":     100000,
		"notice_period_days": 90,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body buyoutRequestResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, int64(7), body.ID)
	assert.Equal(t, int64(299970), body.Quote.BuyoutAmount)
}

func TestGetLoanHandler_NotFound(t *testing.T) {
	_, loans, _, server := setupTestServer(t)

	loans.On("GetLoan", mock.Anything, int64(99)).Return(nil, &service.NotFoundError{Entity: "loan", ID: 99})

	resp, err := http.Get(server.URL + "/api/loans/99")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetLoanHandler_InvalidID(t *testing.T) {
	_, _, _, server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/loans/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitForReviewHandler_InvalidTransition(t *testing.T) {
	_, loans, _, server := setupTestServer(t)

	loans.On("SubmitForReview", mock.Anything, int64(42)).Return(nil, &service.InvalidTransitionError{
		LoanID: 42,
		Status: models.LoanStatusClosed,
		Event:  models.LoanEventSubmitForReview,
	})

	resp := postJSON(t, server.URL+"/api/loans/42/submit", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCompleteFinalPaymentHandler_Inconsistent(t *testing.T) {
	_, loans, _, server := setupTestServer(t)

	loans.On("CompleteFinalPayment", mock.Anything, int64(42)).Return(nil, &service.InconsistentError{
		Reason: "loan 42 has 3 unsettled installments",
	})

	resp := postJSON(t, server.URL+"/api/loans/42/close", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDisburseHandler(t *testing.T) {
	_, loans, _, server := setupTestServer(t)

	disbursedAt := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	firstEMIDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	loan := testActiveLoan()
	loan.Status = models.LoanStatusDisbursed
	loan.DisbursedAt = &disbursedAt
	loans.On("Disburse", mock.Anything, int64(42), disbursedAt, firstEMIDate).Return(loan, nil)

	resp := postJSON(t, server.URL+"/api/loans/42/disburse", map[string]any{
		"disbursed_at":   "2026-09-01",
		"first_emi_date": "2026-10-01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body loanResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "disbursed", body.Status)
	require.NotNil(t, body.DisbursedAt)
	assert.Equal(t, "2026-09-01", *body.DisbursedAt)
}

func TestDisburseHandler_BadDate(t *testing.T) {
	_, _, _, server := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/loans/42/disburse", map[string]any{
		"disbursed_at":   "September 1st",
		"first_emi_date": "2026-10-01",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordPaymentHandler(t *testing.T) {
	_, loans, _, server := setupTestServer(t)

	paidAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	installment := &models.EMIInstallment{
		LoanID:         42,
		SequenceNumber: 1,
		DueDate:        paidAt,
		AmountDue:      26655,
		AmountPaid:     26655,
		PaidAt:         &paidAt,
		Status:         models.InstallmentStatusPaid,
	}
	loans.On("RecordPayment", mock.Anything, int64(42), 1, mock.Anything).Return(installment, nil)

	resp := postJSON(t, server.URL+"/api/loans/42/payments", map[string]any{
		"sequence_number": 1,
		"paid_at":         "2026-10-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body installmentResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "paid", body.Status)
	assert.Equal(t, int64(26655), body.AmountPaid)
}

func TestScheduleHandler_AsOfParam(t *testing.T) {
	_, _, tracker, server := setupTestServer(t)

	asOf := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	installments := []*models.EMIInstallment{
		{LoanID: 42, SequenceNumber: 1, DueDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), AmountDue: 26655, Status: models.InstallmentStatusOverdue},
	}
	tracker.On("Schedule", mock.Anything, int64(42), asOf).Return(installments, nil)

	resp, err := http.Get(server.URL + "/api/loans/42/schedule?as_of=2026-11-15")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []installmentResponse
	decodeBody(t, resp, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "overdue", body[0].Status)
	assert.Equal(t, "2026-10-01", body[0].DueDate)

	tracker.AssertExpectations(t)
}

func TestProgressHandler(t *testing.T) {
	_, _, tracker, server := setupTestServer(t)

	tracker.On("Progress", mock.Anything, int64(42)).Return(models.RepaymentProgress{
		TotalInstallments: 12,
		PaidCount:         3,
		PaidAmount:        79965,
		RemainingAmount:   239891,
		PercentComplete:   25,
	}, nil)

	resp, err := http.Get(server.URL + "/api/loans/42/progress")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var progress models.RepaymentProgress
	decodeBody(t, resp, &progress)
	assert.Equal(t, 3, progress.PaidCount)
	assert.InDelta(t, 25.0, progress.PercentComplete, 1e-9)
}

func TestApplyHandler_BadBody(t *testing.T) {
	_, _, _, server := setupTestServer(t)

	resp, err := http.Post(server.URL+"/api/loans/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
