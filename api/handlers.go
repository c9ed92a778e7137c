package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"buyoutengine/models"
	"buyoutengine/service"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// dateLayout is the wire format for date-only fields
const dateLayout = "2006-01-02"

// sampleTenures are the tenures quoted alongside a buyout calculation
var sampleTenures = []int{6, 12, 24}

// Handlers holds the services the HTTP layer dispatches to
type Handlers struct {
	buyoutService  service.BuyoutService
	loanService    service.LoanService
	trackerService service.TrackerService

	affordabilityThreshold float64
	quoteRatePercent       float64
}

// NewHandlers creates the HTTP handler set
func NewHandlers(buyout service.BuyoutService, loans service.LoanService, tracker service.TrackerService, affordabilityThreshold, quoteRatePercent float64) *Handlers {
	return &Handlers{
		buyoutService:          buyout,
		loanService:            loans,
		trackerService:         tracker,
		affordabilityThreshold: affordabilityThreshold,
		quoteRatePercent:       quoteRatePercent,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service errors onto HTTP statuses. Validation failures
// are 400, missing entities 404, lifecycle violations 409 and state
// inconsistencies 422; anything else is a 500 with the detail logged
// rather than leaked.
func writeError(w http.ResponseWriter, err error) {
	var invalidInput *service.InvalidInputError
	var notFound *service.NotFoundError
	var invalidTransition *service.InvalidTransitionError
	var inconsistent *service.InconsistentError

	switch {
	case errors.As(err, &invalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &invalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &inconsistent):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		log.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + param})
		return 0, false
	}
	return id, true
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

// loanResponse is the wire representation of a loan
type loanResponse struct {
	ID                int64   `json:"id"`
	Reference         string  `json:"reference"`
	BuyoutRequestID   int64   `json:"buyout_request_id"`
	LenderID          int64   `json:"lender_id"`
	Principal         int64   `json:"principal"`
	AnnualRatePercent float64 `json:"annual_rate_percent"`
	TenureMonths      int     `json:"tenure_months"`
	EMIAmount         int64   `json:"emi_amount"`
	TotalInterest     int64   `json:"total_interest"`
	TotalPayable      int64   `json:"total_payable"`
	Status            string  `json:"status"`
	DisbursedAt       *string `json:"disbursed_at,omitempty"`
	FirstEMIDate      *string `json:"first_emi_date,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

func newLoanResponse(loan *models.Loan) loanResponse {
	resp := loanResponse{
		ID:                loan.ID,
		Reference:         loan.Reference.String(),
		BuyoutRequestID:   loan.BuyoutRequestID,
		LenderID:          loan.LenderID,
		Principal:         loan.Principal,
		AnnualRatePercent: loan.AnnualRatePercent,
		TenureMonths:      loan.TenureMonths,
		EMIAmount:         loan.EMIAmount,
		TotalInterest:     loan.TotalInterest,
		TotalPayable:      loan.TotalPayable,
		Status:            string(loan.Status),
		CreatedAt:         loan.CreatedAt.UTC().Format(time.RFC3339),
	}
	if loan.DisbursedAt != nil {
		formatted := loan.DisbursedAt.UTC().Format(dateLayout)
		resp.DisbursedAt = &formatted
	}
	if loan.FirstEMIDate != nil {
		formatted := loan.FirstEMIDate.UTC().Format(dateLayout)
		resp.FirstEMIDate = &formatted
	}
	return resp
}

// installmentResponse is the wire representation of a schedule row
type installmentResponse struct {
	SequenceNumber int     `json:"sequence_number"`
	DueDate        string  `json:"due_date"`
	AmountDue      int64   `json:"amount_due"`
	AmountPaid     int64   `json:"amount_paid"`
	PaidAt         *string `json:"paid_at,omitempty"`
	Status         string  `json:"status"`
}

func newInstallmentResponse(installment *models.EMIInstallment) installmentResponse {
	resp := installmentResponse{
		SequenceNumber: installment.SequenceNumber,
		DueDate:        installment.DueDate.UTC().Format(dateLayout),
		AmountDue:      installment.AmountDue,
		AmountPaid:     installment.AmountPaid,
		Status:         string(installment.Status),
	}
	if installment.PaidAt != nil {
		formatted := installment.PaidAt.UTC().Format(time.RFC3339)
		resp.PaidAt = &formatted
	}
	return resp
}

func newScheduleResponse(installments []*models.EMIInstallment) []installmentResponse {
	resp := make([]installmentResponse, 0, len(installments))
	for _, installment := range installments {
		resp = append(resp, newInstallmentResponse(installment))
	}
	return resp
}

// buyoutRequestResponse is the wire representation of a stored request
type buyoutRequestResponse struct {
	ID        int64              `json:"id"`
	Reference string             `json:"reference"`
	Candidate int64              `json:"candidate_id"`
	Quote     models.BuyoutQuote `json:"quote"`
	CreatedAt string             `json:"created_at"`
}

func newBuyoutRequestResponse(request *models.BuyoutRequest) buyoutRequestResponse {
	return buyoutRequestResponse{
		ID:        request.ID,
		Reference: request.Reference.String(),
		Candidate: request.CandidateID,
		Quote:     request.Quote(),
		CreatedAt: request.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type calculateBuyoutRequest struct {
	MonthlySalary    int64 `json:"monthly_salary"`
	NoticePeriodDays int   `json:"notice_period_days"`
}

type sampleEMI struct {
	TenureMonths int   `json:"tenure_months"`
	EMIAmount    int64 `json:"emi_amount"`
}

type calculateBuyoutResponse struct {
	models.BuyoutQuote
	SampleEMIs []sampleEMI `json:"sample_emis"`
}

// CalculateBuyoutHandler quotes a buyout amount without persisting
// anything, along with indicative EMIs at the standard quote rate.
func (h *Handlers) CalculateBuyoutHandler(w http.ResponseWriter, r *http.Request) {
	var req calculateBuyoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	quote, err := h.buyoutService.Quote(r.Context(), req.MonthlySalary, req.NoticePeriodDays)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := calculateBuyoutResponse{BuyoutQuote: quote}
	for _, tenure := range sampleTenures {
		terms, err := service.ComputeEMI(quote.BuyoutAmount, h.quoteRatePercent, tenure)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.SampleEMIs = append(resp.SampleEMIs, sampleEMI{TenureMonths: tenure, EMIAmount: terms.EMIAmount})
	}

	writeJSON(w, http.StatusOK, resp)
}

type createBuyoutRequestRequest struct {
	CandidateID      int64 `json:"candidate_id"`
	MonthlySalary    int64 `json:"monthly_salary"`
	NoticePeriodDays int   `json:"notice_period_days"`
}

// CreateBuyoutRequestHandler persists a buyout request for a candidate
func (h *Handlers) CreateBuyoutRequestHandler(w http.ResponseWriter, r *http.Request) {
	var req createBuyoutRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	request, err := h.buyoutService.CreateRequest(r.Context(), req.CandidateID, req.MonthlySalary, req.NoticePeriodDays)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newBuyoutRequestResponse(request))
}

// GetBuyoutRequestHandler retrieves a stored buyout request
func (h *Handlers) GetBuyoutRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	request, err := h.buyoutService.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newBuyoutRequestResponse(request))
}

type calculateEMIRequest struct {
	Principal         int64   `json:"principal"`
	AnnualRatePercent float64 `json:"annual_rate_percent"`
	TenureMonths      int     `json:"tenure_months"`
}

// CalculateEMIHandler computes repayment terms without persisting anything
func (h *Handlers) CalculateEMIHandler(w http.ResponseWriter, r *http.Request) {
	var req calculateEMIRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	terms, err := service.ComputeEMI(req.Principal, req.AnnualRatePercent, req.TenureMonths)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, terms)
}

type affordabilityRequest struct {
	EMIAmount     int64 `json:"emi_amount"`
	MonthlyIncome int64 `json:"monthly_income"`
}

// AffordabilityHandler evaluates an EMI against a monthly income
func (h *Handlers) AffordabilityHandler(w http.ResponseWriter, r *http.Request) {
	var req affordabilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := service.Evaluate(req.EMIAmount, req.MonthlyIncome, h.affordabilityThreshold)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type applyRequest struct {
	BuyoutRequestID   int64   `json:"buyout_request_id"`
	LenderID          int64   `json:"lender_id"`
	AnnualRatePercent float64 `json:"annual_rate_percent"`
	TenureMonths      int     `json:"tenure_months"`
}

// ApplyHandler creates a loan application against a buyout request
func (h *Handlers) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	loan, err := h.loanService.Apply(r.Context(), req.BuyoutRequestID, req.LenderID, req.AnnualRatePercent, req.TenureMonths)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newLoanResponse(loan))
}

// GetLoanHandler retrieves a loan by ID
func (h *Handlers) GetLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.GetLoan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLoanResponse(loan))
}

// SubmitForReviewHandler moves an applied loan into underwriting
func (h *Handlers) SubmitForReviewHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.SubmitForReview(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLoanResponse(loan))
}

// ApproveHandler approves a loan under review
func (h *Handlers) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.Approve(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLoanResponse(loan))
}

// RejectHandler rejects an applied or under-review loan
func (h *Handlers) RejectHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.Reject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLoanResponse(loan))
}

type disburseRequest struct {
	DisbursedAt  string `json:"disbursed_at"`
	FirstEMIDate string `json:"first_emi_date"`
}

// DisburseHandler records disbursement and generates the EMI schedule
func (h *Handlers) DisburseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req disburseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	disbursedAt, err := parseDate(req.DisbursedAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid disbursed_at, expected YYYY-MM-DD"})
		return
	}
	firstEMIDate, err := parseDate(req.FirstEMIDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid first_emi_date, expected YYYY-MM-DD"})
		return
	}

	loan, err := h.loanService.Disburse(r.Context(), id, disbursedAt, firstEMIDate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLoanResponse(loan))
}

type activateRequest struct {
	FirstEMIDate string `json:"first_emi_date"`
}

// ActivateHandler starts repayment on a disbursed loan
func (h *Handlers) ActivateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req activateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	firstEMIDate, err := parseDate(req.FirstEMIDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid first_emi_date, expected YYYY-MM-DD"})
		return
	}

	loan, err := h.loanService.Activate(r.Context(), id, firstEMIDate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLoanResponse(loan))
}

type recordPaymentRequest struct {
	SequenceNumber int    `json:"sequence_number"`
	PaidAt         string `json:"paid_at"`
}

// RecordPaymentHandler settles one installment of an active loan
func (h *Handlers) RecordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req recordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid paid_at, expected RFC 3339"})
			return
		}
		paidAt = parsed
	}

	installment, err := h.loanService.RecordPayment(r.Context(), id, req.SequenceNumber, paidAt)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newInstallmentResponse(installment))
}

// WaiveInstallmentHandler waives one payable installment
func (h *Handlers) WaiveInstallmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil || seq <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid seq"})
		return
	}

	installment, err := h.loanService.WaiveInstallment(r.Context(), id, seq)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newInstallmentResponse(installment))
}

type markDefaultedRequest struct {
	AsOf string `json:"as_of"`
}

// MarkDefaultedHandler moves an active loan to defaulted
func (h *Handlers) MarkDefaultedHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req markDefaultedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, err := parseDate(req.AsOf)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid as_of, expected YYYY-MM-DD"})
			return
		}
		asOf = parsed
	}

	loan, err := h.loanService.MarkDefaulted(r.Context(), id, asOf)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLoanResponse(loan))
}

// ScheduleHandler returns a loan's schedule classified as of a date
func (h *Handlers) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	asOf := time.Now().UTC()
	if value := r.URL.Query().Get("as_of"); value != "" {
		parsed, err := parseDate(value)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid as_of, expected YYYY-MM-DD"})
			return
		}
		asOf = parsed
	}

	installments, err := h.trackerService.Schedule(r.Context(), id, asOf)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newScheduleResponse(installments))
}

// ProgressHandler returns aggregate repayment progress for a loan
func (h *Handlers) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	progress, err := h.trackerService.Progress(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

// CompleteFinalPaymentHandler closes an active loan once the schedule
// is fully settled. Closure is an explicit action, never a side effect
// of the last payment.
func (h *Handlers) CompleteFinalPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.CompleteFinalPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLoanResponse(loan))
}
