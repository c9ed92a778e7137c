package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"buyoutengine/events"
	"buyoutengine/models"
	"buyoutengine/moneymath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// daysPerMonth is the fixed month convention for buyout quotes. It is
// not the calendar month length; existing quotes were issued against a
// 30-day month and recomputing them any other way would change amounts
// candidates have already seen.
const daysPerMonth = 30

// quoteCacheTTL bounds how long a cached calculator response is served
const quoteCacheTTL = 24 * time.Hour

// ComputeBuyout converts a monthly salary and a notice period into the
// buyout amount owed to the current employer. The daily salary is
// rounded before the multiplication; both steps reproduce the amounts
// already quoted to candidates.
func ComputeBuyout(monthlySalary int64, noticePeriodDays int) (models.BuyoutQuote, error) {
	if monthlySalary <= 0 {
		return models.BuyoutQuote{}, &InvalidInputError{Field: "monthly_salary", Reason: "must be positive"}
	}
	if noticePeriodDays <= 0 {
		return models.BuyoutQuote{}, &InvalidInputError{Field: "notice_period_days", Reason: "must be positive"}
	}

	dailySalary := moneymath.Round(moneymath.FromUnits(monthlySalary).Div(moneymath.FromInt(daysPerMonth)))
	buyoutAmount := moneymath.Round(moneymath.FromUnits(dailySalary).Mul(moneymath.FromInt(noticePeriodDays)))

	return models.BuyoutQuote{
		MonthlySalary:    monthlySalary,
		NoticePeriodDays: noticePeriodDays,
		DailySalary:      dailySalary,
		BuyoutAmount:     buyoutAmount,
	}, nil
}

type buyoutService struct {
	uowFactory UnitOfWorkFactory
	cache      QuoteCache
}

// NewBuyoutService creates a new buyout service. cache may be nil, in
// which case every quote is computed fresh.
func NewBuyoutService(uowFactory UnitOfWorkFactory, cache QuoteCache) BuyoutService {
	return &buyoutService{
		uowFactory: uowFactory,
		cache:      cache,
	}
}

// Quote computes a buyout quote, serving repeated input pairs from the
// cache. Cache failures are logged and never fail the quote.
func (s *buyoutService) Quote(ctx context.Context, monthlySalary int64, noticePeriodDays int) (models.BuyoutQuote, error) {
	key := fmt.Sprintf("buyout:%d:%d", monthlySalary, noticePeriodDays)

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			var quote models.BuyoutQuote
			if err := json.Unmarshal([]byte(cached), &quote); err == nil {
				return quote, nil
			}
			log.WithField("key", key).Warn("Discarding unreadable cached quote")
		}
	}

	quote, err := ComputeBuyout(monthlySalary, noticePeriodDays)
	if err != nil {
		return models.BuyoutQuote{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(quote)
		if err == nil {
			if err := s.cache.Set(ctx, key, string(payload), quoteCacheTTL); err != nil {
				log.WithError(err).WithField("key", key).Warn("Failed to cache quote")
			}
		}
	}

	return quote, nil
}

// CreateRequest computes and persists a buyout request for a candidate
func (s *buyoutService) CreateRequest(ctx context.Context, candidateID int64, monthlySalary int64, noticePeriodDays int) (*models.BuyoutRequest, error) {
	if candidateID <= 0 {
		return nil, &InvalidInputError{Field: "candidate_id", Reason: "must be positive"}
	}

	quote, err := ComputeBuyout(monthlySalary, noticePeriodDays)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	request := &models.BuyoutRequest{
		Reference:        uuid.New(),
		CandidateID:      candidateID,
		MonthlySalary:    quote.MonthlySalary,
		NoticePeriodDays: quote.NoticePeriodDays,
		DailySalary:      quote.DailySalary,
		BuyoutAmount:     quote.BuyoutAmount,
	}

	if err := uow.BuyoutRequestRepository().Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create buyout request: %w", err)
	}

	uow.EventBus().Publish(events.BuyoutRequestedEvent{
		RequestID:    request.ID,
		CandidateID:  request.CandidateID,
		BuyoutAmount: request.BuyoutAmount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"requestID":    request.ID,
		"candidateID":  candidateID,
		"buyoutAmount": request.BuyoutAmount,
	}).Info("Buyout request created")

	return request, nil
}

// GetRequest retrieves a stored buyout request
func (s *buyoutService) GetRequest(ctx context.Context, id int64) (*models.BuyoutRequest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	request, err := uow.BuyoutRequestRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyout request: %w", err)
	}
	if request == nil {
		return nil, &NotFoundError{Entity: "buyout request", ID: id}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return request, nil
}
