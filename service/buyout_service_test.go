package service

import (
	"context"
	"encoding/json"
	"testing"

	"buyoutengine/events"
	"buyoutengine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestComputeBuyout(t *testing.T) {
	tests := []struct {
		name             string
		monthlySalary    int64
		noticePeriodDays int
		wantDailySalary  int64
		wantBuyoutAmount int64
	}{
		{
			name:             "ninety day notice",
			monthlySalary:    100000,
			noticePeriodDays: 90,
			wantDailySalary:  3333,
			wantBuyoutAmount: 299970,
		},
		{
			name:             "sixty day notice divides evenly",
			monthlySalary:    90000,
			noticePeriodDays: 60,
			wantDailySalary:  3000,
			wantBuyoutAmount: 180000,
		},
		{
			name:             "rounded daily salary propagates",
			monthlySalary:    50000,
			noticePeriodDays: 30,
			wantDailySalary:  1667,
			wantBuyoutAmount: 50010,
		},
		{
			name:             "tiny salary",
			monthlySalary:    100,
			noticePeriodDays: 45,
			wantDailySalary:  3,
			wantBuyoutAmount: 135,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := ComputeBuyout(tt.monthlySalary, tt.noticePeriodDays)
			require.NoError(t, err)

			assert.Equal(t, tt.wantDailySalary, quote.DailySalary)
			assert.Equal(t, tt.wantBuyoutAmount, quote.BuyoutAmount)
			assert.Equal(t, tt.monthlySalary, quote.MonthlySalary)
			assert.Equal(t, tt.noticePeriodDays, quote.NoticePeriodDays)
		})
	}
}

func TestComputeBuyout_InvalidInput(t *testing.T) {
	tests := []struct {
		name             string
		monthlySalary    int64
		noticePeriodDays int
	}{
		{"zero salary", 0, 90},
		{"negative salary", -50000, 90},
		{"zero notice period", 100000, 0},
		{"negative notice period", 100000, -30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeBuyout(tt.monthlySalary, tt.noticePeriodDays)
			require.Error(t, err)

			var invalidInput *InvalidInputError
			assert.ErrorAs(t, err, &invalidInput)
		})
	}
}

func TestBuyoutService_Quote_WithoutCache(t *testing.T) {
	svc := NewBuyoutService(nil, nil)

	quote, err := svc.Quote(context.Background(), 100000, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(299970), quote.BuyoutAmount)
}

func TestBuyoutService_Quote_CacheMiss(t *testing.T) {
	cache := new(MockQuoteCache)
	cache.On("Get", mock.Anything, "buyout:100000:90").Return("", false)
	cache.On("Set", mock.Anything, "buyout:100000:90", mock.Anything, quoteCacheTTL).Return(nil)

	svc := NewBuyoutService(nil, cache)

	quote, err := svc.Quote(context.Background(), 100000, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(299970), quote.BuyoutAmount)

	cache.AssertExpectations(t)
}

func TestBuyoutService_Quote_CacheHit(t *testing.T) {
	cached := models.BuyoutQuote{
		MonthlySalary:    100000,
		NoticePeriodDays: 90,
		DailySalary:      3333,
		BuyoutAmount:     299970,
	}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	cache := new(MockQuoteCache)
	cache.On("Get", mock.Anything, "buyout:100000:90").Return(string(payload), true)

	svc := NewBuyoutService(nil, cache)

	quote, err := svc.Quote(context.Background(), 100000, 90)
	require.NoError(t, err)
	assert.Equal(t, cached, quote)

	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyoutService_Quote_CacheFailuresAreNotFatal(t *testing.T) {
	cache := new(MockQuoteCache)
	cache.On("Get", mock.Anything, mock.Anything).Return("not json", true)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	svc := NewBuyoutService(nil, cache)

	quote, err := svc.Quote(context.Background(), 100000, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(299970), quote.BuyoutAmount)
}

func TestBuyoutService_CreateRequest(t *testing.T) {
	buyoutRepo := new(MockBuyoutRequestRepository)
	uow, factory := setupMockUOW(buyoutRepo, nil, nil)

	buyoutRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.BuyoutRequest")).
		Run(func(args mock.Arguments) {
			request := args.Get(1).(*models.BuyoutRequest)
			request.ID = 7
		}).Return(nil)

	svc := NewBuyoutService(factory, nil)

	request, err := svc.CreateRequest(context.Background(), 1001, 100000, 90)
	require.NoError(t, err)
	require.NotNil(t, request)

	assert.Equal(t, int64(7), request.ID)
	assert.Equal(t, int64(1001), request.CandidateID)
	assert.Equal(t, int64(3333), request.DailySalary)
	assert.Equal(t, int64(299970), request.BuyoutAmount)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", request.Reference.String())

	published := uow.PublishedEvents()
	require.Len(t, published, 1)
	event := published[0].(events.BuyoutRequestedEvent)
	assert.Equal(t, int64(7), event.RequestID)
	assert.Equal(t, int64(299970), event.BuyoutAmount)

	buyoutRepo.AssertExpectations(t)
	uow.AssertExpectations(t)
}

func TestBuyoutService_CreateRequest_InvalidInput(t *testing.T) {
	svc := NewBuyoutService(nil, nil)

	_, err := svc.CreateRequest(context.Background(), 0, 100000, 90)
	require.Error(t, err)

	var invalidInput *InvalidInputError
	assert.ErrorAs(t, err, &invalidInput)

	_, err = svc.CreateRequest(context.Background(), 1001, -1, 90)
	require.Error(t, err)
	assert.ErrorAs(t, err, &invalidInput)
}

func TestBuyoutService_GetRequest_NotFound(t *testing.T) {
	buyoutRepo := new(MockBuyoutRequestRepository)
	_, factory := setupMockUOW(buyoutRepo, nil, nil)

	buyoutRepo.On("GetByID", mock.Anything, int64(99)).Return(nil, nil)

	svc := NewBuyoutService(factory, nil)

	_, err := svc.GetRequest(context.Background(), 99)
	require.Error(t, err)

	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
