package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"buyoutengine/api"
	"buyoutengine/config"
	"buyoutengine/database"
	"buyoutengine/events"
	"buyoutengine/repository"
	"buyoutengine/service"

	log "github.com/sirupsen/logrus"
)

// quoteRatePercent is the indicative annual rate used for the sample
// EMIs on the public calculator. Actual loan terms carry the rate the
// lender applies with.
const quoteRatePercent = 12.0

// Run starts the buyout engine and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	setupLogging(cfg)

	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	eventBus := events.NewBus()
	registerEventHandlers(eventBus)

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	var quoteCache service.QuoteCache
	if cfg.RedisAddr != "" {
		redisCache := repository.NewQuoteCache(cfg.RedisAddr)
		defer redisCache.Close()
		quoteCache = redisCache
		log.WithField("addr", cfg.RedisAddr).Info("Quote cache enabled")
	}

	buyoutService := service.NewBuyoutService(uowFactory, quoteCache)
	loanService := service.NewLoanService(uowFactory, cfg.EMIGraceDays, cfg.DefaultOverdueDays)
	trackerService := service.NewTrackerService(uowFactory, cfg.EMIGraceDays)

	handlers := api.NewHandlers(buyoutService, loanService, trackerService, cfg.AffordabilityThreshold, quoteRatePercent)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Routes(handlers),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("Buyout engine listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		log.SetLevel(log.DebugLevel)
	}
}

// registerEventHandlers wires the audit log subscribers. Downstream
// consumers (notifications, ledger exports) subscribe here as well.
func registerEventHandlers(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBuyoutRequested, func(ctx context.Context, event events.Event) {
		e := event.(events.BuyoutRequestedEvent)
		log.WithFields(log.Fields{
			"requestID":    e.RequestID,
			"candidateID":  e.CandidateID,
			"buyoutAmount": e.BuyoutAmount,
		}).Info("Buyout requested")
	})

	bus.Subscribe(events.EventTypeLoanStatusChange, func(ctx context.Context, event events.Event) {
		e := event.(events.LoanStatusChangeEvent)
		log.WithFields(log.Fields{
			"loanID":    e.LoanID,
			"oldStatus": e.OldStatus,
			"newStatus": e.NewStatus,
			"event":     e.Event,
		}).Info("Loan status changed")
	})

	bus.Subscribe(events.EventTypeLoanDisbursed, func(ctx context.Context, event events.Event) {
		e := event.(events.LoanDisbursedEvent)
		log.WithFields(log.Fields{
			"loanID":           e.LoanID,
			"principal":        e.Principal,
			"installmentCount": e.InstallmentCount,
		}).Info("Loan disbursed")
	})

	bus.Subscribe(events.EventTypeInstallmentPaid, func(ctx context.Context, event events.Event) {
		e := event.(events.InstallmentPaidEvent)
		log.WithFields(log.Fields{
			"loanID":         e.LoanID,
			"sequenceNumber": e.SequenceNumber,
			"amountPaid":     e.AmountPaid,
		}).Info("Installment paid")
	})
}
