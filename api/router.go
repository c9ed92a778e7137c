package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the HTTP router for the engine
func Routes(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/buyout", func(r chi.Router) {
			r.Post("/calculate", h.CalculateBuyoutHandler)
			r.Post("/requests", h.CreateBuyoutRequestHandler)
			r.Get("/requests/{id}", h.GetBuyoutRequestHandler)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/calculate-emi", h.CalculateEMIHandler)
			r.Post("/affordability", h.AffordabilityHandler)
			r.Post("/", h.ApplyHandler)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetLoanHandler)
				r.Get("/schedule", h.ScheduleHandler)
				r.Get("/progress", h.ProgressHandler)

				r.Post("/submit", h.SubmitForReviewHandler)
				r.Post("/approve", h.ApproveHandler)
				r.Post("/reject", h.RejectHandler)
				r.Post("/disburse", h.DisburseHandler)
				r.Post("/activate", h.ActivateHandler)
				r.Post("/payments", h.RecordPaymentHandler)
				r.Post("/close", h.CompleteFinalPaymentHandler)
				r.Post("/installments/{seq}/waive", h.WaiveInstallmentHandler)
				r.Post("/default", h.MarkDefaultedHandler)
			})
		})
	})

	return r
}
