package events

import (
	"context"
	"sync"

	"buyoutengine/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBuyoutRequested  EventType = "buyout_requested"
	EventTypeLoanStatusChange EventType = "loan_status_change"
	EventTypeLoanDisbursed    EventType = "loan_disbursed"
	EventTypeInstallmentPaid  EventType = "installment_paid"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BuyoutRequestedEvent is published when a new buyout request is stored
type BuyoutRequestedEvent struct {
	RequestID    int64
	CandidateID  int64
	BuyoutAmount int64
}

func (e BuyoutRequestedEvent) Type() EventType {
	return EventTypeBuyoutRequested
}

// LoanStatusChangeEvent is published on every lifecycle transition
type LoanStatusChangeEvent struct {
	LoanID    int64
	OldStatus models.LoanStatus
	NewStatus models.LoanStatus
	Event     models.LoanEvent
}

func (e LoanStatusChangeEvent) Type() EventType {
	return EventTypeLoanStatusChange
}

// LoanDisbursedEvent is published when a loan is disbursed and its
// schedule has been generated
type LoanDisbursedEvent struct {
	LoanID           int64
	Principal        int64
	InstallmentCount int
}

func (e LoanDisbursedEvent) Type() EventType {
	return EventTypeLoanDisbursed
}

// InstallmentPaidEvent is published when a payment settles an EMI
type InstallmentPaidEvent struct {
	LoanID         int64
	SequenceNumber int
	AmountPaid     int64
}

func (e InstallmentPaidEvent) Type() EventType {
	return EventTypeInstallmentPaid
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers. Handlers run
// asynchronously so a slow subscriber cannot block a commit path.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events published during a unit of work and
// flushes them to the real bus only after the database commit succeeds.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events. Called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) {
	// Events outlive the transaction context that produced them.
	eventCtx := context.Background()

	for _, ev := range b.pending {
		log.WithFields(log.Fields{
			"eventType": ev.Type(),
		}).Debug("Emitting event after commit")
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops pending events. Called after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
