package service

import (
	"fmt"

	"buyoutengine/models"
)

// InvalidInputError reports a numeric argument outside its valid range.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a lifecycle event that is not valid for
// the loan's current status. The loan is left unchanged.
type InvalidTransitionError struct {
	LoanID int64
	Status models.LoanStatus
	Event  models.LoanEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q is not allowed for loan %d in status %q", e.Event, e.LoanID, e.Status)
}

// NotFoundError reports a missing loan, request or installment.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// InconsistentError reports a guard failure: the transition is allowed
// by the state machine but its precondition does not hold, e.g. closing
// a loan with unpaid installments.
type InconsistentError struct {
	Reason string
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("inconsistent state: %s", e.Reason)
}
