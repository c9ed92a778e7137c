package repository

import (
	"context"
	"fmt"

	"buyoutengine/database"
	"buyoutengine/events"
	"buyoutengine/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	buyoutRepo       service.BuyoutRequestRepository
	loanRepo         service.LoanRepository
	installmentRepo  service.InstallmentRepository
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.buyoutRepo = newBuyoutRequestRepositoryWithTx(tx)
	u.loanRepo = newLoanRepositoryWithTx(tx)
	u.installmentRepo = newInstallmentRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// BuyoutRequestRepository returns the buyout request repository for this unit of work
func (u *unitOfWork) BuyoutRequestRepository() service.BuyoutRequestRepository {
	if u.buyoutRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.buyoutRepo
}

// LoanRepository returns the loan repository for this unit of work
func (u *unitOfWork) LoanRepository() service.LoanRepository {
	if u.loanRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.loanRepo
}

// InstallmentRepository returns the installment repository for this unit of work
func (u *unitOfWork) InstallmentRepository() service.InstallmentRepository {
	if u.installmentRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.installmentRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
