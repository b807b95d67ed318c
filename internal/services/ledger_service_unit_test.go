package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cashledger/internal/models"
	"cashledger/internal/store"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type failingTransactionStore struct {
	*memTransactions
	createErr error
}

func (s failingTransactionStore) Create(context.Context, store.Execer, models.Transaction) error {
	return s.createErr
}

func TestCreateOperationPropagatesRunnerError(t *testing.T) {
	f := newLedgerFixture(t)
	boom := errors.New("serialization retries exhausted")
	f.svc.txRunner = fakeTxRunner{err: boom}

	_, err := f.svc.CreateOperation(context.Background(), OperationRequest{
		UserID: cashierID, Type: models.TypeDeposit, BankAccountID: accBank, Amount: dec("10"),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
	if len(f.hub.calls) != 0 {
		t.Fatalf("nothing may be broadcast when the unit of work fails")
	}
}

func TestCreateOperationRollsBackOnStoreError(t *testing.T) {
	f := newLedgerFixture(t)
	boom := errors.New("insert failed")
	f.svc.transactions = failingTransactionStore{memTransactions: f.txs, createErr: boom}

	_, err := f.svc.CreateOperation(context.Background(), OperationRequest{
		UserID: cashierID, Type: models.TypeDeposit, BankAccountID: accBank, Amount: dec("10"),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if got := f.l.balance(accBank); got != "1000.00" {
		t.Fatalf("bank balance = %s after rollback", got)
	}
	if got := f.l.balance(accCash); got != "500.00" {
		t.Fatalf("cash balance = %s after rollback", got)
	}
}

func TestAsError(t *testing.T) {
	wrapped := fmt.Errorf("%w: acc-1", ErrAccountNotFound)
	domainErr, ok := AsError(wrapped)
	if !ok {
		t.Fatalf("expected domain error")
	}
	if domainErr.Kind != KindNotFound || domainErr.Code != "account_not_found" {
		t.Fatalf("unexpected error %+v", domainErr)
	}
	if _, ok := AsError(errors.New("plain")); ok {
		t.Fatalf("plain errors are not domain errors")
	}
}
