/*
Package ledger manages per-requester-per-year leave-day accounts.

PURPOSE:
  The balance ledger is the source of truth for how many leave days a
  requester has. Every account mutation goes through a small set of
  named operations:

    Reserve:  pending += days   (at submission; fails when overdrawn)
    Commit:   pending -= days, used += days   (terminal approval)
    Release:  pending -= days   (rejection or cancellation)
    Uncommit: used -= days, pending += days   (compensation when the
              terminal save fails after the commit already settled)

  Raw field writes do not exist. The reserve must later be paired with
  exactly one commit or release carrying the same day amount - that
  pairing is the ledger's core invariant, and the workflow enforces the
  exactly-once half of it by performing the pairing only at the terminal
  transition, compensating with Uncommit or a fresh Reserve when the
  transition fails to persist.

INVARIANTS (checked on every mutation):
  1. Available = Total - Used - Pending >= 0
  2. Used + Pending <= Total
  3. Used >= 0, Pending >= 0

CONCURRENCY:
  Each operation is an atomic read-modify-write against one account row.
  Operations on the same (requester, year) account serialize on a
  per-account mutex, independent of which request touches them. Two
  simultaneous submissions can never both reserve the last available day.

SEE ALSO:
  - workflow/: invokes reserve at submission and commit/release at
    terminal transitions
  - store/memory, store/sqlite: AccountStore implementations
*/
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/campus/leave-engine/leave"
)

// =============================================================================
// ACCOUNT - One (requester, year) balance row
// =============================================================================

// Account holds the day amounts for one requester in one year. The
// stored Total is the single source of truth for the allotment; no
// constant is ever substituted when deriving availability.
type Account struct {
	RequesterID leave.RequesterID
	Year        int
	Total       decimal.Decimal
	Used        decimal.Decimal
	Pending     decimal.Decimal
}

// Available returns Total - Used - Pending.
func (a Account) Available() decimal.Decimal {
	return a.Total.Sub(a.Used).Sub(a.Pending)
}

// check verifies the account invariants after a mutation.
func (a Account) check() error {
	if a.Used.IsNegative() || a.Pending.IsNegative() {
		return fmt.Errorf("%w: negative used or pending on %s/%d", leave.ErrConflict, a.RequesterID, a.Year)
	}
	if a.Used.Add(a.Pending).GreaterThan(a.Total) {
		return fmt.Errorf("%w: used + pending exceeds total on %s/%d", leave.ErrConflict, a.RequesterID, a.Year)
	}
	return nil
}

// =============================================================================
// ACCOUNT STORE - Persistence boundary
// =============================================================================

type AccountStore interface {
	// Get returns the account row. leave.ErrNotFound when absent.
	Get(ctx context.Context, id leave.RequesterID, year int) (Account, error)

	// Put upserts the account row.
	Put(ctx context.Context, account Account) error

	// ByRequester returns all account rows for a requester.
	ByRequester(ctx context.Context, id leave.RequesterID) ([]Account, error)
}

// =============================================================================
// LEDGER
// =============================================================================

type accountKey struct {
	id   leave.RequesterID
	year int
}

// Ledger serializes all mutations per account and checks invariants in
// one place.
type Ledger struct {
	store AccountStore

	mu    sync.Mutex
	locks map[accountKey]*sync.Mutex
}

func New(store AccountStore) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[accountKey]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding one account row, creating it on
// first use.
func (l *Ledger) lockFor(id leave.RequesterID, year int) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := accountKey{id: id, year: year}
	if _, ok := l.locks[k]; !ok {
		l.locks[k] = &sync.Mutex{}
	}
	return l.locks[k]
}

// Open provisions an account with an explicit yearly allotment. It is
// idempotent for an identical allotment and refuses to shrink an
// existing account below its consumed days.
func (l *Ledger) Open(ctx context.Context, id leave.RequesterID, year int, total decimal.Decimal) error {
	if !total.IsPositive() {
		return &leave.ValidationError{Field: "total", Reason: "allotment must be positive"}
	}

	lock := l.lockFor(id, year)
	lock.Lock()
	defer lock.Unlock()

	existing, err := l.store.Get(ctx, id, year)
	if err == nil {
		if existing.Used.Add(existing.Pending).GreaterThan(total) {
			return fmt.Errorf("%w: allotment below consumed days on %s/%d", leave.ErrConflict, id, year)
		}
		existing.Total = total
		return l.store.Put(ctx, existing)
	}
	if !leave.IsNotFound(err) {
		return err
	}

	return l.store.Put(ctx, Account{
		RequesterID: id,
		Year:        year,
		Total:       total,
		Used:        decimal.Zero,
		Pending:     decimal.Zero,
	})
}

// Reserve holds days against the account while a request is undecided.
// Fails with leave.ErrInsufficientBalance when availability is short.
func (l *Ledger) Reserve(ctx context.Context, id leave.RequesterID, year int, days decimal.Decimal) error {
	return l.mutate(ctx, id, year, days, func(a *Account) error {
		if a.Available().LessThan(days) {
			return &leave.InsufficientBalanceError{
				RequesterID: id,
				Year:        year,
				Available:   a.Available(),
				Requested:   days,
			}
		}
		a.Pending = a.Pending.Add(days)
		return nil
	})
}

// Commit converts a prior reservation into used days. Must be called
// with the same day amount that was reserved.
func (l *Ledger) Commit(ctx context.Context, id leave.RequesterID, year int, days decimal.Decimal) error {
	return l.mutate(ctx, id, year, days, func(a *Account) error {
		if a.Pending.LessThan(days) {
			return fmt.Errorf("%w: commit of %s exceeds pending %s on %s/%d",
				leave.ErrConflict, days, a.Pending, id, year)
		}
		a.Pending = a.Pending.Sub(days)
		a.Used = a.Used.Add(days)
		return nil
	})
}

// Uncommit moves committed days back into pending. It is the inverse of
// Commit, used when persisting a final approval fails after the ledger
// already settled: restoring the hold keeps the stored request and the
// account paired so the transition can be retried.
func (l *Ledger) Uncommit(ctx context.Context, id leave.RequesterID, year int, days decimal.Decimal) error {
	return l.mutate(ctx, id, year, days, func(a *Account) error {
		if a.Used.LessThan(days) {
			return fmt.Errorf("%w: uncommit of %s exceeds used %s on %s/%d",
				leave.ErrConflict, days, a.Used, id, year)
		}
		a.Used = a.Used.Sub(days)
		a.Pending = a.Pending.Add(days)
		return nil
	})
}

// Release returns a prior reservation to availability. Must be called
// with the same day amount that was reserved.
func (l *Ledger) Release(ctx context.Context, id leave.RequesterID, year int, days decimal.Decimal) error {
	return l.mutate(ctx, id, year, days, func(a *Account) error {
		if a.Pending.LessThan(days) {
			return fmt.Errorf("%w: release of %s exceeds pending %s on %s/%d",
				leave.ErrConflict, days, a.Pending, id, year)
		}
		a.Pending = a.Pending.Sub(days)
		return nil
	})
}

// Balance returns the current account row.
func (l *Ledger) Balance(ctx context.Context, id leave.RequesterID, year int) (Account, error) {
	lock := l.lockFor(id, year)
	lock.Lock()
	defer lock.Unlock()
	return l.store.Get(ctx, id, year)
}

// Accounts returns every account row for a requester.
func (l *Ledger) Accounts(ctx context.Context, id leave.RequesterID) ([]Account, error) {
	return l.store.ByRequester(ctx, id)
}

// mutate is the single atomic read-modify-write path. The per-account
// lock is held across load, mutation, invariant check and store.
func (l *Ledger) mutate(ctx context.Context, id leave.RequesterID, year int, days decimal.Decimal, fn func(*Account) error) error {
	if !days.IsPositive() {
		return &leave.ValidationError{Field: "days", Reason: "amount must be positive"}
	}

	lock := l.lockFor(id, year)
	lock.Lock()
	defer lock.Unlock()

	account, err := l.store.Get(ctx, id, year)
	if err != nil {
		return err
	}
	if err := fn(&account); err != nil {
		return err
	}
	if err := account.check(); err != nil {
		return err
	}
	return l.store.Put(ctx, account)
}
