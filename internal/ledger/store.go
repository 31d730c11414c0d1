package ledger

import (
	"context"
	"errors"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Balance is an account's spendable currencies.
type Balance struct {
	Tickets  int64 `json:"tickets"`
	Diamonds int64 `json:"diamonds"`
}

// Store owns account balances. Every mutation is a single atomic step:
// it either applies fully or leaves the balance untouched.
type Store interface {
	// Open creates a session account with an initial balance.
	Open(ctx context.Context, accountID string, initial Balance) (Balance, error)

	// Balance reads the current balance.
	Balance(ctx context.Context, accountID string) (Balance, error)

	// Debit removes tickets. If the balance is too small it returns the
	// unchanged ticket count and ErrInsufficientFunds.
	Debit(ctx context.Context, accountID string, tickets int64) (newTickets int64, err error)

	// Exchange spends diamonds and grants tickets in one step.
	Exchange(ctx context.Context, accountID string, diamonds, tickets int64) (Balance, error)

	// Close ends the session and drops the account.
	Close(ctx context.Context, accountID string) error
}
