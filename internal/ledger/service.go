package ledger

import (
	"context"
	"errors"
	"log/slog"
)

// Service guards ticket balances. It is the only component allowed to
// change a balance; nothing reads a balance and writes it back.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a ledger service over store.
func NewService(logger *slog.Logger, store Store) *Service {
	return &Service{
		store:  store,
		logger: logger.With("component", "ledger_service"),
	}
}

func (s *Service) Open(ctx context.Context, accountID string, initial Balance) (Balance, error) {
	b, err := s.store.Open(ctx, accountID, initial)
	if err != nil {
		s.logger.Error("open account failed", "accountID", accountID, "error", err)
		return Balance{}, err
	}
	s.logger.Info("account opened", "accountID", accountID, "tickets", b.Tickets, "diamonds", b.Diamonds)
	return b, nil
}

func (s *Service) Balance(ctx context.Context, accountID string) (Balance, error) {
	return s.store.Balance(ctx, accountID)
}

// CanAfford reports whether the account holds at least amount tickets.
// It is advisory only; Debit re-checks atomically.
func (s *Service) CanAfford(ctx context.Context, accountID string, amount int64) (bool, error) {
	b, err := s.store.Balance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return b.Tickets >= amount, nil
}

// Debit removes amount tickets and returns the new ticket balance.
func (s *Service) Debit(ctx context.Context, accountID string, amount int64) (int64, error) {
	newTickets, err := s.store.Debit(ctx, accountID, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			s.logger.Info("debit rejected", "accountID", accountID, "amount", amount, "tickets", newTickets)
		} else {
			s.logger.Error("debit failed", "accountID", accountID, "amount", amount, "error", err)
		}
		return newTickets, err
	}
	return newTickets, nil
}

// Exchange spends diamonds for tickets.
func (s *Service) Exchange(ctx context.Context, accountID string, diamonds, tickets int64) (Balance, error) {
	b, err := s.store.Exchange(ctx, accountID, diamonds, tickets)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			s.logger.Info("exchange rejected", "accountID", accountID, "diamonds", diamonds, "balance", b.Diamonds)
		} else {
			s.logger.Error("exchange failed", "accountID", accountID, "diamonds", diamonds, "tickets", tickets, "error", err)
		}
		return b, err
	}
	return b, nil
}

func (s *Service) Close(ctx context.Context, accountID string) error {
	if err := s.store.Close(ctx, accountID); err != nil {
		s.logger.Error("close account failed", "accountID", accountID, "error", err)
		return err
	}
	return nil
}
