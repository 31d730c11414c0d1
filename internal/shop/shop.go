package shop

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/xtding233/tarot-house/internal/ledger"
)

// Exchanger is the ledger's diamond-for-ticket operation.
type Exchanger interface {
	Exchange(ctx context.Context, accountID string, diamonds, tickets int64) (ledger.Balance, error)
}

// Shop sells ticket packs for diamonds.
type Shop struct {
	catalog Catalog
	ledger  Exchanger
	logger  *slog.Logger
}

// New creates a shop. The catalog must already be valid.
func New(logger *slog.Logger, cat Catalog, ex Exchanger) *Shop {
	return &Shop{
		catalog: cat,
		ledger:  ex,
		logger:  logger.With("component", "shop"),
	}
}

func (s *Shop) Catalog() Catalog { return s.catalog }

// Buy purchases qty units of a pack in one exchange.
func (s *Shop) Buy(ctx context.Context, accountID, packID string, qty int) (ledger.Balance, error) {
	if qty <= 0 {
		return ledger.Balance{}, fmt.Errorf("%w: qty %d", ledger.ErrInvalidAmount, qty)
	}
	p, err := s.catalog.Pack(packID)
	if err != nil {
		return ledger.Balance{}, err
	}
	if int64(qty) > math.MaxInt64/max(p.Diamonds, p.Yield()) {
		return ledger.Balance{}, fmt.Errorf("%w: qty %d of pack %s overflows", ledger.ErrInvalidAmount, qty, p.ID)
	}
	diamonds := p.Diamonds * int64(qty)
	tickets := p.Yield() * int64(qty)
	b, err := s.ledger.Exchange(ctx, accountID, diamonds, tickets)
	if err != nil {
		return b, err
	}
	s.logger.Info("pack purchased", "accountID", accountID, "pack", p.ID, "qty", qty, "diamonds", diamonds, "tickets", tickets)
	return b, nil
}

// TopUp plans the cheapest way to cover a ticket shortfall.
func (s *Shop) TopUp(shortfall int64) (Plan, error) {
	return PlanTopUp(s.catalog, shortfall)
}

// Affordable plans the most tickets a diamond balance can buy.
func (s *Shop) Affordable(diamonds int64) (Plan, error) {
	return MaxTickets(s.catalog, diamonds)
}
