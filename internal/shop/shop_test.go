package shop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/tarot-house/internal/ledger"
)

func testCatalog() Catalog {
	return Catalog{Packs: []Pack{
		{ID: "one", Name: "1 Ticket", Diamonds: 160, Tickets: 1},
		{ID: "ten", Name: "10 Tickets", Diamonds: 1500, Tickets: 10},
	}}
}

func TestPlanTopUpPrefersBundles(t *testing.T) {
	plan, err := PlanTopUp(testCatalog(), 9)
	require.NoError(t, err)
	// 9 singles cost 1440, one bundle 1500: singles win
	assert.Equal(t, int64(1440), plan.TotalDiamonds)
	assert.Equal(t, int64(9), plan.TotalTickets)

	plan, err = PlanTopUp(testCatalog(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), plan.TotalDiamonds)
	require.Len(t, plan.Purchases, 1)
	assert.Equal(t, "ten", plan.Purchases[0].PackID)

	plan, err = PlanTopUp(testCatalog(), 12)
	require.NoError(t, err)
	assert.Equal(t, int64(1500+2*160), plan.TotalDiamonds)
	assert.Equal(t, int64(12), plan.TotalTickets)
}

func TestPlanTopUpNothingNeeded(t *testing.T) {
	plan, err := PlanTopUp(testCatalog(), 0)
	require.NoError(t, err)
	assert.Empty(t, plan.Purchases)
}

func TestPlanTopUpTooLarge(t *testing.T) {
	_, err := PlanTopUp(testCatalog(), maxPlanSize)
	assert.Error(t, err)
}

func TestMaxTickets(t *testing.T) {
	plan, err := MaxTickets(testCatalog(), 1700)
	require.NoError(t, err)
	// 1500 + 160 buys 11; ten singles would cost 1600 for 10
	assert.Equal(t, int64(11), plan.TotalTickets)
	assert.LessOrEqual(t, plan.TotalDiamonds, int64(1700))
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultCatalog().Validate())
	err := Catalog{Packs: []Pack{{ID: "a", Diamonds: 0, Tickets: 1}, {ID: "a", Diamonds: 1, Tickets: 0}}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated")
	assert.Contains(t, err.Error(), "diamonds must be > 0")
}

func TestBuy(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	_, err := store.Open(ctx, "acct", ledger.Balance{Tickets: 2, Diamonds: 2000})
	require.NoError(t, err)
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), DefaultCatalog(), store)

	b, err := s.Buy(ctx, "acct", "ten", 1)
	require.NoError(t, err)
	assert.Equal(t, ledger.Balance{Tickets: 13, Diamonds: 400}, b)

	_, err = s.Buy(ctx, "acct", "ten", 1)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientFunds))

	_, err = s.Buy(ctx, "acct", "missing", 1)
	assert.True(t, errors.Is(err, ErrPackNotFound))

	_, err = s.Buy(ctx, "acct", "one", 0)
	assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))
}

func TestBuyRejectsOverflowingQty(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	_, err := store.Open(ctx, "acct", ledger.Balance{Diamonds: 100})
	require.NoError(t, err)
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), DefaultCatalog(), store)

	// 160 * qty wraps to 32 in int64
	_, err = s.Buy(ctx, "acct", "one", 345876451382054093)
	assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))
	_, err = s.Buy(ctx, "acct", "fifty", math.MaxInt)
	assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))

	b, err := store.Balance(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, ledger.Balance{Diamonds: 100}, b)
}
