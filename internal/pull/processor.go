package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xtding233/tarot-house/internal/catalog"
	"github.com/xtding233/tarot-house/internal/gacha"
	"github.com/xtding233/tarot-house/internal/ledger"
	"github.com/xtding233/tarot-house/internal/metrics"
)

// Request asks for one pull from a pool.
type Request struct {
	PoolID string `json:"pool_id"`
	Mode   Mode   `json:"mode"`
}

// Draw is one revealed card.
type Draw struct {
	Tier gacha.Tier `json:"tier"`
	Card string     `json:"card"`
}

// Result is the ordered outcome of a completed pull.
type Result struct {
	ID           string    `json:"id"`
	PoolID       string    `json:"pool_id"`
	Mode         Mode      `json:"mode"`
	Cost         int64     `json:"cost"`
	TicketsAfter int64     `json:"tickets_after"`
	Draws        []Draw    `json:"draws"`
	CreatedAt    time.Time `json:"created_at"`
}

// Highlight is the first draw of the rarest tier in the batch, for a
// single-card reveal.
func (r *Result) Highlight() Draw {
	best := r.Draws[0]
	for _, d := range r.Draws[1:] {
		if d.Tier > best.Tier {
			best = d
		}
	}
	return best
}

// PoolSource resolves pools by id.
type PoolSource interface {
	GetPool(id string) (*catalog.Pool, error)
}

// Debiter is the ledger's debit operation.
type Debiter interface {
	Debit(ctx context.Context, accountID string, amount int64) (int64, error)
}

// Processor runs pull requests end to end:
// resolve pool, debit cost, then resolve every draw in the batch.
type Processor struct {
	pools   PoolSource
	ledger  Debiter
	rng     gacha.RandomSource
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewProcessor creates a processor. A nil rng uses the crypto source;
// a nil metrics disables instrumentation.
func NewProcessor(logger *slog.Logger, pools PoolSource, debiter Debiter, rng gacha.RandomSource, m *metrics.Metrics) *Processor {
	if rng == nil {
		rng = gacha.DefaultRNG()
	}
	return &Processor{
		pools:   pools,
		ledger:  debiter,
		rng:     rng,
		logger:  logger.With("component", "pull_processor"),
		metrics: m,
		now:     time.Now,
	}
}

// Pull executes req for accountID. On any error no tickets are spent and
// no draws are made. Once the debit succeeds the pull always completes.
func (p *Processor) Pull(ctx context.Context, accountID string, req Request) (*Result, error) {
	started := time.Now()
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(req.Mode))
	}
	mode := req.Mode.String()

	pool, err := p.pools.GetPool(req.PoolID)
	if err != nil {
		p.metrics.ObservePull(metrics.UnknownPool, mode, metrics.OutcomePoolNotFound, started)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cost := req.Mode.Cost(pool)
	ticketsAfter, err := p.ledger.Debit(ctx, accountID, cost)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			outcome = metrics.OutcomeRejected
		}
		p.metrics.ObservePull(pool.ID, mode, outcome, started)
		return nil, err
	}

	draws := make([]Draw, req.Mode.BatchSize())
	for i := range draws {
		draws[i] = Draw{
			Tier: gacha.Resolve(pool.Table, p.rng),
			Card: catalog.PickCard(pool, p.rng),
		}
		p.metrics.ObserveDraw(pool.ID, draws[i].Tier.String())
	}

	res := &Result{
		ID:           uuid.NewString(),
		PoolID:       pool.ID,
		Mode:         req.Mode,
		Cost:         cost,
		TicketsAfter: ticketsAfter,
		Draws:        draws,
		CreatedAt:    p.now(),
	}
	p.metrics.ObserveSpend(pool.ID, cost)
	p.metrics.ObservePull(pool.ID, mode, metrics.OutcomeCompleted, started)
	p.logger.Info("pull completed",
		"accountID", accountID,
		"pullID", res.ID,
		"pool", pool.ID,
		"mode", mode,
		"cost", cost,
		"ticketsAfter", ticketsAfter,
		"highlight", res.Highlight().Tier.String(),
	)
	return res, nil
}
