package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xtding233/tarot-house/internal/catalog"
	"github.com/xtding233/tarot-house/internal/gacha"
	"github.com/xtding233/tarot-house/internal/ledger"
	"github.com/xtding233/tarot-house/internal/pull"
	"github.com/xtding233/tarot-house/internal/shop"
)

const (
	defaultOddsTrials = 10000
	maxOddsTrials     = 20000
	// maxOddsDraws bounds the expected number of resolutions one odds
	// request performs, whatever the target's probability.
	maxOddsDraws = 2_000_000
)

// Puller runs pull requests.
type Puller interface {
	Pull(ctx context.Context, accountID string, req pull.Request) (*pull.Result, error)
}

// Accounts is the part of the ledger the API exposes.
type Accounts interface {
	Open(ctx context.Context, accountID string, initial ledger.Balance) (ledger.Balance, error)
	Balance(ctx context.Context, accountID string) (ledger.Balance, error)
	Close(ctx context.Context, accountID string) error
}

// Handler serves the REST API.
type Handler struct {
	pools    *catalog.Source
	puller   Puller
	accounts Accounts
	shop     *shop.Shop
	starting ledger.Balance
	oddsRNG  gacha.RandomSource
	logger   *slog.Logger
}

// NewHandler creates a Handler. starting is the balance of new session
// accounts. oddsRNG drives odds simulations only and must not be the
// source pulls draw from; nil uses the crypto source.
func NewHandler(logger *slog.Logger, pools *catalog.Source, puller Puller, accounts Accounts, s *shop.Shop, starting ledger.Balance, oddsRNG gacha.RandomSource) *Handler {
	if oddsRNG == nil {
		oddsRNG = gacha.DefaultRNG()
	}
	return &Handler{
		pools:    pools,
		puller:   puller,
		accounts: accounts,
		shop:     s,
		starting: starting,
		oddsRNG:  oddsRNG,
		logger:   logger.With("component", "http_handler"),
	}
}

type bandView struct {
	Tier  gacha.Tier `json:"tier"`
	Label string     `json:"label"`
	Prob  float64    `json:"prob"`
}

type poolView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	SingleCost    int64      `json:"single_cost"`
	MultiCost     int64      `json:"multi_cost"`
	MultiPullSize int        `json:"multi_pull_size"`
	CardCount     int        `json:"card_count"`
	Odds          []bandView `json:"odds"`
}

func newPoolView(p *catalog.Pool) poolView {
	v := poolView{
		ID:            p.ID,
		Name:          p.Name,
		SingleCost:    p.SingleCost,
		MultiCost:     p.MultiCost,
		MultiPullSize: pull.MultiPullSize,
		CardCount:     len(p.Cards),
	}
	for _, b := range p.Table.Bands() {
		v.Odds = append(v.Odds, bandView{Tier: b.Tier, Label: b.Tier.Label(), Prob: b.Prob})
	}
	return v
}

// HandleListPools returns every pool in the current catalog.
func (h *Handler) HandleListPools(c *gin.Context) {
	cat := h.pools.Current()
	views := make([]poolView, 0, len(cat.Pools()))
	for _, p := range cat.Pools() {
		views = append(views, newPoolView(p))
	}
	c.JSON(http.StatusOK, gin.H{"version": cat.Version(), "pools": views})
}

// HandleGetPool returns one pool.
func (h *Handler) HandleGetPool(c *gin.Context) {
	p, err := h.pools.GetPool(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPoolView(p))
}

// HandleOdds simulates the pool's table: observed frequencies and the
// number of draws until the first result at or above target.
func (h *Handler) HandleOdds(c *gin.Context) {
	p, err := h.pools.GetPool(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	trials, err := strconv.Atoi(c.DefaultQuery("trials", strconv.Itoa(defaultOddsTrials)))
	if err != nil || trials <= 0 || trials > maxOddsTrials {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trials must be between 1 and " + strconv.Itoa(maxOddsTrials)})
		return
	}
	target := p.Table.Rarest()
	if s := c.Query("target"); s != "" {
		if target, err = gacha.ParseTier(s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	dist := gacha.Simulate(p.Table, trials, h.oddsRNG)
	freqs := make(map[string]float64, len(dist.Counts))
	for tier := range dist.Counts {
		freqs[tier.String()] = dist.Freq(tier)
	}
	mcTrials := drawBudget(trials, p.Table.ProbAtLeast(target))
	st := gacha.RunMonteCarlo(p.Table, target, mcTrials, h.oddsRNG)
	c.JSON(http.StatusOK, gin.H{
		"pool":        p.ID,
		"trials":      trials,
		"frequencies": freqs,
		"target":      target,
		"draws_until_target": gin.H{
			"trials": mcTrials,
			"mean":   st.Mean,
			"stddev": st.StdDev,
			"p50":    st.P50,
			"p90":    st.P90,
			"p99":    st.P99,
		},
	})
}

// drawBudget caps Monte Carlo trials so that trials/pHit, the expected
// number of draws, stays within maxOddsDraws.
func drawBudget(trials int, pHit float64) int {
	if pHit > 0 && float64(trials)/pHit > maxOddsDraws {
		return max(1, int(maxOddsDraws*pHit))
	}
	return trials
}

type openAccountRequest struct {
	ID string `json:"id"`
}

// HandleOpenAccount starts a session account with the configured balance.
func (h *Handler) HandleOpenAccount(c *gin.Context) {
	var req openAccountRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	b, err := h.accounts.Open(c.Request.Context(), req.ID, h.starting)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": req.ID, "balance": b})
}

// HandleGetAccount returns the account balance.
func (h *Handler) HandleGetAccount(c *gin.Context) {
	id := c.Param("id")
	b, err := h.accounts.Balance(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "balance": b})
}

// HandleCloseAccount ends the session.
func (h *Handler) HandleCloseAccount(c *gin.Context) {
	if err := h.accounts.Close(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlePull executes a pull. A rejected pull answers 402 with the
// cheapest top-up that would cover it and what the account's diamonds buy now.
func (h *Handler) HandlePull(c *gin.Context) {
	var req pull.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	res, err := h.puller.Pull(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			h.writeInsufficient(c, id, req, err)
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":    res,
		"highlight": res.Highlight(),
	})
}

func (h *Handler) writeInsufficient(c *gin.Context, accountID string, req pull.Request, cause error) {
	body := gin.H{"error": cause.Error()}
	p, err := h.pools.GetPool(req.PoolID)
	if err == nil {
		b, err := h.accounts.Balance(c.Request.Context(), accountID)
		if err == nil {
			shortfall := req.Mode.Cost(p) - b.Tickets
			body["shortfall"] = shortfall
			if plan, err := h.shop.TopUp(shortfall); err == nil {
				body["top_up"] = plan
			}
			if plan, err := h.shop.Affordable(b.Diamonds); err == nil && plan.TotalTickets > 0 {
				body["affordable"] = plan
			}
		}
	}
	c.JSON(http.StatusPaymentRequired, body)
}

// HandleTopUp plans the cheapest packs for a number of tickets.
func (h *Handler) HandleTopUp(c *gin.Context) {
	if _, err := h.accounts.Balance(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	tickets, err := strconv.ParseInt(c.Query("tickets"), 10, 64)
	if err != nil || tickets <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tickets must be a positive integer"})
		return
	}
	plan, err := h.shop.TopUp(tickets)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

type exchangeRequest struct {
	PackID string `json:"pack_id" binding:"required"`
	Qty    int    `json:"qty"`
}

// HandleExchange buys ticket packs with diamonds.
func (h *Handler) HandleExchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	b, err := h.shop.Buy(c.Request.Context(), c.Param("id"), req.PackID, req.Qty)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "balance": b})
}

// HandleListPacks returns the shop catalog.
func (h *Handler) HandleListPacks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packs": h.shop.Catalog().Packs})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrPoolNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, shop.ErrPackNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, pull.ErrInvalidMode),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
