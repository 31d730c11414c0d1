package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/tarot-house/internal/catalog"
	"github.com/xtding233/tarot-house/internal/gacha"
	"github.com/xtding233/tarot-house/internal/ledger"
	"github.com/xtding233/tarot-house/internal/metrics"
	"github.com/xtding233/tarot-house/internal/pull"
	"github.com/xtding233/tarot-house/internal/shop"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, limiter *RateLimiter) *gin.Engine {
	t.Helper()
	return newSeededRouter(t, limiter, 1)
}

func newSeededRouter(t *testing.T, limiter *RateLimiter, seed uint64) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	one, ten := int64(1), int64(10)
	cat, err := catalog.Build(catalog.DefaultConfig{Version: "t"}, []catalog.PoolConfig{
		{ID: "arcana", Name: "Major Arcana", Cost: catalog.CostConfig{Single: &one, Multi: &ten}, Cards: []string{"The Fool", "The Moon"}},
	})
	require.NoError(t, err)
	src := catalog.NewSource(cat)
	rng := gacha.NewSeededRNG(seed)
	m := metrics.New()
	accounts := ledger.NewService(logger, ledger.NewMemoryStore())
	proc := pull.NewProcessor(logger, src, accounts, rng, m)
	s := shop.New(logger, shop.DefaultCatalog(), accounts)
	h := NewHandler(logger, src, proc, accounts, s, ledger.Balance{Tickets: 15, Diamonds: 2000}, nil)
	return NewRouter(logger, h, limiter, m.Handler())
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func openAccount(t *testing.T, r http.Handler, id string) {
	t.Helper()
	w, _ := do(t, r, http.MethodPost, "/api/v1/accounts", map[string]string{"id": id})
	require.Equal(t, http.StatusCreated, w.Code)
}

func tickets(t *testing.T, r http.Handler, id string) float64 {
	t.Helper()
	w, body := do(t, r, http.MethodGet, "/api/v1/accounts/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return body["balance"].(map[string]any)["tickets"].(float64)
}

func TestListPools(t *testing.T) {
	r := newTestRouter(t, nil)
	w, body := do(t, r, http.MethodGet, "/api/v1/pools", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pools := body["pools"].([]any)
	require.Len(t, pools, 1)
	p := pools[0].(map[string]any)
	assert.Equal(t, "arcana", p["id"])
	assert.Equal(t, float64(10), p["multi_pull_size"])
	assert.Len(t, p["odds"], 4)

	w, _ = do(t, r, http.MethodGet, "/api/v1/pools/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPullFlow(t *testing.T) {
	r := newTestRouter(t, nil)
	openAccount(t, r, "alice")

	w, body := do(t, r, http.MethodPost, "/api/v1/accounts/alice/pulls", map[string]string{"pool_id": "arcana", "mode": "multi"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := body["result"].(map[string]any)
	assert.Len(t, res["draws"], 10)
	assert.Equal(t, "multi", res["mode"])
	assert.Equal(t, float64(5), res["tickets_after"])
	assert.NotNil(t, body["highlight"])
	assert.Equal(t, float64(5), tickets(t, r, "alice"))

	w, body = do(t, r, http.MethodPost, "/api/v1/accounts/alice/pulls", map[string]string{"pool_id": "arcana", "mode": "multi"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, float64(5), body["shortfall"])
	assert.NotNil(t, body["top_up"])
	assert.Equal(t, float64(13), body["affordable"].(map[string]any)["total_tickets"])
	assert.Equal(t, float64(5), tickets(t, r, "alice"))
}

func TestPullErrors(t *testing.T) {
	r := newTestRouter(t, nil)
	openAccount(t, r, "bob")

	w, _ := do(t, r, http.MethodPost, "/api/v1/accounts/bob/pulls", map[string]string{"pool_id": "nope", "mode": "single"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/accounts/bob/pulls", map[string]string{"pool_id": "arcana", "mode": "five"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/accounts/bob/pulls", map[string]string{"pool_id": "arcana"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/accounts/carol/pulls", map[string]string{"pool_id": "arcana", "mode": "single"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(15), tickets(t, r, "bob"))
}

func TestAccountLifecycle(t *testing.T) {
	r := newTestRouter(t, nil)
	w, body := do(t, r, http.MethodPost, "/api/v1/accounts", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["id"].(string)
	assert.NotEmpty(t, id)

	w, _ = do(t, r, http.MethodPost, "/api/v1/accounts", map[string]string{"id": id})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/api/v1/accounts/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/v1/accounts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExchangeAndTopUp(t *testing.T) {
	r := newTestRouter(t, nil)
	openAccount(t, r, "dana")

	w, body := do(t, r, http.MethodGet, "/api/v1/accounts/dana/topup?tickets=11", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(11), body["total_tickets"])

	w, body = do(t, r, http.MethodPost, "/api/v1/accounts/dana/exchange", map[string]any{"pack_id": "ten"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bal := body["balance"].(map[string]any)
	assert.Equal(t, float64(26), bal["tickets"])
	assert.Equal(t, float64(400), bal["diamonds"])

	w, _ = do(t, r, http.MethodPost, "/api/v1/accounts/dana/exchange", map[string]any{"pack_id": "ten"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/accounts/dana/exchange", map[string]any{"pack_id": "gold"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/v1/accounts/dana/topup?tickets=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOdds(t *testing.T) {
	r := newTestRouter(t, nil)
	w, body := do(t, r, http.MethodGet, "/api/v1/pools/arcana/odds?trials=5000&target=SR", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "super_rare", body["target"])
	freqs := body["frequencies"].(map[string]any)
	assert.InDelta(t, 0.6, freqs["common"].(float64), 0.05)

	w, _ = do(t, r, http.MethodGet, "/api/v1/pools/arcana/odds?trials=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/v1/pools/arcana/odds?target=mythic", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOddsDoNotConsumePullRandomness(t *testing.T) {
	pullDraws := func(callOdds bool) any {
		r := newSeededRouter(t, nil, 7)
		openAccount(t, r, "gil")
		if callOdds {
			w, _ := do(t, r, http.MethodGet, "/api/v1/pools/arcana/odds?trials=500", nil)
			require.Equal(t, http.StatusOK, w.Code)
		}
		w, body := do(t, r, http.MethodPost, "/api/v1/accounts/gil/pulls", map[string]string{"pool_id": "arcana", "mode": "multi"})
		require.Equal(t, http.StatusOK, w.Code)
		return body["result"].(map[string]any)["draws"]
	}
	assert.Equal(t, pullDraws(false), pullDraws(true))
}

func TestOddsBoundsWork(t *testing.T) {
	r := newTestRouter(t, nil)
	w, _ := do(t, r, http.MethodGet, "/api/v1/pools/arcana/odds?trials=100000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := do(t, r, http.MethodGet, "/api/v1/pools/arcana/odds?trials=300", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(300), body["draws_until_target"].(map[string]any)["trials"])

	cases := []struct {
		trials int
		pHit   float64
		want   int
	}{
		{maxOddsTrials, 0.5, maxOddsTrials},
		{maxOddsTrials, 1.0 / 1024, 1953},
		{10, 1e-9, 1},
		{10, 0, 10},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, drawBudget(tc.trials, tc.pHit), "trials=%d p=%v", tc.trials, tc.pHit)
	}
}

func TestOddsRateLimitedPerClient(t *testing.T) {
	r := newTestRouter(t, NewRateLimiter(0.001, 1))
	w, _ := do(t, r, http.MethodGet, "/api/v1/pools/arcana/odds?trials=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/v1/pools/arcana/odds?trials=10", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/pools/arcana", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPullRateLimited(t *testing.T) {
	r := newTestRouter(t, NewRateLimiter(0.001, 1))
	openAccount(t, r, "erin")
	w, _ := do(t, r, http.MethodPost, "/api/v1/accounts/erin/pulls", map[string]string{"pool_id": "arcana", "mode": "single"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/accounts/erin/pulls", map[string]string{"pool_id": "arcana", "mode": "single"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, float64(14), tickets(t, r, "erin"))
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, nil)
	w, _ := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	openAccount(t, r, "fay")
	do(t, r, http.MethodPost, "/api/v1/accounts/fay/pulls", map[string]string{"pool_id": "arcana", "mode": "single"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tarot_house_pulls_total{mode="single",outcome="completed",pool="arcana"} 1`)
}
