package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/events"
	"perp-indexer/internal/events/eventtest"
	"perp-indexer/internal/indexer"
	"perp-indexer/internal/logging"
	"perp-indexer/internal/storage"
	"perp-indexer/internal/storage/memory"
)

func usdValue(whole int64, frac string) *big.Int {
	v, ok := new(big.Int).SetString(big.NewInt(whole).String()+frac, 10)
	if !ok {
		panic("bad value")
	}
	return v
}

// e30 returns whole * 10^30.
func e30(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(PriceDecimals), nil))
}

func newTestServer(t *testing.T) (*Server, *memory.EntityStore) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewEntityStore()

	d, err := indexer.NewDispatcher(store, indexer.Options{Chain: "arbitrum", Dedupe: true, Logger: logging.Discard()})
	require.NoError(t, err)

	decrease := uint8(domain.OrderTypeMarketDecrease)
	require.NoError(t, d.HandleAll(ctx, []*events.Event{
		eventtest.PriceTick("0x01", 0, "0xcandle", 99, 100, 60),
		eventtest.PriceTick("0x02", 0, "0xcandle", 119, 120, 90),
		eventtest.OrderCreated("0xcreate", 0, "0xorder", "0xacc", "0xmarket", true, 1, 0, decrease),
		eventtest.FundingUpdated("0xexec", 0, "0xacc", "0xmarket", "0xtoken", 50),
		eventtest.OrderUpdate(events.NameOrderExecuted, "0xexec", 1, "0xorder", "0xacc"),
		eventtest.CollateralClaim(events.NameCollateralClaimed, "0xclaim", 0, "0xacc", "0xmarket", "0xtoken", 3),
	}))

	require.NoError(t, storage.Save(ctx, store, &domain.TokenPrice{
		ID:        "0xeth",
		MinPrice:  usdValue(2499, "500000000000000000000000000000"),
		MaxPrice:  e30(2500),
		UpdatedAt: 1700000000,
	}))

	return NewServer(":0", map[string]storage.EntityStore{"arbitrum": store}, logging.Discard()), store
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status string   `json:"status"`
		Chains []string `json:"chains"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{"arbitrum"}, body.Chains)
}

func TestPrice(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/v1/arbitrum/prices/0xETH")
	require.Equal(t, http.StatusOK, rec.Code)

	var p PriceResponse
	decode(t, rec, &p)
	assert.Equal(t, "0xeth", p.Token)
	assert.Equal(t, e30(2500).String(), p.MaxPrice)
	assert.Equal(t, "2500", p.MaxPriceUsd)
	assert.Equal(t, "2499.5", p.MinPriceUsd)
	assert.Equal(t, int64(1700000000), p.UpdatedAt)
}

func TestPrice_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/v1/arbitrum/prices/0xabsent")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var e ErrorResponse
	decode(t, rec, &e)
	assert.Equal(t, "price not found", e.Message)
}

func TestConvert(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/v1/arbitrum/prices/0xeth/convert?usd="+e30(5000).String())
	require.Equal(t, http.StatusOK, rec.Code)
	var c ConvertResponse
	decode(t, rec, &c)
	assert.Equal(t, "usdToAmount", c.Direction)
	assert.Equal(t, "2", c.Output)

	rec = get(t, s, "/v1/arbitrum/prices/0xeth/convert?amount=2")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &c)
	assert.Equal(t, "amountToUsd", c.Direction)
	assert.Equal(t, usdValue(4999, "000000000000000000000000000000").String(), c.Output)
}

func TestConvert_UnknownTokenIsZero(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/v1/arbitrum/prices/0xabsent/convert?usd=100")
	require.Equal(t, http.StatusOK, rec.Code)

	var c ConvertResponse
	decode(t, rec, &c)
	assert.Equal(t, "0", c.Output)
}

func TestConvert_BadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	for _, q := range []string{"", "?usd=1&amount=1", "?usd=abc", "?amount=-5"} {
		rec := get(t, s, "/v1/arbitrum/prices/0xeth/convert"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", q)
	}
}

func TestCandle(t *testing.T) {
	s, _ := newTestServer(t)

	// Any timestamp inside the bucket resolves to the bucket start.
	rec := get(t, s, "/v1/arbitrum/candles/0xcandle/1m/95")
	require.Equal(t, http.StatusOK, rec.Code)

	var c CandleResponse
	decode(t, rec, &c)
	assert.Equal(t, int64(60), c.Timestamp)
	assert.Equal(t, "1m", c.Period)
	assert.Equal(t, "0.0000000000000000000000000001", c.Open)
	assert.Equal(t, "0.00000000000000000000000000012", c.High)
	assert.Equal(t, "0.00000000000000000000000000012", c.Close)
}

func TestCandle_BadInput(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/arbitrum/candles/0xcandle/2m/60").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/arbitrum/candles/0xcandle/1m/soon").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/v1/arbitrum/candles/0xcandle/1m/600").Code)
}

func TestClaimAction(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/v1/arbitrum/claims/0xEXEC/0xACC/"+domain.ClaimEventSettleFundingFeeExecuted)
	require.Equal(t, http.StatusOK, rec.Code)

	var a domain.ClaimAction
	decode(t, rec, &a)
	assert.Equal(t, []string{"0xmarket"}, a.MarketAddresses())
	assert.Equal(t, []string{"0xtoken"}, a.TokenAddresses())
	require.Len(t, a.Amounts(), 1)
	assert.Equal(t, int64(50), a.Amounts()[0].Int64())

	rec = get(t, s, "/v1/arbitrum/claims/0xexec/0xacc/"+domain.ClaimEventSettleFundingFeeCancelled)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClaimCollateralAction(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/v1/arbitrum/collateral-claims/0xclaim/0xacc/"+domain.ClaimEventClaimPriceImpact)
	require.Equal(t, http.StatusOK, rec.Code)

	var a domain.ClaimCollateralAction
	decode(t, rec, &a)
	require.Len(t, a.Amounts(), 1)
	assert.Equal(t, int64(3), a.Amounts()[0].Int64())
}

func TestOrderAndTransaction(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/v1/arbitrum/orders/0xORDER")
	require.Equal(t, http.StatusOK, rec.Code)
	var o domain.Order
	decode(t, rec, &o)
	assert.Equal(t, domain.OrderStatusExecuted, o.Status)
	assert.Equal(t, "0xexec", o.ExecutedTxn)

	rec = get(t, s, "/v1/arbitrum/transactions/0xCreate")
	require.Equal(t, http.StatusOK, rec.Code)
	var tx domain.Transaction
	decode(t, rec, &tx)
	assert.Equal(t, "0xcreate", tx.Hash)
}

func TestUnknownChain(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/v1/optimism/orders/0xorder")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var e ErrorResponse
	decode(t, rec, &e)
	assert.Contains(t, e.Message, "optimism")
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/arbitrum/orders/0xorder", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
