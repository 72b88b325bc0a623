package decibel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Aypp23/decibel-guardian/core"
	zladapter "github.com/Aypp23/decibel-guardian/logger/zerolog"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() core.Logger {
	l := zerolog.Nop()
	return zladapter.NewAdapter(&l)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}, testLogger())
}

func routes(t *testing.T, responses map[string]string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := responses[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	})
}

func TestClient_MarketsAndPrices(t *testing.T) {
	c := newTestClient(t, routes(t, map[string]string{
		"/markets":       `[{"market_addr":"0xbtc","market_name":"BTC-USD"}]`,
		"/market_prices": `[{"market":"0xbtc","mark_px":"65123.5"}]`,
	}))

	markets := c.Markets(context.Background())
	require.Equal(t, []core.Market{{Addr: "0xbtc", Name: "BTC-USD"}}, markets)

	prices := c.MarketPrices(context.Background())
	require.Equal(t, []core.MarketPrice{{Market: "0xbtc", MarkPx: 65123.5}}, prices)
}

func TestClient_MarketsDegradeToEmptyOnFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	require.Empty(t, c.Markets(context.Background()))
	require.Empty(t, c.MarketPrices(context.Background()))
}

func TestClient_PositionsEnrichment(t *testing.T) {
	c := newTestClient(t, routes(t, map[string]string{
		"/positions": `[{
			"market": "0xbtc",
			"size": 2,
			"entry_price": 60000,
			"user_leverage": 10,
			"estimated_liquidation_price": 54000,
			"is_isolated": true
		}]`,
	}))

	markets := []core.Market{{Addr: "0xbtc", Name: "BTC-USD"}}
	prices := []core.MarketPrice{{Market: "0xbtc", MarkPx: 65000}}

	positions, err := c.Positions(context.Background(), "0xwallet", markets, prices)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	pos := positions[0]
	require.Equal(t, "BTC-USD", pos.MarketName)
	require.Equal(t, 65000.0, pos.MarkPrice)
	require.Equal(t, 10000.0, pos.UnrealizedPnl)
	require.Equal(t, 54000.0, pos.LiquidationPrice)
	require.True(t, pos.IsIsolated)
}

func TestClient_PositionsUnknownMarket(t *testing.T) {
	c := newTestClient(t, routes(t, map[string]string{
		"/positions": `[{"market":"0xdoge","size":1,"entry_price":1}]`,
	}))

	positions, err := c.Positions(context.Background(), "0xwallet",
		[]core.Market{}, []core.MarketPrice{})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, "Unknown Market", positions[0].MarketName)
}

func TestClient_PositionsFetchesMarketDataWhenCachesAreNil(t *testing.T) {
	c := newTestClient(t, routes(t, map[string]string{
		"/markets":       `[{"market_addr":"0xbtc","market_name":"BTC-USD"}]`,
		"/market_prices": `[{"market":"0xbtc","mark_px":"65000"}]`,
		"/positions":     `[{"market":"0xbtc","size":1,"entry_price":60000}]`,
	}))

	positions, err := c.Positions(context.Background(), "0xwallet", nil, nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, "BTC-USD", positions[0].MarketName)
	require.Equal(t, 65000.0, positions[0].MarkPrice)
}

func TestClient_PositionsRateLimited(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Positions(context.Background(), "0xwallet",
		[]core.Market{}, []core.MarketPrice{})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_PositionsUpstreamError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Positions(context.Background(), "0xwallet",
		[]core.Market{}, []core.MarketPrice{})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_AccountOverview(t *testing.T) {
	c := newTestClient(t, routes(t, map[string]string{
		"/account_overview": `{"perp_equity_balance":1234.5,"cross_margin_ratio":0.42}`,
	}))

	overview, err := c.AccountOverview(context.Background(), "0xwallet")
	require.NoError(t, err)
	require.Equal(t, 1234.5, overview.PerpEquityBalance)
	require.Equal(t, 0.42, overview.CrossMarginRatio)
}

func TestClient_TradeHistoryBareArray(t *testing.T) {
	c := newTestClient(t, routes(t, map[string]string{
		"/trade_history": `[{"market":"0xbtc","size":"2","price":"60000","realized_pnl_amount":"150.5"}]`,
	}))

	trades := c.TradeHistory(context.Background(), "0xwallet")
	require.Equal(t, []core.Trade{{Market: "0xbtc", Size: 2, Price: 60000, RealizedPnl: 150.5}}, trades)
}

func TestClient_TradeHistoryWrappedObject(t *testing.T) {
	c := newTestClient(t, routes(t, map[string]string{
		"/trade_history": `{"data":[{"market":"0xbtc","size":"1","price":"65000","realized_pnl_amount":"-20"}]}`,
	}))

	trades := c.TradeHistory(context.Background(), "0xwallet")
	require.Equal(t, []core.Trade{{Market: "0xbtc", Size: 1, Price: 65000, RealizedPnl: -20}}, trades)
}

func TestClient_TradeHistoryFallsBackToOrderHistory(t *testing.T) {
	c := newTestClient(t, routes(t, map[string]string{
		"/trade_history": `{"status":"failed","message":"indexer lagging"}`,
		"/order_history": `{"items":[
			{"market":"0xbtc","orig_size":"2","price":"60000","status":"FILLED"},
			{"market":"0xbtc","orig_size":"1","price":"61000","status":"cancelled"}
		]}`,
	}))

	trades := c.TradeHistory(context.Background(), "0xwallet")
	require.Len(t, trades, 1)
	require.Equal(t, core.Trade{Market: "0xbtc", Size: 2, Price: 60000}, trades[0])
}

func TestClient_TradeHistoryDegradesToEmptyOnFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	require.Empty(t, c.TradeHistory(context.Background(), "0xwallet"))
}

func TestClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"}, testLogger())
	c.Markets(context.Background())

	require.Equal(t, "Bearer secret", gotAuth)
}
