// Package decibel implements the read-only client for the Decibel
// perp DEX indexer API.
package decibel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Aypp23/decibel-guardian/core"

	"golang.org/x/time/rate"
)

// ---------------------
// Constants and Errors
// ---------------------

const (
	DefaultBaseURL = "https://api.testnet.aptoslabs.com/decibel/api/v1"

	defaultTimeout   = 15 * time.Second
	tradeHistoryPage = 1000
)

// Failure taxonomy at the collaborator boundary. Callers only branch
// on success vs failure; the classification picks the log severity.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrBadSchema   = errors.New("unexpected response schema")
	ErrUnavailable = errors.New("upstream unavailable")
)

// ---------------------
// Types
// ---------------------

// Config holds the client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	// RateLimit caps outbound requests per second. Zero disables the
	// client-side limiter.
	RateLimit float64
	Timeout   time.Duration
}

// Client is a read-only HTTP client for the Decibel indexer.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     core.Logger
}

// NewClient creates a Decibel API client.
func NewClient(cfg Config, log core.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		log:     log,
	}
}

// ---------------------
// Wire formats
// ---------------------

type wireMarketPrice struct {
	Market string      `json:"market"`
	MarkPx json.Number `json:"mark_px"`
}

type wirePosition struct {
	Market            string  `json:"market"`
	Size              float64 `json:"size"`
	EntryPrice        float64 `json:"entry_price"`
	UserLeverage      float64 `json:"user_leverage"`
	EstimatedLiqPrice float64 `json:"estimated_liquidation_price"`
	UnrealizedFunding float64 `json:"unrealized_funding"`
	IsIsolated        bool    `json:"is_isolated"`
}

type wireTrade struct {
	Market            string      `json:"market"`
	Size              json.Number `json:"size"`
	Price             json.Number `json:"price"`
	RealizedPnlAmount json.Number `json:"realized_pnl_amount"`
}

type wireOrder struct {
	Market         string      `json:"market"`
	OrigSize       json.Number `json:"orig_size"`
	Price          json.Number `json:"price"`
	Status         string      `json:"status"`
	OrderDirection string      `json:"order_direction"`
}

// ---------------------
// Public API
// ---------------------

// Markets lists all perp markets. The market list is non-critical, so
// a failed fetch degrades to an empty slice.
func (c *Client) Markets(ctx context.Context) []core.Market {
	markets, err := c.fetchMarkets(ctx)
	if err != nil {
		c.logFetchError("markets", err)
		return []core.Market{}
	}
	return markets
}

// MarketPrices returns the current mark price of every market, or an
// empty slice when the fetch fails. Rate-limit failures are expected
// under load and are suppressed to a warning.
func (c *Client) MarketPrices(ctx context.Context) []core.MarketPrice {
	prices, err := c.fetchMarketPrices(ctx)
	if err != nil {
		c.logFetchError("market prices", err)
		return []core.MarketPrice{}
	}
	return prices
}

// Positions fetches the open positions of a wallet and enriches them
// with the market name, the mark price and the computed unrealized
// PnL. Passing cached markets and prices avoids redundant upstream
// calls within one monitor tick.
//
// A non-nil error means "could not determine state this tick": the
// caller must leave any stored snapshot untouched. An empty slice with
// a nil error is a valid "no open positions" update.
func (c *Client) Positions(ctx context.Context, addr string, markets []core.Market, prices []core.MarketPrice) ([]core.Position, error) {
	// A nil cache means "fetch here"; an empty non-nil cache is an
	// intentional degraded tick and is used as-is.
	var err error
	if markets == nil {
		if markets, err = c.fetchMarkets(ctx); err != nil {
			return nil, fmt.Errorf("positions for %s: %w", addr, err)
		}
	}
	if prices == nil {
		if prices, err = c.fetchMarketPrices(ctx); err != nil {
			return nil, fmt.Errorf("positions for %s: %w", addr, err)
		}
	}

	nameByAddr := make(map[string]string, len(markets))
	for _, m := range markets {
		nameByAddr[m.Addr] = m.Name
	}
	priceByAddr := core.PriceMap(prices)

	var raw []wirePosition
	if err := c.getJSON(ctx, "/positions", url.Values{"user": {addr}}, &raw); err != nil {
		return nil, fmt.Errorf("positions for %s: %w", addr, err)
	}

	positions := make([]core.Position, 0, len(raw))
	for _, p := range raw {
		name, ok := nameByAddr[p.Market]
		if !ok {
			name = "Unknown Market"
		}
		markPrice := priceByAddr[p.Market]

		positions = append(positions, core.Position{
			MarketAddr:       p.Market,
			MarketName:       name,
			Size:             p.Size,
			EntryPrice:       p.EntryPrice,
			MarkPrice:        markPrice,
			Leverage:         p.UserLeverage,
			LiquidationPrice: p.EstimatedLiqPrice,
			UnrealizedPnl:    (markPrice - p.EntryPrice) * p.Size,
			IsIsolated:       p.IsIsolated,
		})
	}
	return positions, nil
}

// AccountOverview fetches the portfolio summary for a wallet.
func (c *Client) AccountOverview(ctx context.Context, addr string) (core.AccountOverview, error) {
	var overview core.AccountOverview
	if err := c.getJSON(ctx, "/account_overview", url.Values{"user": {addr}}, &overview); err != nil {
		return core.AccountOverview{}, fmt.Errorf("account overview for %s: %w", addr, err)
	}
	return overview, nil
}

// TradeHistory fetches the fill history of a wallet. The feed is
// non-critical: any failure degrades to an empty slice instead of
// propagating as FAILURE. The endpoint is known to answer in three
// shapes (bare array, paginated object, status=failed); when it
// reports failure the client falls back to filled orders from the
// order history, which at least preserves volume and trade count.
func (c *Client) TradeHistory(ctx context.Context, addr string) []core.Trade {
	query := url.Values{"user": {addr}, "limit": {fmt.Sprint(tradeHistoryPage)}}

	body, err := c.getRaw(ctx, "/trade_history", query)
	if err != nil {
		c.logFetchError("trade history", err)
		return []core.Trade{}
	}

	var raw []wireTrade
	if err := json.Unmarshal(body, &raw); err == nil {
		return decodeTrades(raw)
	}

	var wrapped struct {
		Status  string      `json:"status"`
		Message string      `json:"message"`
		Data    []wireTrade `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		c.log.WithError(err).Error("unexpected trade history response format")
		return []core.Trade{}
	}

	if wrapped.Status == "failed" {
		c.log.Warnf("trade history API failed: %s, falling back to order history", wrapped.Message)
		return c.tradesFromOrderHistory(ctx, addr)
	}
	return decodeTrades(wrapped.Data)
}

// ---------------------
// Internal fetchers
// ---------------------

func (c *Client) fetchMarkets(ctx context.Context) ([]core.Market, error) {
	var markets []core.Market
	if err := c.getJSON(ctx, "/markets", nil, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

func (c *Client) fetchMarketPrices(ctx context.Context) ([]core.MarketPrice, error) {
	var raw []wireMarketPrice
	if err := c.getJSON(ctx, "/market_prices", nil, &raw); err != nil {
		return nil, err
	}

	prices := make([]core.MarketPrice, 0, len(raw))
	for _, p := range raw {
		markPx, _ := p.MarkPx.Float64()
		prices = append(prices, core.MarketPrice{Market: p.Market, MarkPx: markPx})
	}
	return prices, nil
}

// tradesFromOrderHistory maps filled orders to the trade shape.
// Realized PnL is not available on orders and stays zero.
func (c *Client) tradesFromOrderHistory(ctx context.Context, addr string) []core.Trade {
	body, err := c.getRaw(ctx, "/order_history", url.Values{"user": {addr}})
	if err != nil {
		c.logFetchError("order history", err)
		return []core.Trade{}
	}

	var wrapped struct {
		Items []wireOrder `json:"items"`
		Data  []wireOrder `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		c.log.WithError(err).Error("unexpected order history response format")
		return []core.Trade{}
	}

	orders := wrapped.Items
	if len(orders) == 0 {
		orders = wrapped.Data
	}

	trades := make([]core.Trade, 0, len(orders))
	for _, o := range orders {
		if !strings.EqualFold(o.Status, "filled") {
			continue
		}
		size, _ := o.OrigSize.Float64()
		price, _ := o.Price.Float64()
		trades = append(trades, core.Trade{
			Market: o.Market,
			Size:   size,
			Price:  price,
		})
	}
	return trades
}

// ---------------------
// Transport
// ---------------------

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.getRaw(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadSchema, path, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, path)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s: status %d", ErrUnavailable, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}

// logFetchError differentiates log severity by failure class. Rate
// limits are routine under load and stay at warn level.
func (c *Client) logFetchError(what string, err error) {
	if errors.Is(err, ErrRateLimited) {
		c.log.Warnf("rate limit hit fetching %s, skipping update", what)
		return
	}
	c.log.WithError(err).Errorf("failed to fetch %s", what)
}

func decodeTrades(raw []wireTrade) []core.Trade {
	trades := make([]core.Trade, 0, len(raw))
	for _, t := range raw {
		size, _ := t.Size.Float64()
		price, _ := t.Price.Float64()
		pnl, _ := t.RealizedPnlAmount.Float64()
		trades = append(trades, core.Trade{
			Market:      t.Market,
			Size:        size,
			Price:       price,
			RealizedPnl: pnl,
		})
	}
	return trades
}
