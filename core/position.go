package core

import "math"

// SideType identifies the direction of a perp position.
type SideType string

const (
	SideTypeLong  SideType = "LONG"
	SideTypeShort SideType = "SHORT"
)

// Market is a perp market listed on the exchange.
type Market struct {
	Addr string `json:"market_addr"`
	Name string `json:"market_name"`
}

// MarketPrice is the current mark price of a single market.
type MarketPrice struct {
	Market string  `json:"market"`
	MarkPx float64 `json:"mark_px"`
}

// PriceMap builds a market-address to mark-price lookup shared
// read-only across one monitor tick.
func PriceMap(prices []MarketPrice) map[string]float64 {
	m := make(map[string]float64, len(prices))
	for _, p := range prices {
		m[p.Market] = p.MarkPx
	}
	return m
}

// Position is an open perp position enriched with market metadata and
// the mark price at fetch time. Size is signed: positive means long,
// negative means short.
type Position struct {
	MarketAddr       string  `json:"market_addr"`
	MarketName       string  `json:"market_name"`
	Size             float64 `json:"size"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	Leverage         float64 `json:"leverage"`
	LiquidationPrice float64 `json:"liquidation_price"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	IsIsolated       bool    `json:"is_isolated"`
}

// Side returns LONG or SHORT from the sign of the position size.
func (p Position) Side() SideType {
	if p.Size > 0 {
		return SideTypeLong
	}
	return SideTypeShort
}

// EntryValue is the absolute notional value at entry.
func (p Position) EntryValue() float64 {
	return math.Abs(p.Size * p.EntryPrice)
}

// CurrentValue is the absolute notional value at the mark price.
func (p Position) CurrentValue() float64 {
	return math.Abs(p.Size * p.MarkPrice)
}

// PnlPercent is the unrealized PnL relative to the entry value.
func (p Position) PnlPercent() float64 {
	entry := p.EntryValue()
	if entry == 0 {
		return 0
	}
	return p.UnrealizedPnl / entry * 100
}

// LiquidationDistance returns the gap between the mark price and the
// liquidation price, as a percentage of the liquidation price and in
// dollars of notional. Positions without liquidation risk
// (LiquidationPrice <= 0) report a zero distance and must not be
// evaluated for liquidation alerts; use HasLiquidationRisk to gate.
func (p Position) LiquidationDistance() (pct, dollars float64) {
	if p.LiquidationPrice <= 0 {
		return 0, 0
	}
	priceDistance := math.Abs(p.MarkPrice - p.LiquidationPrice)
	pct = priceDistance / p.LiquidationPrice * 100
	dollars = priceDistance * math.Abs(p.Size)
	return pct, dollars
}

// HasLiquidationRisk reports whether the position can be liquidated at
// all. Fully collateralized positions carry a non-positive
// liquidation price sentinel upstream.
func (p Position) HasLiquidationRisk() bool {
	return p.LiquidationPrice > 0
}

// RiskTier is a display-only classification of how close a position is
// to liquidation. It never drives alert dispatch.
type RiskTier int

const (
	RiskTierGreen RiskTier = iota
	RiskTierYellow
	RiskTierRed
)

// ClassifyRisk buckets a liquidation distance against the subscriber's
// threshold: red within the threshold, yellow within twice the
// threshold, green otherwise.
func ClassifyRisk(distancePct, thresholdPct float64) RiskTier {
	switch {
	case distancePct <= thresholdPct:
		return RiskTierRed
	case distancePct <= thresholdPct*2:
		return RiskTierYellow
	default:
		return RiskTierGreen
	}
}

// Emoji returns the status marker used when rendering positions.
func (t RiskTier) Emoji() string {
	switch t {
	case RiskTierRed:
		return "🔴"
	case RiskTierYellow:
		return "🟡"
	default:
		return "🟢"
	}
}

// AccountOverview is the portfolio summary for a wallet.
type AccountOverview struct {
	PerpEquityBalance float64 `json:"perp_equity_balance"`
	CrossMarginRatio  float64 `json:"cross_margin_ratio"`
}

// Trade is a single fill from the trade history feed.
type Trade struct {
	Market      string  `json:"market"`
	Size        float64 `json:"size"`
	Price       float64 `json:"price"`
	RealizedPnl float64 `json:"realized_pnl"`
}
