// Package core defines the domain types and the boundary interfaces
// shared by the monitor engine, the Telegram surface and the Decibel
// market-data client.
package core

import "context"

// MarketData is the read-only trading-data collaborator.
//
// Markets, MarketPrices and TradeHistory return an empty slice when the
// upstream call fails: those feeds are non-critical and an empty result
// only degrades the current tick. Positions is different: a nil slice
// with a non-nil error means "could not determine state this tick" and
// callers must preserve whatever state they already hold. An empty
// slice with a nil error is a valid update meaning "no open positions".
type MarketData interface {
	Markets(ctx context.Context) []Market
	MarketPrices(ctx context.Context) []MarketPrice
	Positions(ctx context.Context, addr string, markets []Market, prices []MarketPrice) ([]Position, error)
	AccountOverview(ctx context.Context, addr string) (AccountOverview, error)
	TradeHistory(ctx context.Context, addr string) []Trade
}

// Notifier delivers a message to a single chat. Delivery is
// fire-and-forget: implementations must not retry, callers only log a
// returned error.
type Notifier interface {
	Notify(chatID int64, text string) error
}

// SnapshotStore keeps the last-known position set per wallet address,
// keyed by lowercase market address.
type SnapshotStore interface {
	// Snapshot returns the stored position set and whether the wallet
	// has ever been snapshotted.
	Snapshot(addr string) (map[string]Position, bool)
	// Replace overwrites the stored snapshot wholesale, including with
	// an empty position set.
	Replace(addr string, positions []Position) error
	// Drop removes the snapshot for a wallet that is no longer tracked.
	Drop(addr string) error
}
