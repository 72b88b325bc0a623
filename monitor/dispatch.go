package monitor

import (
	"fmt"
	"math"

	"github.com/Aypp23/decibel-guardian/core"
)

type alertKind string

const (
	alertKindLiquidation alertKind = "liquidation"
	alertKindNewPosition alertKind = "new_position"
	alertKindPriceTarget alertKind = "price_target"
)

// dispatch sends an alert fire-and-forget. A delivery failure is
// logged and never retried, and never blocks further alerts in the
// same tick.
func (m *Monitor) dispatch(chatID int64, kind alertKind, text string) {
	if err := m.notifier.Notify(chatID, text); err != nil {
		dispatchFailures.WithLabelValues(string(kind)).Inc()
		m.log.WithError(err).WithFields(map[string]any{
			"chat": chatID,
			"kind": string(kind),
		}).Error("failed to deliver alert")
		return
	}
	alertsDispatched.WithLabelValues(string(kind)).Inc()
}

// liquidationMessage renders the liquidation warning for one position.
func liquidationMessage(walletAddr string, pos core.Position) string {
	distancePct, distanceUSD := pos.LiquidationDistance()

	return fmt.Sprintf("🚨 **LIQUIDATION ALERT** 🚨\n\n"+
		"**Wallet:** `%s`\n"+
		"**Position:** %s\n"+
		"**Side:** %s\n"+
		"**Size:** %.2f\n"+
		"**Entry Price:** $%.2f\n"+
		"**Entry Value:** $%.2f\n"+
		"**Current Price:** $%.2f\n"+
		"**Current Value:** $%.2f\n"+
		"**Liquidation Price:** $%.2f\n"+
		"**Distance to Liquidation:** %.2f%% ($%.2f)\n\n"+
		"**Action Required:** Consider closing position or adding margin!",
		walletAddr,
		pos.MarketName,
		pos.Side(),
		math.Abs(pos.Size),
		pos.EntryPrice,
		pos.EntryValue(),
		pos.MarkPrice,
		pos.CurrentValue(),
		pos.LiquidationPrice,
		distancePct,
		distanceUSD,
	)
}

// newPositionMessage renders the whale-tracking notification.
func newPositionMessage(walletAddr string, pos core.Position) string {
	return fmt.Sprintf("🚨 **NEW POSITION DETECTED** 🚨\n\n"+
		"**Wallet:** `%s`\n"+
		"**Market:** %s\n"+
		"**Side:** %s %.0fx\n"+
		"**Entry:** $%.2f\n"+
		"**Size:** %.2f",
		walletAddr,
		pos.MarketName,
		pos.Side(),
		pos.Leverage,
		pos.EntryPrice,
		math.Abs(pos.Size),
	)
}

// priceTargetMessage renders the one-shot price alert.
func priceTargetMessage(alert core.PriceAlert, currentPrice float64) string {
	return fmt.Sprintf("🔔 **PRICE ALERT** 🔔\n\n"+
		"**%s** hit **$%g**!\nCurrent Price: $%g",
		alert.MarketName,
		alert.TargetPrice,
		currentPrice,
	)
}
