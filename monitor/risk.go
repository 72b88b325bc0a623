package monitor

import (
	"context"

	"github.com/Aypp23/decibel-guardian/core"
)

// evaluateRisk walks every wallet the subscriber owns and raises a
// liquidation alert for each open position whose distance to
// liquidation is inside the subscriber's threshold. Alerts are
// deduplicated per (subscriber, wallet, market) and gated by the
// subscriber's cooldown window.
func (m *Monitor) evaluateRisk(ctx context.Context, chatID int64, user *core.UserConfig, markets []core.Market, prices []core.MarketPrice) {
	for _, walletAddr := range user.Wallets {
		positions, err := m.data.Positions(ctx, walletAddr, markets, prices)
		if err != nil {
			fetchFailures.WithLabelValues("owned").Inc()
			m.log.WithError(err).WithFields(map[string]any{
				"chat":   chatID,
				"wallet": walletAddr,
			}).Warn("skipping wallet risk evaluation")
			continue
		}

		for _, pos := range positions {
			if !pos.HasLiquidationRisk() {
				continue
			}

			distancePct, _ := pos.LiquidationDistance()
			if distancePct > user.AlertThresholdPct {
				continue
			}

			key := core.LiquidationAlertKey(chatID, walletAddr, pos.MarketName)
			if !m.users.TryAlert(chatID, key, m.now()) {
				continue
			}

			m.dispatch(chatID, alertKindLiquidation, liquidationMessage(walletAddr, pos))
		}
	}
}
