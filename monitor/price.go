package monitor

import (
	"github.com/Aypp23/decibel-guardian/core"
)

// evaluatePriceAlerts fires the subscriber's one-shot price targets
// against the shared mark-price map. Markets missing from the map are
// skipped entirely: the alert neither fires nor disappears, it just
// waits for a tick with a usable price. Fired alerts are removed by
// exclusion, which stays correct when several fire in the same tick.
func (m *Monitor) evaluatePriceAlerts(chatID int64, user *core.UserConfig, priceByMarket map[string]float64) {
	if len(user.PriceAlerts) == 0 {
		return
	}

	var fired []core.PriceAlert
	for _, alert := range user.PriceAlerts {
		currentPrice, ok := priceByMarket[alert.MarketAddr]
		if !ok || currentPrice == 0 {
			continue
		}
		if !alert.Triggered(currentPrice) {
			continue
		}

		m.dispatch(chatID, alertKindPriceTarget, priceTargetMessage(alert, currentPrice))
		fired = append(fired, alert)
	}

	if len(fired) > 0 {
		m.users.RemovePriceAlerts(chatID, fired)
	}
}
