package monitor

import (
	"context"
	"strings"

	"github.com/Aypp23/decibel-guardian/core"
)

// diffTrackedWallet fetches the current positions of a tracked wallet
// and raises a "new position" event for every market key that was
// absent from the stored snapshot. The snapshot is then replaced
// wholesale, including when the wallet closed everything: shrinkage is
// deliberately silent, only growth in the market-key set notifies.
//
// A fetch failure leaves the stored snapshot untouched so the next
// successful poll diffs against real prior state.
func (m *Monitor) diffTrackedWallet(ctx context.Context, addr string, users map[int64]*core.UserConfig, markets []core.Market, prices []core.MarketPrice) {
	current, err := m.data.Positions(ctx, addr, markets, prices)
	if err != nil {
		fetchFailures.WithLabelValues("tracked").Inc()
		m.log.WithError(err).WithField("wallet", addr).Warn("skipping tracked wallet update")
		return
	}

	known, hasBaseline := m.snapshots.Snapshot(addr)

	for _, pos := range current {
		marketKey := strings.ToLower(pos.MarketAddr)
		if _, ok := known[marketKey]; ok {
			continue
		}
		// Without a baseline every position would look new; the
		// baseline fetch at /track time prevents that, so a missing
		// snapshot here means the store was lost mid-flight and we
		// only rebuild state.
		if !hasBaseline {
			continue
		}
		m.fanOutNewPosition(users, addr, pos)
	}

	if err := m.snapshots.Replace(addr, current); err != nil {
		m.log.WithError(err).WithField("wallet", addr).Error("failed to store snapshot")
	}
}

// fanOutNewPosition notifies every subscriber tracking the wallet.
func (m *Monitor) fanOutNewPosition(users map[int64]*core.UserConfig, addr string, pos core.Position) {
	for chatID, user := range users {
		if !user.Tracks(addr) {
			continue
		}
		m.dispatch(chatID, alertKindNewPosition, newPositionMessage(addr, pos))
	}
}
