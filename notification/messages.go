package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Aypp23/decibel-guardian/core"

	"github.com/samber/lo"
	tb "gopkg.in/tucnak/telebot.v2"
)

// ---------------------
// Static texts and keyboards
// ---------------------

func dashboardText() string {
	return "🛡️ **Decibel Guardian**\n\n" +
		"**Welcome!** I am your liquidation defense system.\n" +
		"I monitor your positions in real-time to keep your funds safe.\n\n" +
		"**🚀 Features:**\n" +
		"• **Real-Time Tracking**: Alerts on every poll cycle.\n" +
		"• **Multi-Wallet**: Track several wallets safely.\n" +
		"• **New Position Spy**: Track other traders with `/track`.\n\n" +
		"**📋 Commands:**\n" +
		"`/start <wallet>` - Quick setup\n" +
		"`/addwallet <addr> <name>` - Add another wallet\n" +
		"`/alert <symbol> <price>` - Set a price target\n" +
		"`/track <addr>` - Spy on a whale's new positions"
}

func dashboardKeyboard() *tb.ReplyMarkup {
	return &tb.ReplyMarkup{
		InlineKeyboard: [][]tb.InlineButton{
			{
				{Text: "📊 Status", Data: "status"},
				{Text: "📈 Account Stats", Data: "account"},
			},
			{
				{Text: "👛 Wallets", Data: "wallets"},
				{Text: "🔔 Active Alerts", Data: "alerts"},
			},
			{
				{Text: "🕵️ Tracked Wallets", Data: "tracking"},
				{Text: "⚙️ Settings", Data: "settings"},
			},
		},
	}
}

func onboardingText() string {
	return "👋 **Welcome to Decibel Guardian!**\n\n" +
		"To get started, I need your wallet address.\n\n" +
		"**Quick Setup:**\n" +
		"`/start <your_wallet_address>`\n\n" +
		"**Example:**\n" +
		"`/start 0x1234567890abcdef...`\n\n" +
		"Once registered, you'll have access to all features!"
}

func onboardingKeyboard() *tb.ReplyMarkup {
	return &tb.ReplyMarkup{
		InlineKeyboard: [][]tb.InlineButton{
			{{Text: "🏠 Go to Dashboard", Data: "start"}},
		},
	}
}

func backMenuKeyboard() *tb.ReplyMarkup {
	return &tb.ReplyMarkup{
		InlineKeyboard: [][]tb.InlineButton{
			{{Text: "🔙 Back to Menu", Data: "start"}},
		},
	}
}

func refreshKeyboard(target string) *tb.ReplyMarkup {
	return &tb.ReplyMarkup{
		InlineKeyboard: [][]tb.InlineButton{
			{
				{Text: "🔄 Refresh", Data: target},
				{Text: "🔙 Back to Menu", Data: "start"},
			},
		},
	}
}

// ---------------------
// Wallets
// ---------------------

func walletsText() string {
	return "👛 **Your Wallets:**\nSelect a wallet to make it **Active** (view stats/alerts):"
}

func walletsKeyboard(user *core.UserConfig) *tb.ReplyMarkup {
	names := lo.Keys(user.Wallets)
	sort.Strings(names)

	var rows [][]tb.InlineButton
	for _, name := range names {
		check := ""
		if name == user.ActiveWallet {
			check = "✅ "
		}
		rows = append(rows, []tb.InlineButton{{
			Text: fmt.Sprintf("%s%s (%s)", check, name, shortAddr(user.Wallets[name])),
			Data: "switch_" + name,
		}})
	}
	rows = append(rows, []tb.InlineButton{{Text: "🔙 Back to Menu", Data: "start"}})

	return &tb.ReplyMarkup{InlineKeyboard: rows}
}

// ---------------------
// Tracking
// ---------------------

func trackingText(user *core.UserConfig) string {
	if len(user.TrackedWallets) == 0 {
		return "You are not tracking any wallets."
	}

	var sb strings.Builder
	sb.WriteString("🕵️ **Tracked Wallets:**\n\n")
	for i, addr := range user.TrackedWallets {
		fmt.Fprintf(&sb, "%d. `%s`\n", i+1, addr)
	}
	return sb.String()
}

// ---------------------
// Settings
// ---------------------

func settingsText(user *core.UserConfig) string {
	return fmt.Sprintf("⚙️ **Settings**\n\n"+
		"**Active Wallet:** `%s`\n"+
		"**Alert Threshold:** %g%%\n"+
		"**Alert Interval:** %s\n\n"+
		"**ℹ️ What is Threshold?**\n"+
		"Alert triggers when price is within **X%%** of liquidation.\n"+
		"(e.g. 5%% = Danger zone starts 5%% before liquidation)\n\n"+
		"Use the buttons below to adjust preferences.",
		shortAddr(user.ActiveAddress()),
		user.AlertThresholdPct,
		formatDuration(user.AlertCooldown))
}

func settingsKeyboard(user *core.UserConfig) *tb.ReplyMarkup {
	minutes := int(user.AlertCooldown / time.Minute)

	return &tb.ReplyMarkup{
		InlineKeyboard: [][]tb.InlineButton{
			{{Text: "📉 Alert Threshold (% Drop)", Data: "noop"}},
			{
				{Text: "➖", Data: "set_t_down"},
				{Text: fmt.Sprintf("%g%%", user.AlertThresholdPct), Data: "noop"},
				{Text: "➕", Data: "set_t_up"},
			},
			{{Text: "⏱️ Alert Interval (Time)", Data: "noop"}},
			{
				{Text: "➖", Data: "set_d_down"},
				{Text: fmt.Sprintf("%dm", minutes), Data: "noop"},
				{Text: "➕", Data: "set_d_up"},
			},
			{{Text: "🔙 Back to Menu", Data: "start"}},
		},
	}
}

// ---------------------
// Price alerts
// ---------------------

func alertsText(user *core.UserConfig, markets []core.Market) string {
	var sb strings.Builder
	sb.WriteString("🔔 **Active Alerts**\n\n")

	if len(user.PriceAlerts) == 0 {
		sb.WriteString("**Price Targets:** None set.\n")
	} else {
		sb.WriteString("**Price Targets:**\n")
		for i, alert := range user.PriceAlerts {
			fmt.Fprintf(&sb, "%d. **%s** Target: $%g\n", i+1, alert.MarketName, alert.TargetPrice)
		}
	}

	sb.WriteString("\n──────────────────\n\n")

	if len(markets) == 0 {
		sb.WriteString("**Available Tokens:** (Failed to fetch list)")
	} else {
		names := make([]string, 0, len(markets))
		for _, m := range markets {
			names = append(names, m.Name)
		}
		sort.Strings(names)
		fmt.Fprintf(&sb, "**Available Tokens:**\n`%s`", strings.Join(names, ", "))
	}

	sb.WriteString("\n\n**💡 How to use:**\n" +
		"To set a price alert, use:\n" +
		"`/alert <Symbol> <Price>`\n\n" +
		"**Examples:**\n" +
		"• `/alert BTC 65000` (Alert when BTC hits $65k)\n" +
		"• `/alert ETH 3500` (Alert when ETH hits $3500)")

	return sb.String()
}

// resolveMarket matches a user-entered symbol against the market list:
// exact name first, then the -USD and -PERP suffixed forms, then a
// substring match.
func resolveMarket(markets []core.Market, symbol string) (core.Market, bool) {
	for _, m := range markets {
		if m.Name == symbol || m.Name == symbol+"-USD" || m.Name == symbol+"-PERP" {
			return m, true
		}
	}
	for _, m := range markets {
		if strings.Contains(m.Name, symbol) {
			return m, true
		}
	}
	return core.Market{}, false
}

// ---------------------
// Status
// ---------------------

// statusMessage renders the open positions of the active wallet. This
// runs in the foreground, so a fetch failure surfaces as a user-visible
// message instead of being silently skipped.
func (t *Telegram) statusMessage(user *core.UserConfig) (string, *tb.ReplyMarkup) {
	activeAddr := user.ActiveAddress()

	positions, err := t.data.Positions(context.Background(), activeAddr, nil, nil)
	if err != nil {
		return "❌ Unable to fetch positions. Try again later.", backMenuKeyboard()
	}
	if len(positions) == 0 {
		return fmt.Sprintf("📊 **[%s]** No active positions found.", user.ActiveWallet), backMenuKeyboard()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 **Account Status (%s)**\n**Wallet:** `%s`\n\n**Active Positions:**\n\n",
		user.ActiveWallet, activeAddr)

	totalPnl := 0.0
	for _, pos := range positions {
		totalPnl += pos.UnrealizedPnl

		distancePct, distanceUSD := pos.LiquidationDistance()
		tier := core.ClassifyRisk(distancePct, user.AlertThresholdPct)

		pnlEmoji := "🔴"
		if pos.UnrealizedPnl >= 0 {
			pnlEmoji = "🟢"
		}

		fmt.Fprintf(&sb, "%s **%s** (%s %gx)\n"+
			"   Size: %.2f\n"+
			"   Entry Price: $%.2f\n"+
			"   Entry Value: $%.2f\n"+
			"   Current Price: $%.2f\n"+
			"   Current Value: $%.2f\n"+
			"   Liquidation Price: $%.2f\n"+
			"   Distance to Liquidation: %.2f%% ($%.2f)\n"+
			"   PnL: %s $%.2f (%.2f%%)\n\n",
			tier.Emoji(), pos.MarketName, pos.Side(), pos.Leverage,
			absFloat(pos.Size),
			pos.EntryPrice,
			pos.EntryValue(),
			pos.MarkPrice,
			pos.CurrentValue(),
			pos.LiquidationPrice,
			distancePct, distanceUSD,
			pnlEmoji, pos.UnrealizedPnl, pos.PnlPercent())
	}

	totalEmoji := "🔴"
	if totalPnl >= 0 {
		totalEmoji = "🟢"
	}
	fmt.Fprintf(&sb, "**Total Unrealized PnL:** %s $%.2f", totalEmoji, totalPnl)

	return sb.String(), refreshKeyboard("status")
}

// ---------------------
// Account overview
// ---------------------

// accountMessage renders the portfolio summary together with
// aggregated trade statistics.
func (t *Telegram) accountMessage(user *core.UserConfig) (string, *tb.ReplyMarkup) {
	ctx := context.Background()
	activeAddr := user.ActiveAddress()

	overview, err := t.data.AccountOverview(ctx, activeAddr)
	if err != nil {
		return "❌ Unable to fetch account data.", backMenuKeyboard()
	}

	trades := t.data.TradeHistory(ctx, activeAddr)
	markets := t.data.Markets(ctx)
	positions, posErr := t.data.Positions(ctx, activeAddr, markets, nil)
	if posErr != nil {
		positions = nil
	}

	nameByAddr := make(map[string]string, len(markets))
	for _, m := range markets {
		nameByAddr[m.Addr] = m.Name
	}

	stats := summarizeTrades(trades, nameByAddr)

	totalUnrealized := 0.0
	for _, pos := range positions {
		totalUnrealized += pos.UnrealizedPnl
	}

	text := fmt.Sprintf("📊 **Account Overview (%s)**\n"+
		"**Wallet:** `%s`\n\n"+
		"**📈 Trading Statistics:**\n"+
		"• Total Trades: %d\n"+
		"• All-Time Volume: $%.2f\n"+
		"• Win Rate: %.1f%%\n"+
		"• Profitable: %d\n"+
		"• Losing: %d\n"+
		"• Largest Win: 🟢 +$%.2f %s\n"+
		"• Largest Loss: 🔴 $%.2f %s\n\n"+
		"**💰 PnL Breakdown:**\n"+
		"• Realized PnL: %s $%.2f\n"+
		"• Unrealized PnL: %s $%.2f\n\n"+
		"**🏦 Portfolio Summary:**\n"+
		"• Equity: $%.2f\n"+
		"• Margin Usage: %.2f%%\n"+
		"• Active Positions: %d",
		user.ActiveWallet,
		activeAddr,
		stats.totalTrades,
		stats.totalVolumeUSD,
		stats.winRate(),
		stats.profitable,
		stats.losing,
		stats.largestWin, stats.largestWinMarket,
		stats.largestLoss, stats.largestLossMarket,
		pnlEmoji(stats.totalRealizedPnl), stats.totalRealizedPnl,
		pnlEmoji(totalUnrealized), totalUnrealized,
		overview.PerpEquityBalance,
		overview.CrossMarginRatio*100,
		len(positions))

	return text, refreshKeyboard("account")
}

type tradeStats struct {
	totalTrades       int
	profitable        int
	losing            int
	totalRealizedPnl  float64
	totalVolumeUSD    float64
	largestWin        float64
	largestLoss       float64
	largestWinMarket  string
	largestLossMarket string
}

func (s tradeStats) winRate() float64 {
	if s.totalTrades == 0 {
		return 0
	}
	return float64(s.profitable) / float64(s.totalTrades) * 100
}

func summarizeTrades(trades []core.Trade, nameByAddr map[string]string) tradeStats {
	var stats tradeStats
	stats.totalTrades = len(trades)

	for _, trade := range trades {
		marketName, ok := nameByAddr[trade.Market]
		if !ok {
			marketName = "Unknown"
		}

		stats.totalRealizedPnl += trade.RealizedPnl
		stats.totalVolumeUSD += absFloat(trade.Size * trade.Price)

		switch {
		case trade.RealizedPnl > 0:
			stats.profitable++
			if trade.RealizedPnl > stats.largestWin {
				stats.largestWin = trade.RealizedPnl
				stats.largestWinMarket = "(" + marketName + ")"
			}
		case trade.RealizedPnl < 0:
			stats.losing++
			if trade.RealizedPnl < stats.largestLoss {
				stats.largestLoss = trade.RealizedPnl
				stats.largestLossMarket = "(" + marketName + ")"
			}
		}
	}
	return stats
}

// ---------------------
// Small helpers
// ---------------------

func pnlEmoji(v float64) string {
	if v >= 0 {
		return "🟢"
	}
	return "🔴"
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// shortAddr abbreviates a wallet address for display.
func shortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// formatDuration renders a cooldown as "5m 0s".
func formatDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	seconds := int(d/time.Second) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
