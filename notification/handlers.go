package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Aypp23/decibel-guardian/core"
	"github.com/Aypp23/decibel-guardian/registry"

	tb "gopkg.in/tucnak/telebot.v2"
)

// StartHandle registers a wallet or shows the dashboard.
// Usage: /start [wallet [thresholdPct [cooldownSeconds]]]
func (t *Telegram) StartHandle(m *tb.Message) {
	args := strings.Fields(m.Payload)

	if len(args) == 0 {
		t.sendMessage(m.Chat, dashboardText(), dashboardKeyboard())
		return
	}

	walletAddr := args[0]
	if !core.IsValidAddress(walletAddr) {
		t.sendMessage(m.Chat, "❌ Invalid wallet address. Must start with '0x' and contain only hex characters.")
		return
	}

	threshold := t.defaults.ThresholdPct
	cooldown := t.defaults.Cooldown

	var err error
	if len(args) > 1 {
		if threshold, err = strconv.ParseFloat(args[1], 64); err != nil {
			t.sendMessage(m.Chat, "❌ Invalid parameters.")
			return
		}
	}
	if len(args) > 2 {
		seconds, err := strconv.Atoi(args[2])
		if err != nil || seconds < 60 {
			t.sendMessage(m.Chat, "❌ Invalid parameters.")
			return
		}
		cooldown = time.Duration(seconds) * time.Second
	}
	if threshold <= 0 {
		t.sendMessage(m.Chat, "❌ Invalid parameters.")
		return
	}

	t.users.Subscribe(m.Chat.ID, walletAddr, threshold, cooldown)

	text := fmt.Sprintf("✅ **Monitoring Started**\n\n"+
		"**Active Wallet (Main):** `%s`\n"+
		"**Alert Threshold:** %g%%\n"+
		"**Alert Duration:** %s",
		walletAddr, threshold, formatDuration(cooldown))
	t.sendMessage(m.Chat, text, dashboardKeyboard())
}

// AddWalletHandle attaches a named wallet.
// Usage: /addwallet <address> <name>
func (t *Telegram) AddWalletHandle(m *tb.Message) {
	if _, ok := t.users.Get(m.Chat.ID); !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}

	args := strings.Fields(m.Payload)
	if len(args) < 2 {
		t.sendMessage(m.Chat,
			"💡 **Command Help**\n\n"+
				"Usage: `/addwallet <address> <name>`\n"+
				"Example: `/addwallet 0x123... Main`\n\n"+
				"Please try again.",
			backMenuKeyboard())
		return
	}

	addr, name := args[0], registry.NormalizeWalletName(args[1])
	if !core.IsValidAddress(addr) {
		t.sendMessage(m.Chat, "❌ Invalid address. Must start with '0x' and contain only hex characters.")
		return
	}

	if err := t.users.AddWallet(m.Chat.ID, name, addr); err != nil {
		if errors.Is(err, core.ErrWalletExists) {
			t.sendMessage(m.Chat, fmt.Sprintf("❌ Wallet name **%s** already exists.", name), backMenuKeyboard())
			return
		}
		t.log.WithError(err).Error("failed to add wallet")
		return
	}

	t.sendMessage(m.Chat,
		fmt.Sprintf("✅ Wallet **%s** added!\nAddr: `%s`\n\nUse the 👛 Wallets menu to make it active.", name, addr),
		backMenuKeyboard())
}

// WalletsHandle lists wallets with switch buttons.
func (t *Telegram) WalletsHandle(m *tb.Message) {
	user, ok := t.users.Get(m.Chat.ID)
	if !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}
	t.sendMessage(m.Chat, walletsText(), walletsKeyboard(user))
}

// TrackHandle starts spying on a wallet. The initial fetch snapshots
// the current positions so pre-existing ones never alert as new.
// Usage: /track <wallet_address>
func (t *Telegram) TrackHandle(m *tb.Message) {
	user, ok := t.users.Get(m.Chat.ID)
	if !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}

	args := strings.Fields(m.Payload)
	if len(args) == 0 {
		t.sendMessage(m.Chat,
			"💡 **Command Help**\n\n"+
				"Usage: `/track <wallet_address>`\n"+
				"Example: `/track 0x123...abc`\n\n"+
				"Please try again.",
			backMenuKeyboard())
		return
	}

	addr := args[0]
	if !core.IsValidAddress(addr) {
		t.sendMessage(m.Chat, "❌ Invalid wallet address. Must start with 0x and contain only hex characters.")
		return
	}
	if user.Tracks(addr) {
		t.sendMessage(m.Chat, "⚠️ You are already tracking this wallet.")
		return
	}

	positions, err := t.data.Positions(context.Background(), addr, nil, nil)
	if err != nil {
		t.sendMessage(m.Chat, "⚠️ Failed to fetch wallet data (API Error). Try again later.")
		return
	}
	if err := t.snapshots.Replace(addr, positions); err != nil {
		t.log.WithError(err).WithField("wallet", addr).Error("failed to store baseline snapshot")
		t.sendMessage(m.Chat, "⚠️ Failed to fetch wallet data. Try again later.")
		return
	}

	if err := t.users.Track(m.Chat.ID, addr); err != nil {
		if errors.Is(err, core.ErrAlreadyTracked) {
			t.sendMessage(m.Chat, "⚠️ You are already tracking this wallet.")
		}
		return
	}

	t.sendMessage(m.Chat,
		fmt.Sprintf("✅ **Tracking Wallet**\n`%s`\n\nI'll notify you when this wallet opens a **NEW** position.", addr),
		backMenuKeyboard())
}

// UntrackHandle stops spying on a wallet and drops its snapshot when
// no other subscriber still tracks it.
// Usage: /untrack <wallet_address>
func (t *Telegram) UntrackHandle(m *tb.Message) {
	if _, ok := t.users.Get(m.Chat.ID); !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}

	args := strings.Fields(m.Payload)
	if len(args) == 0 {
		t.sendMessage(m.Chat,
			"💡 **Command Help**\n\n"+
				"Usage: `/untrack <wallet_address>`\n"+
				"Example: `/untrack 0x123...abc`\n\n"+
				"Please try again.",
			backMenuKeyboard())
		return
	}

	addr := args[0]
	stillTracked, err := t.users.Untrack(m.Chat.ID, addr)
	if err != nil {
		t.sendMessage(m.Chat, "❌ You are not tracking this wallet.")
		return
	}
	if !stillTracked {
		if err := t.snapshots.Drop(addr); err != nil {
			t.log.WithError(err).WithField("wallet", addr).Warn("failed to drop snapshot")
		}
	}
	t.sendMessage(m.Chat, fmt.Sprintf("✅ Stopped tracking `%s`.", addr))
}

// TrackingHandle lists tracked wallets.
func (t *Telegram) TrackingHandle(m *tb.Message) {
	user, ok := t.users.Get(m.Chat.ID)
	if !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}
	t.sendMessage(m.Chat, trackingText(user), backMenuKeyboard())
}

// AlertHandle sets a one-shot price alert. The above/below condition
// is fixed here by comparing the target against the current mark price
// and never recomputed.
// Usage: /alert <symbol> <price>
func (t *Telegram) AlertHandle(m *tb.Message) {
	if _, ok := t.users.Get(m.Chat.ID); !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}

	args := strings.Fields(m.Payload)
	if len(args) < 2 {
		t.sendMessage(m.Chat,
			"💡 **Command Help**\n\n"+
				"Usage: `/alert <Symbol> <Price>`\n"+
				"Example: `/alert BTC 65000`\n\n"+
				"Please try again.",
			backMenuKeyboard())
		return
	}

	symbol := strings.ToUpper(args[0])
	targetPrice, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		t.sendMessage(m.Chat, "❌ Invalid price.")
		return
	}

	loading := t.sendLoading(m.Chat, fmt.Sprintf("⏳ **Setting alert for %s...**", symbol))

	markets := t.data.Markets(context.Background())
	market, ok := resolveMarket(markets, symbol)
	if !ok {
		t.deleteMessage(loading)
		t.sendMessage(m.Chat, fmt.Sprintf("❌ Market **%s** not found.", symbol))
		return
	}

	prices := t.data.MarketPrices(context.Background())
	currentPrice, ok := core.PriceMap(prices)[market.Addr]
	if !ok {
		t.deleteMessage(loading)
		t.sendMessage(m.Chat, fmt.Sprintf("❌ Could not fetch price for **%s**.", market.Name))
		return
	}

	alert := core.PriceAlert{
		MarketAddr:   market.Addr,
		MarketName:   market.Name,
		TargetPrice:  targetPrice,
		Condition:    core.ConditionFor(targetPrice, currentPrice),
		CreatedPrice: currentPrice,
	}
	if err := t.users.AddPriceAlert(m.Chat.ID, alert); err != nil {
		t.deleteMessage(loading)
		return
	}

	t.deleteMessage(loading)

	direction := "📉 Falling to"
	if alert.Condition == core.ConditionAbove {
		direction = "📈 Rising to"
	}
	t.sendMessage(m.Chat, fmt.Sprintf("✅ **Alert Set!**\n\n**%s**\nCurrent: $%g\nTarget: %s $%g",
		market.Name, currentPrice, direction, targetPrice))
}

// AlertsHandle lists active price alerts and the available markets.
func (t *Telegram) AlertsHandle(m *tb.Message) {
	user, ok := t.users.Get(m.Chat.ID)
	if !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}

	loading := t.sendLoading(m.Chat, "⏳ Fetching market data...")
	text := alertsText(user, t.data.Markets(context.Background()))
	t.deleteMessage(loading)
	t.sendMessage(m.Chat, text, backMenuKeyboard())
}

// ClearAlertsHandle removes every pending price alert.
func (t *Telegram) ClearAlertsHandle(m *tb.Message) {
	if err := t.users.ClearPriceAlerts(m.Chat.ID); err != nil {
		return
	}
	t.sendMessage(m.Chat, "✅ All price target alerts cleared.")
}

// StatusHandle renders the open positions of the active wallet.
func (t *Telegram) StatusHandle(m *tb.Message) {
	user, ok := t.users.Get(m.Chat.ID)
	if !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}

	loading := t.sendLoading(m.Chat, fmt.Sprintf("⏳ **Fetching positions for %s...**", user.ActiveWallet))
	text, keyboard := t.statusMessage(user)
	t.deleteMessage(loading)
	t.sendMessage(m.Chat, text, keyboard)
}

// AccountHandle renders the account overview and trade statistics.
func (t *Telegram) AccountHandle(m *tb.Message) {
	user, ok := t.users.Get(m.Chat.ID)
	if !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}

	loading := t.sendLoading(m.Chat, fmt.Sprintf("⏳ **Fetching account data for %s...**", user.ActiveWallet))
	text, keyboard := t.accountMessage(user)
	t.deleteMessage(loading)
	t.sendMessage(m.Chat, text, keyboard)
}

// SettingsHandle shows the settings menu.
func (t *Telegram) SettingsHandle(m *tb.Message) {
	user, ok := t.users.Get(m.Chat.ID)
	if !ok {
		t.sendMessage(m.Chat, onboardingText(), onboardingKeyboard())
		return
	}
	t.sendMessage(m.Chat, settingsText(user), settingsKeyboard(user))
}

// HelpHandle shows the command overview.
func (t *Telegram) HelpHandle(m *tb.Message) {
	t.sendMessage(m.Chat, dashboardText(), dashboardKeyboard())
}

// StopHandle unsubscribes the chat entirely.
func (t *Telegram) StopHandle(m *tb.Message) {
	if t.users.Unsubscribe(m.Chat.ID) {
		t.sendMessage(m.Chat, "🛑 **Monitoring Stopped.**\nYou are no longer receiving alerts.\nUse `/start <wallet>` to resume monitoring.")
		return
	}
	t.sendMessage(m.Chat, "⚠️ You are not currently being monitored.")
}
