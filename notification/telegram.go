// Package notification implements the Telegram chat surface: command
// handlers, inline menus and the alert delivery channel used by the
// monitor.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aypp23/decibel-guardian/core"
	"github.com/Aypp23/decibel-guardian/registry"

	tb "gopkg.in/tucnak/telebot.v2"
)

const pollingTimeout = 10 * time.Second

// Defaults are applied when /start is issued without explicit
// threshold and cooldown arguments.
type Defaults struct {
	ThresholdPct float64
	Cooldown     time.Duration
}

// Telegram implements core.Notifier and hosts all chat commands.
type Telegram struct {
	client    *tb.Bot
	users     *registry.Registry
	data      core.MarketData
	snapshots core.SnapshotStore
	defaults  Defaults
	log       core.Logger
}

// NewTelegram creates and wires the Telegram service.
func NewTelegram(
	token string,
	users *registry.Registry,
	data core.MarketData,
	snapshots core.SnapshotStore,
	defaults Defaults,
	log core.Logger,
) (*Telegram, error) {
	client, err := tb.NewBot(tb.Settings{
		Token:     token,
		ParseMode: tb.ModeMarkdown,
		Poller:    &tb.LongPoller{Timeout: pollingTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	t := &Telegram{
		client:    client,
		users:     users,
		data:      data,
		snapshots: snapshots,
		defaults:  defaults,
		log:       log,
	}

	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}
	registerHandlers(client, t)

	return t, nil
}

// setupCommands configures the command list shown by the Telegram
// client UI.
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/start", Description: "Register a wallet and open the dashboard"},
		{Text: "/status", Description: "Show open positions of the active wallet"},
		{Text: "/account", Description: "Account overview and trading statistics"},
		{Text: "/wallets", Description: "List and switch wallets"},
		{Text: "/addwallet", Description: "Add another wallet"},
		{Text: "/track", Description: "Spy on a wallet's new positions"},
		{Text: "/untrack", Description: "Stop spying on a wallet"},
		{Text: "/tracking", Description: "List tracked wallets"},
		{Text: "/alert", Description: "Set a one-shot price alert"},
		{Text: "/alerts", Description: "List active price alerts"},
		{Text: "/clear_alerts", Description: "Remove all price alerts"},
		{Text: "/settings", Description: "Adjust alert threshold and cooldown"},
		{Text: "/help", Description: "Show the command overview"},
		{Text: "/stop", Description: "Stop monitoring and unsubscribe"},
	})
}

// registerHandlers registers all command and callback handlers.
func registerHandlers(client *tb.Bot, t *Telegram) {
	client.Handle("/start", t.StartHandle)
	client.Handle("/status", t.StatusHandle)
	client.Handle("/account", t.AccountHandle)
	client.Handle("/wallets", t.WalletsHandle)
	client.Handle("/addwallet", t.AddWalletHandle)
	client.Handle("/track", t.TrackHandle)
	client.Handle("/untrack", t.UntrackHandle)
	client.Handle("/tracking", t.TrackingHandle)
	client.Handle("/alert", t.AlertHandle)
	client.Handle("/alerts", t.AlertsHandle)
	client.Handle("/clear_alerts", t.ClearAlertsHandle)
	client.Handle("/settings", t.SettingsHandle)
	client.Handle("/help", t.HelpHandle)
	client.Handle("/stop", t.StopHandle)
	client.Handle(tb.OnCallback, t.CallbackHandle)
}

// Start begins long polling in the background.
func (t *Telegram) Start() {
	go t.client.Start()
}

// Stop shuts the poller down.
func (t *Telegram) Stop() {
	t.client.Stop()
}

// ---------------------
// core.Notifier
// ---------------------

// Notify implements core.Notifier. Delivery is fire-and-forget: the
// caller logs a failure and moves on, nothing is retried.
func (t *Telegram) Notify(chatID int64, text string) error {
	_, err := t.client.Send(&tb.Chat{ID: chatID}, text)
	return err
}

// ---------------------
// Send helpers
// ---------------------

// sendMessage sends a message and logs delivery failures.
func (t *Telegram) sendMessage(to tb.Recipient, text string, options ...any) {
	if _, err := t.client.Send(to, text, options...); err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// editMessage edits a message in place. Telegram answers with an error
// when the content did not change; that outcome is success here.
func (t *Telegram) editMessage(msg *tb.Message, text string, options ...any) {
	if _, err := t.client.Edit(msg, text, options...); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return
		}
		t.log.WithError(err).Error("failed to edit message")
	}
}

// deleteMessage removes a transient loading message, best effort.
func (t *Telegram) deleteMessage(msg *tb.Message) {
	if msg == nil {
		return
	}
	if err := t.client.Delete(msg); err != nil {
		t.log.WithError(err).Debug("failed to delete loading message")
	}
}

// sendLoading posts a transient "working on it" message and returns it
// for later deletion. May return nil when sending fails.
func (t *Telegram) sendLoading(to tb.Recipient, text string) *tb.Message {
	msg, err := t.client.Send(to, text)
	if err != nil {
		t.log.WithError(err).Debug("failed to send loading message")
		return nil
	}
	return msg
}
