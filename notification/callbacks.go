package notification

import (
	"context"
	"fmt"
	"strings"

	tb "gopkg.in/tucnak/telebot.v2"
)

// CallbackHandle routes every inline button press. Callback data
// arrives with a leading "\f" separator which is stripped before
// dispatch.
func (t *Telegram) CallbackHandle(c *tb.Callback) {
	data := strings.TrimPrefix(strings.TrimSpace(c.Data), "\f")

	// Wallet switches answer with their own toast.
	if strings.HasPrefix(data, "switch_") {
		t.switchWalletCallback(c, strings.TrimPrefix(data, "switch_"))
		return
	}

	defer func() {
		if err := t.client.Respond(c, &tb.CallbackResponse{}); err != nil {
			t.log.WithError(err).Debug("failed to answer callback")
		}
	}()

	user, registered := t.users.Get(c.Message.Chat.ID)
	if !registered && data != "start" {
		t.editMessage(c.Message, onboardingText(), onboardingKeyboard())
		return
	}

	switch data {
	case "start":
		t.editMessage(c.Message, dashboardText(), dashboardKeyboard())

	case "status":
		t.editMessage(c.Message, fmt.Sprintf("⏳ **Fetching positions for %s...**", user.ActiveWallet))
		text, keyboard := t.statusMessage(user)
		t.editMessage(c.Message, text, keyboard)

	case "account":
		t.editMessage(c.Message, fmt.Sprintf("⏳ **Fetching account data for %s...**", user.ActiveWallet))
		text, keyboard := t.accountMessage(user)
		t.editMessage(c.Message, text, keyboard)

	case "wallets":
		t.editMessage(c.Message, walletsText(), walletsKeyboard(user))

	case "tracking":
		t.editMessage(c.Message, trackingText(user), backMenuKeyboard())

	case "alerts":
		t.editMessage(c.Message, "⏳ Fetching market data...")
		text := alertsText(user, t.data.Markets(context.Background()))
		t.editMessage(c.Message, text, backMenuKeyboard())

	case "settings":
		t.editMessage(c.Message, settingsText(user), settingsKeyboard(user))

	case "set_t_up", "set_t_down":
		if _, err := t.users.AdjustThreshold(c.Message.Chat.ID, data == "set_t_up"); err != nil {
			return
		}
		t.refreshSettings(c.Message)

	case "set_d_up", "set_d_down":
		if _, err := t.users.AdjustCooldown(c.Message.Chat.ID, data == "set_d_up"); err != nil {
			return
		}
		t.refreshSettings(c.Message)

	case "noop":
		// label buttons, nothing to do

	default:
		t.log.WithField("data", data).Debug("unknown callback")
	}
}

// switchWalletCallback makes the named wallet active and refreshes the
// wallet menu in place.
func (t *Telegram) switchWalletCallback(c *tb.Callback, name string) {
	if err := t.users.SwitchWallet(c.Message.Chat.ID, name); err != nil {
		if err := t.client.Respond(c, &tb.CallbackResponse{}); err != nil {
			t.log.WithError(err).Debug("failed to answer callback")
		}
		return
	}
	if err := t.client.Respond(c, &tb.CallbackResponse{Text: "Switched to " + name}); err != nil {
		t.log.WithError(err).Debug("failed to answer callback")
	}

	user, ok := t.users.Get(c.Message.Chat.ID)
	if !ok {
		return
	}
	t.editMessage(c.Message, walletsText(), walletsKeyboard(user))
}

// refreshSettings re-renders the settings message after an adjustment.
func (t *Telegram) refreshSettings(msg *tb.Message) {
	user, ok := t.users.Get(msg.Chat.ID)
	if !ok {
		return
	}
	t.editMessage(msg, settingsText(user), settingsKeyboard(user))
}
