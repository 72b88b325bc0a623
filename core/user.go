package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Condition tells on which side of the target a price alert fires. It
// is fixed when the alert is created, by comparing the target against
// the mark price at creation time, and is never recomputed.
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// PriceAlert is a one-shot price target rule. It fires at most once
// and is removed from the owning subscriber on firing.
type PriceAlert struct {
	MarketAddr   string    `json:"market_addr"`
	MarketName   string    `json:"market_name"`
	TargetPrice  float64   `json:"target_price"`
	Condition    Condition `json:"condition"`
	CreatedPrice float64   `json:"created_price"`
}

// Triggered reports whether the alert fires at the given mark price.
func (a PriceAlert) Triggered(currentPrice float64) bool {
	switch a.Condition {
	case ConditionAbove:
		return currentPrice >= a.TargetPrice
	case ConditionBelow:
		return currentPrice <= a.TargetPrice
	}
	return false
}

// ConditionFor fixes the alert condition at creation time.
func ConditionFor(targetPrice, currentPrice float64) Condition {
	if targetPrice > currentPrice {
		return ConditionAbove
	}
	return ConditionBelow
}

// UserConfig is the per-subscriber configuration and alert state.
// Mutation goes through the registry, which owns the locking.
type UserConfig struct {
	ChatID int64 `json:"chat_id"`

	// WalletAddress is the legacy single-wallet field kept only so old
	// configs can be migrated into Wallets.
	WalletAddress string `json:"wallet_address,omitempty"`

	Wallets      map[string]string `json:"wallets"`
	ActiveWallet string            `json:"active_wallet"`

	AlertThresholdPct float64       `json:"alert_threshold_pct"`
	AlertCooldown     time.Duration `json:"alert_cooldown"`

	LastAlerts  map[string]time.Time `json:"last_alerts"`
	PriceAlerts []PriceAlert         `json:"price_alerts"`

	TrackedWallets []string `json:"tracked_wallets"`
}

// Migrate upgrades a legacy single-wallet config to the multi-wallet
// layout and repairs a missing active wallet. Safe to call repeatedly.
func (u *UserConfig) Migrate() {
	if u.WalletAddress != "" && u.Wallets == nil {
		u.Wallets = map[string]string{"Main": u.WalletAddress}
		u.ActiveWallet = "Main"
		u.WalletAddress = ""
	}
	if u.Wallets == nil {
		u.Wallets = map[string]string{}
	}
	if u.ActiveWallet == "" {
		for name := range u.Wallets {
			u.ActiveWallet = name
			break
		}
	}
}

// ActiveAddress returns the address of the active wallet, or an empty
// string when the subscriber has no wallets yet.
func (u *UserConfig) ActiveAddress() string {
	return u.Wallets[u.ActiveWallet]
}

// FindWalletName resolves a wallet name case-insensitively and returns
// the stored spelling.
func (u *UserConfig) FindWalletName(name string) (string, bool) {
	for existing := range u.Wallets {
		if strings.EqualFold(existing, name) {
			return existing, true
		}
	}
	return "", false
}

// Tracks reports whether the subscriber spies on the given address.
func (u *UserConfig) Tracks(addr string) bool {
	for _, w := range u.TrackedWallets {
		if w == addr {
			return true
		}
	}
	return false
}

// LiquidationAlertKey builds the dedup key that uniquely identifies a
// liquidation alert per (subscriber, wallet, market).
func LiquidationAlertKey(chatID int64, walletAddr, marketName string) string {
	return fmt.Sprintf("%d_%s_%s_liq", chatID, walletAddr, marketName)
}

var addressRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

// IsValidAddress checks the 0x-hex wallet address format. Aptos
// addresses are usually 66 characters but shorter on-chain forms are
// accepted.
func IsValidAddress(addr string) bool {
	return len(addr) > 2 && addressRegexp.MatchString(addr)
}
