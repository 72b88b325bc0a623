package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriceAlert_Triggered(t *testing.T) {
	above := PriceAlert{TargetPrice: 65000, Condition: ConditionAbove}
	require.False(t, above.Triggered(64999))
	require.True(t, above.Triggered(65000))
	require.True(t, above.Triggered(70000))

	below := PriceAlert{TargetPrice: 50000, Condition: ConditionBelow}
	require.False(t, below.Triggered(50001))
	require.True(t, below.Triggered(50000))
	require.True(t, below.Triggered(40000))
}

func TestConditionFor(t *testing.T) {
	require.Equal(t, ConditionAbove, ConditionFor(65000, 60000))
	require.Equal(t, ConditionBelow, ConditionFor(55000, 60000))
	// A target equal to the current price waits for a dip.
	require.Equal(t, ConditionBelow, ConditionFor(60000, 60000))
}

func TestUserConfig_MigrateLegacySingleWallet(t *testing.T) {
	user := &UserConfig{WalletAddress: "0xabc"}
	user.Migrate()

	require.Empty(t, user.WalletAddress)
	require.Equal(t, "Main", user.ActiveWallet)
	require.Equal(t, "0xabc", user.Wallets["Main"])

	// Idempotent on a second call.
	user.Migrate()
	require.Equal(t, "0xabc", user.Wallets["Main"])
}

func TestUserConfig_MigrateRepairsActiveWallet(t *testing.T) {
	user := &UserConfig{Wallets: map[string]string{"Trading": "0xdef"}}
	user.Migrate()

	require.Equal(t, "Trading", user.ActiveWallet)
	require.Equal(t, "0xdef", user.ActiveAddress())
}

func TestUserConfig_FindWalletName(t *testing.T) {
	user := &UserConfig{Wallets: map[string]string{"Main": "0xabc"}}

	name, ok := user.FindWalletName("mAiN")
	require.True(t, ok)
	require.Equal(t, "Main", name)

	_, ok = user.FindWalletName("Nope")
	require.False(t, ok)
}

func TestLiquidationAlertKey(t *testing.T) {
	require.Equal(t, "42_0xabc_BTC-USD_liq", LiquidationAlertKey(42, "0xabc", "BTC-USD"))
}

func TestIsValidAddress(t *testing.T) {
	require.True(t, IsValidAddress("0xabc123"))
	require.True(t, IsValidAddress("0xABCDEF0123456789"))

	require.False(t, IsValidAddress("0x"))
	require.False(t, IsValidAddress("abc123"))
	require.False(t, IsValidAddress("0xzzz"))
	require.False(t, IsValidAddress(""))
}
