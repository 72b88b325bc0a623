package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aypp23/decibel-guardian/core"
	zladapter "github.com/Aypp23/decibel-guardian/logger/zerolog"
	"github.com/Aypp23/decibel-guardian/registry"
	"github.com/Aypp23/decibel-guardian/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	chatID     = int64(42)
	ownWallet  = "0xaaa1"
	spiedUpon  = "0xbbb2"
	btcMarket  = "0xbtc"
	ethMarket  = "0xeth"
	btcName    = "BTC-USD"
	ethName    = "ETH-USD"
	testThresh = 5.0
	testCD     = 300 * time.Second
)

// fakeData serves canned market data and lets tests flip wallets into
// failure mode.
type fakeData struct {
	mu        sync.Mutex
	markets   []core.Market
	prices    []core.MarketPrice
	positions map[string][]core.Position
	failing   map[string]bool
}

func newFakeData() *fakeData {
	return &fakeData{
		markets: []core.Market{
			{Addr: btcMarket, Name: btcName},
			{Addr: ethMarket, Name: ethName},
		},
		prices: []core.MarketPrice{
			{Market: btcMarket, MarkPx: 95},
			{Market: ethMarket, MarkPx: 3000},
		},
		positions: make(map[string][]core.Position),
		failing:   make(map[string]bool),
	}
}

func (f *fakeData) Markets(context.Context) []core.Market {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markets
}

func (f *fakeData) MarketPrices(context.Context) []core.MarketPrice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices
}

func (f *fakeData) Positions(_ context.Context, addr string, _ []core.Market, _ []core.MarketPrice) ([]core.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[addr] {
		return nil, errors.New("upstream unavailable")
	}
	return f.positions[addr], nil
}

func (f *fakeData) AccountOverview(context.Context, string) (core.AccountOverview, error) {
	return core.AccountOverview{}, nil
}

func (f *fakeData) TradeHistory(context.Context, string) []core.Trade {
	return nil
}

func (f *fakeData) setPositions(addr string, positions []core.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[addr] = positions
}

func (f *fakeData) setFailing(addr string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[addr] = failing
}

// fakeNotifier records every delivered alert.
type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	chats []int64
}

func (n *fakeNotifier) Notify(chat int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	n.chats = append(n.chats, chat)
	return nil
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	copy(out, n.sent)
	return out
}

func testLogger() core.Logger {
	l := zerolog.Nop()
	return zladapter.NewAdapter(&l)
}

type fixture struct {
	data      *fakeData
	users     *registry.Registry
	snapshots *storage.BuntSnapshots
	notifier  *fakeNotifier
	monitor   *Monitor
	clock     *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	snapshots, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { snapshots.Close() })

	data := newFakeData()
	users := registry.New()
	notifier := &fakeNotifier{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	m := New(data, users, snapshots, notifier, testLogger(), WithClock(clock.Now))

	return &fixture{
		data:      data,
		users:     users,
		snapshots: snapshots,
		notifier:  notifier,
		monitor:   m,
		clock:     clock,
	}
}

func position(marketAddr, marketName string, size, entry, mark, liq float64) core.Position {
	return core.Position{
		MarketAddr:       marketAddr,
		MarketName:       marketName,
		Size:             size,
		EntryPrice:       entry,
		MarkPrice:        mark,
		Leverage:         10,
		LiquidationPrice: liq,
		UnrealizedPnl:    (mark - entry) * size,
	}
}

func TestMonitor_NewPositionAlert(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)
	require.NoError(t, f.users.Track(chatID, spiedUpon))

	btc := position(btcMarket, btcName, 1, 90, 95, 0)
	require.NoError(t, f.snapshots.Replace(spiedUpon, []core.Position{btc}))

	eth := position(ethMarket, ethName, 2, 2900, 3000, 0)
	f.data.setPositions(spiedUpon, []core.Position{btc, eth})

	f.monitor.Tick(context.Background())

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "NEW POSITION DETECTED")
	require.Contains(t, msgs[0], ethName)
	require.NotContains(t, msgs[0], btcName)
}

func TestMonitor_BaselineSuppressesPreexistingPositions(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)
	require.NoError(t, f.users.Track(chatID, spiedUpon))

	// No stored baseline: every position would look new, so none alert
	// and the snapshot is only rebuilt.
	btc := position(btcMarket, btcName, 1, 90, 95, 0)
	f.data.setPositions(spiedUpon, []core.Position{btc})

	f.monitor.Tick(context.Background())
	require.Empty(t, f.notifier.messages())

	snapshot, ok := f.snapshots.Snapshot(spiedUpon)
	require.True(t, ok)
	require.Len(t, snapshot, 1)

	// The next tick diffs against the rebuilt baseline.
	eth := position(ethMarket, ethName, 2, 2900, 3000, 0)
	f.data.setPositions(spiedUpon, []core.Position{btc, eth})

	f.monitor.Tick(context.Background())
	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], ethName)
}

func TestMonitor_PositionShrinkageIsSilent(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)
	require.NoError(t, f.users.Track(chatID, spiedUpon))

	btc := position(btcMarket, btcName, 1, 90, 95, 0)
	eth := position(ethMarket, ethName, 2, 2900, 3000, 0)
	require.NoError(t, f.snapshots.Replace(spiedUpon, []core.Position{btc, eth}))

	f.data.setPositions(spiedUpon, []core.Position{btc})

	f.monitor.Tick(context.Background())
	require.Empty(t, f.notifier.messages())

	snapshot, ok := f.snapshots.Snapshot(spiedUpon)
	require.True(t, ok)
	require.Len(t, snapshot, 1)
}

func TestMonitor_EmptyPositionsIsValidUpdate(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)
	require.NoError(t, f.users.Track(chatID, spiedUpon))

	btc := position(btcMarket, btcName, 1, 90, 95, 0)
	require.NoError(t, f.snapshots.Replace(spiedUpon, []core.Position{btc}))

	f.data.setPositions(spiedUpon, []core.Position{})

	f.monitor.Tick(context.Background())
	require.Empty(t, f.notifier.messages())

	snapshot, ok := f.snapshots.Snapshot(spiedUpon)
	require.True(t, ok)
	require.Empty(t, snapshot)
}

func TestMonitor_FetchFailurePreservesSnapshot(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)
	require.NoError(t, f.users.Track(chatID, spiedUpon))

	btc := position(btcMarket, btcName, 1, 90, 95, 0)
	require.NoError(t, f.snapshots.Replace(spiedUpon, []core.Position{btc}))

	f.data.setFailing(spiedUpon, true)
	f.monitor.Tick(context.Background())

	require.Empty(t, f.notifier.messages())
	snapshot, ok := f.snapshots.Snapshot(spiedUpon)
	require.True(t, ok)
	require.Len(t, snapshot, 1)

	// Recovery diffs against the preserved baseline.
	f.data.setFailing(spiedUpon, false)
	eth := position(ethMarket, ethName, 2, 2900, 3000, 0)
	f.data.setPositions(spiedUpon, []core.Position{btc, eth})

	f.monitor.Tick(context.Background())
	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], ethName)
}

func TestMonitor_LiquidationAlertCooldown(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)

	// Mark 95 against liquidation 100 is exactly 5% away, which is
	// inside the 5% threshold.
	atRisk := position(btcMarket, btcName, 1, 100, 95, 100)
	f.data.setPositions(ownWallet, []core.Position{atRisk})

	f.monitor.Tick(context.Background())
	require.Len(t, f.notifier.messages(), 1)
	require.Contains(t, f.notifier.messages()[0], "LIQUIDATION ALERT")

	// Still cooling down one second later.
	f.clock.Advance(time.Second)
	f.monitor.Tick(context.Background())
	require.Len(t, f.notifier.messages(), 1)

	// Past the cooldown window the alert fires again.
	f.clock.Advance(testCD)
	f.monitor.Tick(context.Background())
	require.Len(t, f.notifier.messages(), 2)
}

func TestMonitor_NoLiquidationAlertOutsideThreshold(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)

	// 10% away from liquidation with a 5% threshold.
	safe := position(btcMarket, btcName, 1, 100, 110, 100)
	f.data.setPositions(ownWallet, []core.Position{safe})

	f.monitor.Tick(context.Background())
	require.Empty(t, f.notifier.messages())
}

func TestMonitor_NoLiquidationAlertWithoutRisk(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)

	// Liquidation price zero means the position cannot be liquidated.
	riskless := position(btcMarket, btcName, 1, 100, 95, 0)
	f.data.setPositions(ownWallet, []core.Position{riskless})

	f.monitor.Tick(context.Background())
	require.Empty(t, f.notifier.messages())
}

func TestMonitor_PriceAlertIsOneShot(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)
	require.NoError(t, f.users.AddPriceAlert(chatID, core.PriceAlert{
		MarketAddr:   btcMarket,
		MarketName:   btcName,
		TargetPrice:  65000,
		Condition:    core.ConditionAbove,
		CreatedPrice: 60000,
	}))

	f.data.prices = []core.MarketPrice{{Market: btcMarket, MarkPx: 64000}}
	f.monitor.Tick(context.Background())
	require.Empty(t, f.notifier.messages())

	f.data.prices = []core.MarketPrice{{Market: btcMarket, MarkPx: 65500}}
	f.monitor.Tick(context.Background())

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "PRICE ALERT")

	user, ok := f.users.Get(chatID)
	require.True(t, ok)
	require.Empty(t, user.PriceAlerts)

	// Already removed, so another tick at the same price stays quiet.
	f.monitor.Tick(context.Background())
	require.Len(t, f.notifier.messages(), 1)
}

func TestMonitor_PriceAlertWaitsForUsablePrice(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)
	require.NoError(t, f.users.AddPriceAlert(chatID, core.PriceAlert{
		MarketAddr:   btcMarket,
		MarketName:   btcName,
		TargetPrice:  65000,
		Condition:    core.ConditionAbove,
		CreatedPrice: 60000,
	}))

	// A zero price is treated as missing, the alert survives the tick.
	f.data.prices = []core.MarketPrice{{Market: btcMarket, MarkPx: 0}}
	f.monitor.Tick(context.Background())
	require.Empty(t, f.notifier.messages())

	user, ok := f.users.Get(chatID)
	require.True(t, ok)
	require.Len(t, user.PriceAlerts, 1)
}

func TestMonitor_DegradedTickWithoutMarketData(t *testing.T) {
	f := newFixture(t)

	f.users.Subscribe(chatID, ownWallet, testThresh, testCD)
	require.NoError(t, f.users.AddPriceAlert(chatID, core.PriceAlert{
		MarketAddr:  btcMarket,
		MarketName:  btcName,
		TargetPrice: 65000,
		Condition:   core.ConditionAbove,
	}))

	// Shared market data unavailable: the tick completes without
	// price alerts and without touching the pending rule.
	f.data.markets = []core.Market{}
	f.data.prices = []core.MarketPrice{}

	f.monitor.Tick(context.Background())
	require.Empty(t, f.notifier.messages())

	user, ok := f.users.Get(chatID)
	require.True(t, ok)
	require.Len(t, user.PriceAlerts, 1)
}
