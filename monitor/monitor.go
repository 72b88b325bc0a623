// Package monitor implements the poll cycle engine: on every tick it
// fetches shared market data once, diffs tracked wallets for newly
// opened positions, evaluates liquidation risk on subscriber wallets,
// checks one-shot price targets and dispatches the resulting alerts.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Aypp23/decibel-guardian/core"
	"github.com/Aypp23/decibel-guardian/registry"

	"github.com/StudioSol/set"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultInterval is the poll period when none is configured.
	DefaultInterval = 30 * time.Second

	// DefaultFetchLimit bounds concurrent per-wallet position fetches
	// within one tick.
	DefaultFetchLimit = 8
)

// Monitor drives the recurring poll cycle.
type Monitor struct {
	data      core.MarketData
	users     *registry.Registry
	snapshots core.SnapshotStore
	notifier  core.Notifier
	log       core.Logger

	interval   time.Duration
	fetchLimit int
	now        func() time.Time

	// inFlight prevents overlapping ticks when a tick outlives the
	// poll interval. The late tick is skipped, not queued.
	inFlight atomic.Bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the poll period.
func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) { m.interval = interval }
}

// WithFetchLimit overrides the per-tick fetch concurrency bound.
func WithFetchLimit(limit int) Option {
	return func(m *Monitor) { m.fetchLimit = limit }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates the monitor.
func New(
	data core.MarketData,
	users *registry.Registry,
	snapshots core.SnapshotStore,
	notifier core.Notifier,
	log core.Logger,
	options ...Option,
) *Monitor {
	m := &Monitor{
		data:       data,
		users:      users,
		snapshots:  snapshots,
		notifier:   notifier,
		log:        log,
		interval:   DefaultInterval,
		fetchLimit: DefaultFetchLimit,
		now:        time.Now,
	}

	for _, option := range options {
		option(m)
	}
	return m
}

// Start runs the poll loop until the context is canceled.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Infof("monitor started, polling every %s", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one complete poll cycle. Shared market data is fetched
// once; when that fetch fails the tick proceeds with empty maps, which
// degrades evaluation to a no-op instead of crashing. Failures on a
// single wallet or subscriber never abort the rest of the tick; the
// next tick is the retry mechanism.
func (m *Monitor) Tick(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.log.Warn("previous tick still in flight, skipping")
		ticksSkipped.Inc()
		return
	}
	defer m.inFlight.Store(false)
	ticksTotal.Inc()

	markets := m.data.Markets(ctx)
	prices := m.data.MarketPrices(ctx)
	priceByMarket := core.PriceMap(prices)

	users := m.users.All()

	m.watchTrackedWallets(ctx, users, markets, prices)
	m.evaluateSubscribers(ctx, users, markets, prices, priceByMarket)

	m.users.SweepAlerts(m.now())
}

// watchTrackedWallets diffs every tracked wallet (deduplicated across
// subscribers) against its stored snapshot.
func (m *Monitor) watchTrackedWallets(ctx context.Context, users map[int64]*core.UserConfig, markets []core.Market, prices []core.MarketPrice) {
	tracked := set.NewLinkedHashSetString()
	for _, user := range users {
		for _, addr := range user.TrackedWallets {
			tracked.Add(addr)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(m.fetchLimit)

	for addr := range tracked.Iter() {
		addr := addr
		g.Go(func() error {
			m.diffTrackedWallet(ctx, addr, users, markets, prices)
			return nil
		})
	}
	g.Wait()
}

// evaluateSubscribers checks price targets and liquidation risk for
// every subscriber. Subscribers are evaluated concurrently, the
// wallets of one subscriber sequentially.
func (m *Monitor) evaluateSubscribers(ctx context.Context, users map[int64]*core.UserConfig, markets []core.Market, prices []core.MarketPrice, priceByMarket map[string]float64) {
	g := new(errgroup.Group)
	g.SetLimit(m.fetchLimit)

	for chatID, user := range users {
		chatID, user := chatID, user
		g.Go(func() error {
			m.evaluatePriceAlerts(chatID, user, priceByMarket)
			m.evaluateRisk(ctx, chatID, user, markets, prices)
			return nil
		})
	}
	g.Wait()
}
