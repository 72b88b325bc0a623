// Package registry owns all subscriber state. Command handlers and the
// background monitor mutate the same configs, so every access goes
// through the registry's lock.
package registry

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Aypp23/decibel-guardian/core"

	"github.com/samber/lo"
)

// Defaults applied on first subscribe and the adjustment steps used by
// the settings menu.
const (
	DefaultThresholdPct = 5.0
	DefaultCooldown     = 300 * time.Second

	ThresholdStep = 1.0
	MinThreshold  = 1.0
	CooldownStep  = 60 * time.Second
	MinCooldown   = 60 * time.Second
)

// Registry maps chat IDs to subscriber configurations.
type Registry struct {
	mu    sync.RWMutex
	users map[int64]*core.UserConfig
}

func New() *Registry {
	return &Registry{users: make(map[int64]*core.UserConfig)}
}

// ---------------------
// Lifecycle
// ---------------------

// Subscribe registers a chat or updates an existing subscription. The
// wallet becomes (or replaces) the "Main" wallet, which is made active.
func (r *Registry) Subscribe(chatID int64, walletAddr string, thresholdPct float64, cooldown time.Duration) *core.UserConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		user = &core.UserConfig{
			ChatID:            chatID,
			Wallets:           map[string]string{"Main": walletAddr},
			ActiveWallet:      "Main",
			AlertThresholdPct: thresholdPct,
			AlertCooldown:     cooldown,
			LastAlerts:        make(map[string]time.Time),
			PriceAlerts:       []core.PriceAlert{},
			TrackedWallets:    []string{},
		}
		r.users[chatID] = user
		return copyUser(user)
	}

	user.Migrate()
	user.AlertThresholdPct = thresholdPct
	user.AlertCooldown = cooldown
	user.Wallets["Main"] = walletAddr
	user.ActiveWallet = "Main"
	return copyUser(user)
}

// Get returns a copy of the subscriber config, or false when the chat
// has never subscribed.
func (r *Registry) Get(chatID int64) (*core.UserConfig, bool) {
	// Write lock: copyUser migrates legacy configs in place.
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return nil, false
	}
	return copyUser(user), true
}

// Unsubscribe removes the chat entirely and reports whether it was
// subscribed.
func (r *Registry) Unsubscribe(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.users[chatID]
	delete(r.users, chatID)
	return ok
}

// All returns a stable copy of every subscriber, taken once per tick so
// evaluation never races command handlers.
func (r *Registry) All() map[int64]*core.UserConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64]*core.UserConfig, len(r.users))
	for id, user := range r.users {
		out[id] = copyUser(user)
	}
	return out
}

// TrackedAddresses returns every address tracked by at least one
// subscriber, deduplicated, in stable insertion order.
func (r *Registry) TrackedAddresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []string
	for _, user := range r.users {
		all = append(all, user.TrackedWallets...)
	}
	return lo.Uniq(all)
}

// ---------------------
// Wallets
// ---------------------

// AddWallet attaches a named wallet. Names are unique
// case-insensitively.
func (r *Registry) AddWallet(chatID int64, name, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return core.ErrNotSubscribed
	}
	user.Migrate()

	if _, exists := user.FindWalletName(name); exists {
		return core.ErrWalletExists
	}
	user.Wallets[name] = addr
	return nil
}

// SwitchWallet makes the named wallet active.
func (r *Registry) SwitchWallet(chatID int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return core.ErrNotSubscribed
	}
	user.Migrate()

	if _, ok := user.Wallets[name]; !ok {
		return core.ErrUnknownWallet
	}
	user.ActiveWallet = name
	return nil
}

// ---------------------
// Tracked wallets
// ---------------------

// Track adds an address to the subscriber's spy list.
func (r *Registry) Track(chatID int64, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return core.ErrNotSubscribed
	}
	if user.Tracks(addr) {
		return core.ErrAlreadyTracked
	}
	user.TrackedWallets = append(user.TrackedWallets, addr)
	return nil
}

// Untrack removes an address from the spy list and reports whether
// any other subscriber still tracks it, so the caller can decide to
// drop the stored snapshot.
func (r *Registry) Untrack(chatID int64, addr string) (stillTracked bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return false, core.ErrNotSubscribed
	}
	if !user.Tracks(addr) {
		return false, core.ErrNotTracked
	}
	user.TrackedWallets = lo.Without(user.TrackedWallets, addr)

	for _, other := range r.users {
		if other.Tracks(addr) {
			return true, nil
		}
	}
	return false, nil
}

// ---------------------
// Settings steps
// ---------------------

// AdjustThreshold moves the liquidation alert threshold by whole
// percent steps, floored at MinThreshold.
func (r *Registry) AdjustThreshold(chatID int64, up bool) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return 0, core.ErrNotSubscribed
	}
	if up {
		user.AlertThresholdPct += ThresholdStep
	} else if user.AlertThresholdPct > MinThreshold {
		user.AlertThresholdPct -= ThresholdStep
	}
	return user.AlertThresholdPct, nil
}

// AdjustCooldown moves the alert cooldown in minute steps, floored at
// MinCooldown.
func (r *Registry) AdjustCooldown(chatID int64, up bool) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return 0, core.ErrNotSubscribed
	}
	if up {
		user.AlertCooldown += CooldownStep
	} else if user.AlertCooldown > MinCooldown {
		user.AlertCooldown -= CooldownStep
	}
	return user.AlertCooldown, nil
}

// ---------------------
// Price alerts
// ---------------------

// AddPriceAlert appends a one-shot price target rule.
func (r *Registry) AddPriceAlert(chatID int64, alert core.PriceAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return core.ErrNotSubscribed
	}
	user.PriceAlerts = append(user.PriceAlerts, alert)
	return nil
}

// RemovePriceAlerts deletes the given fired alerts by value, rebuilding
// the list by exclusion so concurrent additions are never corrupted.
func (r *Registry) RemovePriceAlerts(chatID int64, fired []core.PriceAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return
	}
	user.PriceAlerts = lo.Reject(user.PriceAlerts, func(a core.PriceAlert, _ int) bool {
		return slices.Contains(fired, a)
	})
}

// ClearPriceAlerts removes every pending price target.
func (r *Registry) ClearPriceAlerts(chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return core.ErrNotSubscribed
	}
	user.PriceAlerts = []core.PriceAlert{}
	return nil
}

// ---------------------
// Cooldown gate
// ---------------------

// TryAlert atomically checks the cooldown window for a dedup key and,
// when the alert may fire, records the firing time. It returns false
// while the key is still cooling down.
func (r *Registry) TryAlert(chatID int64, key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[chatID]
	if !ok {
		return false
	}
	if user.LastAlerts == nil {
		user.LastAlerts = make(map[string]time.Time)
	}
	if last, ok := user.LastAlerts[key]; ok && now.Sub(last) <= user.AlertCooldown {
		return false
	}
	user.LastAlerts[key] = now
	return true
}

// SweepAlerts drops cooldown entries whose window has already passed,
// bounding the otherwise unbounded last-alert map. Swept entries are
// outside the window by definition, so observable alert behavior does
// not change.
func (r *Registry) SweepAlerts(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		for key, last := range user.LastAlerts {
			if now.Sub(last) > user.AlertCooldown {
				delete(user.LastAlerts, key)
			}
		}
	}
}

// ---------------------
// Internal
// ---------------------

// copyUser deep-copies a config so callers outside the lock can read
// it freely. Migration happens here so every externally visible config
// is already in the multi-wallet layout.
func copyUser(user *core.UserConfig) *core.UserConfig {
	user.Migrate()

	clone := *user
	clone.Wallets = maps.Clone(user.Wallets)
	clone.LastAlerts = maps.Clone(user.LastAlerts)
	clone.PriceAlerts = slices.Clone(user.PriceAlerts)
	clone.TrackedWallets = slices.Clone(user.TrackedWallets)
	return &clone
}

// NormalizeWalletName trims surrounding whitespace; comparisons are
// case-insensitive but the stored spelling is the user's.
func NormalizeWalletName(name string) string {
	return strings.TrimSpace(name)
}
