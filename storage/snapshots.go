// Package storage implements the position snapshot store on BuntDB.
// Snapshots are process-lifetime state: the database lives in memory
// and a restart discards everything.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Aypp23/decibel-guardian/core"

	"github.com/tidwall/buntdb"
)

// BuntSnapshots implements core.SnapshotStore using BuntDB with
// JSON-encoded position sets keyed by lowercase wallet address.
type BuntSnapshots struct {
	db *buntdb.DB
}

// NewInMemory creates the in-memory snapshot store.
func NewInMemory() (*BuntSnapshots, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{SyncPolicy: buntdb.Never}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	return &BuntSnapshots{db: db}, nil
}

// Snapshot returns the stored position set for a wallet. The boolean
// is false when the wallet has never been snapshotted, which callers
// treat as "no baseline yet".
func (s *BuntSnapshots) Snapshot(addr string) (map[string]core.Position, bool) {
	var snapshot map[string]core.Position

	err := s.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(snapshotKey(addr))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), &snapshot)
	})
	if err != nil {
		return nil, false
	}
	return snapshot, true
}

// Replace overwrites the snapshot wholesale. An empty position slice
// is a valid state and is stored as an empty set, not as a deletion.
func (s *BuntSnapshots) Replace(addr string, positions []core.Position) error {
	snapshot := make(map[string]core.Position, len(positions))
	for _, pos := range positions {
		snapshot[strings.ToLower(pos.MarketAddr)] = pos
	}

	content, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(snapshotKey(addr), string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store snapshot: %w", err)
		}
		return nil
	})
}

// Drop removes the snapshot of a wallet nobody tracks anymore.
func (s *BuntSnapshots) Drop(addr string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(snapshotKey(addr))
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil
	}
	return err
}

// Close closes the underlying database.
func (s *BuntSnapshots) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func snapshotKey(addr string) string {
	return "snapshot:" + strings.ToLower(addr)
}
