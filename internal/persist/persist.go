// Package persist stores the record collections in a string-keyed blob
// store. Each collection lives under its own key as a JSON array and is
// rewritten in full on every save.
package persist

import (
	"encoding/json"
	"fmt"

	appLog "guardboard/internal/log"
	"guardboard/internal/model"
)

// Blob keys.
const (
	KeyGuards   = "shifts"
	KeyHolidays = "holidays"
)

// BlobStore is a synchronous get/set store of string blobs.
type BlobStore interface {
	// Get returns the blob for key; ok is false when the key was never set.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Adapter loads and saves snapshots through a BlobStore. It implements
// store.Saver.
type Adapter struct {
	blobs BlobStore
}

func NewAdapter(blobs BlobStore) *Adapter {
	return &Adapter{blobs: blobs}
}

// Load reads both collections. A missing key yields an empty collection.
func (a *Adapter) Load() (model.Snapshot, error) {
	var snap model.Snapshot

	if err := a.loadKey(KeyGuards, &snap.Guards); err != nil {
		return model.Snapshot{}, err
	}
	if err := a.loadKey(KeyHolidays, &snap.Holidays); err != nil {
		return model.Snapshot{}, err
	}

	appLog.Info("records loaded", "guards", len(snap.Guards), "holidays", len(snap.Holidays))
	return snap, nil
}

func (a *Adapter) loadKey(key string, dst any) error {
	raw, ok, err := a.blobs.Get(key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Save writes both collections in full.
func (a *Adapter) Save(snap model.Snapshot) error {
	guards := snap.Guards
	if guards == nil {
		guards = []model.Guard{}
	}
	holidays := snap.Holidays
	if holidays == nil {
		holidays = []model.Holiday{}
	}

	if err := a.saveKey(KeyGuards, guards); err != nil {
		return err
	}
	return a.saveKey(KeyHolidays, holidays)
}

func (a *Adapter) saveKey(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.blobs.Set(key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
