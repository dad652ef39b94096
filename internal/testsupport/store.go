package testsupport

import (
	"context"
	"testing"

	"loom/internal/assets"
	"loom/internal/config"
	"loom/internal/results"
)

// MustOpenResultStore opens a results.Store for tests and registers cleanup.
func MustOpenResultStore(t testing.TB, cfg *config.Config) *results.Store {
	t.Helper()

	store, err := results.Open(cfg)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenAssetStore opens an assets.Store for tests and registers cleanup.
func MustOpenAssetStore(t testing.TB, cfg *config.Config) *assets.Store {
	t.Helper()

	store, err := assets.Open(cfg)
	if err != nil {
		t.Fatalf("assets.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewAsset creates an asset for tests using the provided store.
func NewAsset(t testing.TB, store *assets.Store, name string) *assets.Asset {
	t.Helper()

	asset := &assets.Asset{
		Name:           name,
		Pathname:       "units/1/" + name + ".mp4",
		UnitID:         1,
		UnitName:       "Test Unit",
		CollectionID:   10,
		CollectionName: "Test Collection",
		ItemID:         100,
		ItemName:       "Test Item",
	}
	if err := store.Create(context.Background(), asset); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return asset
}
