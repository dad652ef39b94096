package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"loom/internal/config"
)

// Store manages asset persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the assets database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "assets.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new asset and assigns its ID.
func (s *Store) Create(ctx context.Context, asset *Asset) error {
	if asset == nil {
		return errors.New("asset is nil")
	}
	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (
            name, original_filename, pathname, media_info_path,
            unit_id, unit_name, collection_id, collection_name, task_manager,
            item_id, item_name, dataset_ref, container_ref, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.Name,
		nullableString(asset.OriginalFilename),
		nullableString(asset.Pathname),
		nullableString(asset.MediaInfoPath),
		asset.UnitID,
		nullableString(asset.UnitName),
		asset.CollectionID,
		nullableString(asset.CollectionName),
		nullableString(asset.TaskManager),
		asset.ItemID,
		nullableString(asset.ItemName),
		nullableString(asset.DatasetRef),
		nullableString(asset.ContainerRef),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	asset.ID = id
	return nil
}

// GetByID fetches an asset by identifier, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// SetEngineRefs persists the engine handles for an asset. Refs already set
// are never overwritten; staging happens at most once per asset.
func (s *Store) SetEngineRefs(ctx context.Context, id int64, datasetRef, containerRef string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE assets
         SET dataset_ref = COALESCE(dataset_ref, ?),
             container_ref = COALESCE(container_ref, ?),
             updated_at = ?
         WHERE id = ?`,
		nullableString(datasetRef),
		nullableString(containerRef),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set engine refs: %w", err)
	}
	return nil
}

// FindByContainerRef returns the assets pointing at an engine container.
// More than one indicates a consistency bug; callers decide how to react.
func (s *Store) FindByContainerRef(ctx context.Context, containerRef string) ([]*Asset, error) {
	return s.queryAssets(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE container_ref = ? ORDER BY id`, containerRef)
}

// ListStaged returns every asset that has an output container on the engine.
func (s *Store) ListStaged(ctx context.Context) ([]*Asset, error) {
	return s.queryAssets(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE container_ref IS NOT NULL ORDER BY id`)
}

// AddToBundle records bundle membership for an asset.
func (s *Store) AddToBundle(ctx context.Context, bundle string, assetID int64) error {
	if bundle == "" {
		return errors.New("bundle name is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO asset_bundles (bundle, asset_id) VALUES (?, ?)`, bundle, assetID)
	if err != nil {
		return fmt.Errorf("add to bundle: %w", err)
	}
	return nil
}

// ListBundle returns the assets in a named bundle ordered by id.
func (s *Store) ListBundle(ctx context.Context, bundle string) ([]*Asset, error) {
	return s.queryAssets(ctx,
		`SELECT `+prefixedAssetColumns("a")+` FROM assets a
         JOIN asset_bundles b ON b.asset_id = a.id
         WHERE b.bundle = ? ORDER BY a.id`, bundle)
}

// RegisterTrainingAsset records a training asset for a collection under a
// logical name.
func (s *Store) RegisterTrainingAsset(ctx context.Context, collectionID int64, name, pathname string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_assets (collection_id, name, pathname) VALUES (?, ?, ?)
         ON CONFLICT (collection_id, name) DO UPDATE SET pathname = excluded.pathname`,
		collectionID, name, pathname)
	if err != nil {
		return fmt.Errorf("register training asset: %w", err)
	}
	return nil
}

// ResolveTrainingAsset returns the pathname registered for a logical training
// asset name within a collection, or "" when unknown.
func (s *Store) ResolveTrainingAsset(ctx context.Context, collectionID int64, name string) (string, error) {
	var pathname string
	err := s.db.QueryRowContext(ctx,
		`SELECT pathname FROM training_assets WHERE collection_id = ? AND name = ?`,
		collectionID, name,
	).Scan(&pathname)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve training asset: %w", err)
	}
	return pathname, nil
}

func (s *Store) queryAssets(ctx context.Context, query string, args ...any) ([]*Asset, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var result []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, asset)
	}
	return result, rows.Err()
}

const assetColumns = "id, name, original_filename, pathname, media_info_path, unit_id, unit_name, collection_id, collection_name, task_manager, item_id, item_name, dataset_ref, container_ref, created_at, updated_at"

func prefixedAssetColumns(alias string) string {
	return alias + ".id, " + alias + ".name, " + alias + ".original_filename, " + alias + ".pathname, " +
		alias + ".media_info_path, " + alias + ".unit_id, " + alias + ".unit_name, " + alias + ".collection_id, " +
		alias + ".collection_name, " + alias + ".task_manager, " + alias + ".item_id, " + alias + ".item_name, " +
		alias + ".dataset_ref, " + alias + ".container_ref, " + alias + ".created_at, " + alias + ".updated_at"
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id               int64
		name             string
		originalFilename sql.NullString
		pathname         sql.NullString
		mediaInfoPath    sql.NullString
		unitID           int64
		unitName         sql.NullString
		collectionID     int64
		collectionName   sql.NullString
		taskManager      sql.NullString
		itemID           int64
		itemName         sql.NullString
		datasetRef       sql.NullString
		containerRef     sql.NullString
		createdRaw       string
		updatedRaw       string
	)
	if err := scanner.Scan(
		&id,
		&name,
		&originalFilename,
		&pathname,
		&mediaInfoPath,
		&unitID,
		&unitName,
		&collectionID,
		&collectionName,
		&taskManager,
		&itemID,
		&itemName,
		&datasetRef,
		&containerRef,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:               id,
		Name:             name,
		OriginalFilename: originalFilename.String,
		Pathname:         pathname.String,
		MediaInfoPath:    mediaInfoPath.String,
		UnitID:           unitID,
		UnitName:         unitName.String,
		CollectionID:     collectionID,
		CollectionName:   collectionName.String,
		TaskManager:      taskManager.String,
		ItemID:           itemID,
		ItemName:         itemName.String,
		DatasetRef:       datasetRef.String,
		ContainerRef:     containerRef.String,
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		asset.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		asset.UpdatedAt = ts
	}
	return asset, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
