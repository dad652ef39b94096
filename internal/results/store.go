package results

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

// Store manages the result mirror backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the results database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "results.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
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

// Save inserts the result when it has no row ID yet, otherwise updates it.
func (s *Store) Save(ctx context.Context, result *Result) error {
	if result == nil {
		return errors.New("result is nil")
	}
	if result.ID == 0 {
		return s.insert(ctx, result)
	}
	return s.update(ctx, result)
}

func (s *Store) insert(ctx context.Context, result *Result) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resultArgs(result)...,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	result.ID = id
	return nil
}

func (s *Store) update(ctx context.Context, result *Result) error {
	args := append(resultArgs(result), result.ID)
	_, err := s.db.ExecContext(ctx,
		`UPDATE results SET
            output_id = ?, invocation_id = ?, step_id = ?, workflow_id = ?, container_ref = ?,
            asset_id = ?, asset_name = ?, item_name = ?, collection_name = ?,
            workflow_name = ?, step_name = ?, output_name = ?, output_type = ?, output_path = ?,
            tool_info = ?, submitter = ?, status = ?, relevant = ?, is_final = ?,
            date_created = ?, date_updated = ?, date_refreshed = ?
         WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	return nil
}

// GetByID fetches a result by row identifier, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, `+resultColumns+` FROM results WHERE id = ?`, id)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// FindByOutputID returns every row carrying the given engine output ID.
// More than one row indicates a consistency bug the caller must resolve.
func (s *Store) FindByOutputID(ctx context.Context, outputID string) ([]*Result, error) {
	return s.queryResults(ctx,
		`SELECT id, `+resultColumns+` FROM results WHERE output_id = ? ORDER BY id`, outputID)
}

// FindByStatuses returns rows whose status is any of the given values.
func (s *Store) FindByStatuses(ctx context.Context, statuses ...Status) ([]*Result, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return s.queryResults(ctx,
		`SELECT id, `+resultColumns+` FROM results WHERE status IN (`+placeholders+`) ORDER BY id`, args...)
}

// FindFinalByAsset returns the final-flagged rows for an asset.
func (s *Store) FindFinalByAsset(ctx context.Context, assetID int64) ([]*Result, error) {
	return s.queryResults(ctx,
		`SELECT id, `+resultColumns+` FROM results WHERE asset_id = ? AND is_final = 1 ORDER BY id`, assetID)
}

// FindByAsset returns every row owned by an asset.
func (s *Store) FindByAsset(ctx context.Context, assetID int64) ([]*Result, error) {
	return s.queryResults(ctx,
		`SELECT id, `+resultColumns+` FROM results WHERE asset_id = ? ORDER BY id`, assetID)
}

// FindStale returns incomplete rows whose last refresh is older than the
// cutoff, i.e. rows that still need a targeted status refresh.
func (s *Store) FindStale(ctx context.Context, before time.Time) ([]*Result, error) {
	placeholders := makePlaceholders(len(IncompleteStatuses))
	args := make([]any, 0, len(IncompleteStatuses)+1)
	for _, status := range IncompleteStatuses {
		args = append(args, string(status))
	}
	args = append(args, before.UTC().Format(time.RFC3339Nano))
	return s.queryResults(ctx,
		`SELECT id, `+resultColumns+` FROM results
         WHERE status IN (`+placeholders+`) AND (date_refreshed IS NULL OR date_refreshed < ?)
         ORDER BY id`, args...)
}

// FindObsolete returns rows untouched since the cutoff. After a completed
// full sweep these rows no longer exist on the engine.
func (s *Store) FindObsolete(ctx context.Context, before time.Time) ([]*Result, error) {
	return s.queryResults(ctx,
		`SELECT id, `+resultColumns+` FROM results
         WHERE date_refreshed IS NULL OR date_refreshed < ?
         ORDER BY id`,
		before.UTC().Format(time.RFC3339Nano))
}

// OldestRefreshedByAsset returns the oldest refresh timestamp among an
// asset's rows. ok is false when the asset has no rows or any row was never
// refreshed.
func (s *Store) OldestRefreshedByAsset(ctx context.Context, assetID int64) (time.Time, bool, error) {
	var raw sql.NullString
	var count, unrefreshed int
	// MIN skips NULLs, so never-refreshed rows are counted separately.
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(date_refreshed), COUNT(1), COALESCE(SUM(date_refreshed IS NULL), 0)
         FROM results WHERE asset_id = ?`, assetID,
	).Scan(&raw, &count, &unrefreshed)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("oldest refreshed: %w", err)
	}
	if count == 0 || unrefreshed > 0 || !raw.Valid {
		return time.Time{}, false, nil
	}
	ts, err := parseTimeString(raw.String)
	if err != nil {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}

// Delete removes rows by identifier and reports how many went away.
func (s *Store) Delete(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	return res.RowsAffected()
}

// SetFinal flips the user-curated final flag. Already-equal values are a
// no-op so repeated calls stay cheap.
func (s *Store) SetFinal(ctx context.Context, id int64, final bool) (*Result, error) {
	result, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("result %d does not exist", id)
	}
	if result.IsFinal == final {
		return result, nil
	}
	result.IsFinal = final
	if err := s.update(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Stats returns a count of rows grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM results GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("result stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]*Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

const resultColumns = "output_id, invocation_id, step_id, workflow_id, container_ref, asset_id, asset_name, item_name, collection_name, workflow_name, step_name, output_name, output_type, output_path, tool_info, submitter, status, relevant, is_final, date_created, date_updated, date_refreshed"

func resultArgs(result *Result) []any {
	return []any{
		result.OutputID,
		result.InvocationID,
		result.StepID,
		result.WorkflowID,
		result.ContainerRef,
		result.AssetID,
		nullableString(result.AssetName),
		nullableString(result.ItemName),
		nullableString(result.CollectionName),
		nullableString(result.WorkflowName),
		nullableString(result.StepName),
		nullableString(result.OutputName),
		nullableString(result.OutputType),
		nullableString(result.OutputPath),
		nullableString(result.ToolInfo),
		nullableString(result.Submitter),
		string(result.Status),
		boolToInt(result.Relevant),
		boolToInt(result.IsFinal),
		nullableTimeValue(result.DateCreated),
		nullableTimeValue(result.DateUpdated),
		nullableTimeValue(result.DateRefreshed),
	}
}

func scanResult(scanner interface{ Scan(dest ...any) error }) (*Result, error) {
	var (
		id             int64
		outputID       string
		invocationID   string
		stepID         string
		workflowID     string
		containerRef   string
		assetID        int64
		assetName      sql.NullString
		itemName       sql.NullString
		collectionName sql.NullString
		workflowName   sql.NullString
		stepName       sql.NullString
		outputName     sql.NullString
		outputType     sql.NullString
		outputPath     sql.NullString
		toolInfo       sql.NullString
		submitter      sql.NullString
		statusStr      string
		relevant       int64
		isFinal        int64
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		refreshedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&outputID,
		&invocationID,
		&stepID,
		&workflowID,
		&containerRef,
		&assetID,
		&assetName,
		&itemName,
		&collectionName,
		&workflowName,
		&stepName,
		&outputName,
		&outputType,
		&outputPath,
		&toolInfo,
		&submitter,
		&statusStr,
		&relevant,
		&isFinal,
		&createdRaw,
		&updatedRaw,
		&refreshedRaw,
	); err != nil {
		return nil, err
	}

	result := &Result{
		ID:             id,
		OutputID:       outputID,
		InvocationID:   invocationID,
		StepID:         stepID,
		WorkflowID:     workflowID,
		ContainerRef:   containerRef,
		AssetID:        assetID,
		AssetName:      assetName.String,
		ItemName:       itemName.String,
		CollectionName: collectionName.String,
		WorkflowName:   workflowName.String,
		StepName:       stepName.String,
		OutputName:     outputName.String,
		OutputType:     outputType.String,
		OutputPath:     outputPath.String,
		ToolInfo:       toolInfo.String,
		Submitter:      submitter.String,
		Status:         Status(statusStr),
		Relevant:       relevant != 0,
		IsFinal:        isFinal != 0,
	}
	if createdRaw.Valid {
		if ts, err := parseTimeString(createdRaw.String); err == nil {
			result.DateCreated = ts
		}
	}
	if updatedRaw.Valid {
		if ts, err := parseTimeString(updatedRaw.String); err == nil {
			result.DateUpdated = ts
		}
	}
	if refreshedRaw.Valid {
		if ts, err := parseTimeString(refreshedRaw.String); err == nil {
			result.DateRefreshed = ts
		}
	}
	return result, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTimeValue(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
