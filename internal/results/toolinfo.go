package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RegisterToolVersion records that a tool version became effective at the
// given time. The registry is append-only; old entries stay so historic
// invocations resolve to the version that actually ran.
func (s *Store) RegisterToolVersion(ctx context.Context, toolID, toolName, version string, effectiveFrom time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_versions (tool_id, tool_name, version, effective_from) VALUES (?, ?, ?, ?)`,
		toolID, toolName, version, effectiveFrom.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("register tool version: %w", err)
	}
	return nil
}

// ToolInfo resolves the human-readable "name version" of a tool as of the
// invocation time, or "" when the tool is not in the registry.
func (s *Store) ToolInfo(ctx context.Context, toolID string, invokedAt time.Time) (string, error) {
	var name, version string
	err := s.db.QueryRowContext(ctx,
		`SELECT tool_name, version FROM tool_versions
         WHERE tool_id = ? AND effective_from <= ?
         ORDER BY effective_from DESC LIMIT 1`,
		toolID, invokedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&name, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve tool info: %w", err)
	}
	return name + " " + version, nil
}
