package store

import (
	"context"
	"database/sql"
	"fmt"

	werrors "github.com/webrecall/webrecall/internal/errors"
)

// DefaultBlockedPatterns seed an empty blocklist on first initialization.
var DefaultBlockedPatterns = []BlockedPattern{
	{Pattern: "*.ru", Description: "Russian TLD"},
	{Pattern: "*.cn", Description: "Chinese TLD"},
	{Pattern: "*porn*", Description: "Adult content"},
	{Pattern: "*sex*", Description: "Adult content"},
}

// ListBlockedPatterns returns every blocklist entry ordered by pattern.
func (e *Engine) ListBlockedPatterns(ctx context.Context) ([]BlockedPattern, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, pattern, description, created_at FROM blocked_domains ORDER BY pattern`)
	if err != nil {
		return nil, werrors.Storage("list blocked patterns failed", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BlockedPattern
	for rows.Next() {
		var p BlockedPattern
		if err := rows.Scan(&p.ID, &p.Pattern, &p.Description, &p.CreatedAt); err != nil {
			return nil, werrors.Storage("scan blocked pattern", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddBlockedPattern inserts a pattern; duplicates are rejected.
func (e *Engine) AddBlockedPattern(ctx context.Context, pattern, description string) error {
	return e.withWriteTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow(`SELECT id FROM blocked_domains WHERE pattern = ?`, pattern).Scan(&existing)
		if err == nil {
			return werrors.Validation("pattern", fmt.Sprintf("pattern %q already exists", pattern))
		}
		if err != sql.ErrNoRows {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO blocked_domains (pattern, description) VALUES (?, ?)`,
			pattern, description)
		return err
	})
}

// RemoveBlockedPattern deletes a pattern. Returns NotFound when absent.
// Authorization is checked by the blocklist layer, not here.
func (e *Engine) RemoveBlockedPattern(ctx context.Context, pattern string) error {
	found := false
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM blocked_domains WHERE pattern = ?`, pattern)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return werrors.NotFound(fmt.Sprintf("pattern %q not found", pattern))
	}
	return nil
}

// SeedBlockedPatterns installs the default set when the table is empty.
func (e *Engine) SeedBlockedPatterns(ctx context.Context) error {
	return e.withWriteTx(ctx, func(tx *sql.Tx) error {
		var count int64
		if err := tx.QueryRow(`SELECT COUNT(*) FROM blocked_domains`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for _, p := range DefaultBlockedPatterns {
			if _, err := tx.Exec(
				`INSERT INTO blocked_domains (pattern, description) VALUES (?, ?)`,
				p.Pattern, p.Description); err != nil {
				return err
			}
		}
		return nil
	})
}
