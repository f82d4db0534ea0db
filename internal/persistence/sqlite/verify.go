package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Check inspects an open database for corruption. quick_check runs by default;
// full switches to integrity_check and adds foreign_key_check, which catches
// rows written while enforcement was off. Healthy databases return nil.
func Check(ctx context.Context, db *sql.DB, full bool) ([]string, error) {
	pragma := "quick_check"
	if full {
		pragma = "integrity_check"
	}
	var issues []string
	err := eachRow(ctx, db, "PRAGMA "+pragma, func(rows *sql.Rows) error {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return err
		}
		if !strings.EqualFold(msg, "ok") {
			issues = append(issues, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
	}
	if !full {
		return issues, nil
	}

	err = eachRow(ctx, db, "PRAGMA foreign_key_check", func(rows *sql.Rows) error {
		var (
			table, parent string
			rowid         sql.NullInt64
			fkid          int
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return err
		}
		issues = append(issues, fmt.Sprintf("%s row %d references missing %s", table, rowid.Int64, parent))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: foreign_key_check: %w", err)
	}
	return issues, nil
}

func eachRow(ctx context.Context, db *sql.DB, query string, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
