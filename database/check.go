package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// coreTables are the tables the schema migrations create, in dependency
// order.
var coreTables = []string{"users", "categories", "transactions", "budgets", "reports"}

// TableStatus is the result of a health check on one table.
type TableStatus struct {
	Name   string
	Exists bool
	Rows   int64
}

// Check verifies every core table exists and reports its row count, for the
// `db check` command and the doctor diagnostics.
func (db *DB) Check(ctx context.Context) ([]TableStatus, error) {
	statuses := make([]TableStatus, 0, len(coreTables))

	for _, table := range coreTables {
		status := TableStatus{Name: table}

		var exists bool
		err := db.Pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check table %q: %w", table, err)
		}
		status.Exists = exists

		if exists {
			query := fmt.Sprintf("SELECT count(*) FROM %s", pgx.Identifier{table}.Sanitize())
			if err := db.Pool.QueryRow(ctx, query).Scan(&status.Rows); err != nil {
				return nil, fmt.Errorf("count rows in %q: %w", table, err)
			}
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

// MissingTables returns the names of core tables absent from the schema.
func MissingTables(statuses []TableStatus) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Exists {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

// Truncate empties every core table, restarting identity sequences. The test
// suite calls this between test cases to keep them independent.
func (db *DB) Truncate(ctx context.Context) error {
	for i := len(coreTables) - 1; i >= 0; i-- {
		table := coreTables[i]
		query := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", pgx.Identifier{table}.Sanitize())
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("truncate %q: %w", table, err)
		}
	}
	return nil
}
