package database

import (
	"context"
	"fmt"
	"strings"
)

// ErrNotATestDatabase guards Reset against wiping a database whose name does
// not mark it as disposable.
type ErrNotATestDatabase struct {
	Name string
}

func (e ErrNotATestDatabase) Error() string {
	return fmt.Sprintf("database %q does not look like a test database, use force to reset it anyway", e.Name)
}

// Reset drops the public schema with everything in it and re-applies the
// migrations, returning the database to a clean, migrated state. Databases
// whose name does not start with "test_" are only reset when force is set.
func (db *DB) Reset(ctx context.Context, force bool) error {
	name, err := DatabaseName(db.DSN)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(name, "test_") && !force {
		return ErrNotATestDatabase{Name: name}
	}

	if _, err := db.Pool.Exec(ctx, "DROP SCHEMA public CASCADE"); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE SCHEMA public"); err != nil {
		return fmt.Errorf("recreate schema: %w", err)
	}

	db.logger.Noticef("Schema of %q dropped, re-applying migrations", name)

	m, err := NewMigrator(db.DSN)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	return m.Up()
}
