package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/finbot/finbench/core"
)

// testUserTelegramID identifies the seeded test user. The value is outside
// Telegram's real ID range so it never collides with production data copied
// into a dev environment.
const testUserTelegramID = 123456789

var defaultIncomeCategories = []string{"Salary", "Freelance", "Other income"}

var defaultExpenseCategories = []string{"Groceries", "Transport", "Housing", "Entertainment", "Health"}

// EnsureDatabase creates the target database when it does not exist yet. It
// connects through the maintenance database because Postgres cannot create a
// database from within itself.
func EnsureDatabase(ctx context.Context, dsn string, logger core.Logger) error {
	name, err := DatabaseName(dsn)
	if err != nil {
		return err
	}

	adminDSN, err := AdminDSN(dsn)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("connect to maintenance database: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check database %q: %w", name, err)
	}
	if exists {
		logger.Debugf("Database %q already exists", name)
		return nil
	}

	// CREATE DATABASE does not support bind parameters; the identifier is
	// quoted instead.
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{name}.Sanitize())); err != nil {
		return fmt.Errorf("create database %q: %w", name, err)
	}

	logger.Noticef("Created database %q", name)
	return nil
}

// Seed inserts the fixture data the test suite expects: one test user and
// the default income and expense categories. Inserts are idempotent so a
// re-run against a seeded database changes nothing.
func (db *DB) Seed(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var userID int
	err = tx.QueryRow(ctx, `
		INSERT INTO users (telegram_id, username, first_name)
		VALUES ($1, 'test_user', 'Test')
		ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING id`, testUserTelegramID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("seed test user: %w", err)
	}

	for _, name := range defaultIncomeCategories {
		if err := seedCategory(ctx, tx, userID, name, "income"); err != nil {
			return err
		}
	}
	for _, name := range defaultExpenseCategories {
		if err := seedCategory(ctx, tx, userID, name, "expense"); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	db.logger.Noticef("Seeded test user and %d categories",
		len(defaultIncomeCategories)+len(defaultExpenseCategories))
	return nil
}

func seedCategory(ctx context.Context, tx pgx.Tx, userID int, name, kind string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO categories (user_id, name, transaction_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name, transaction_type) DO NOTHING`, userID, name, kind)
	if err != nil {
		return fmt.Errorf("seed category %q (%s): %w", name, kind, err)
	}
	return nil
}
