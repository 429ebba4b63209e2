package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/finbot/finbench/core"
	"github.com/finbot/finbench/database"
)

// DbOptions is shared by the db subcommands.
type DbOptions struct {
	ConfigFile string        `long:"config" env:"FINBENCH_CONFIG" description:"configuration file" default:"./finbench.ini"`
	URL        string        `long:"url" env:"TEST_DATABASE_URL" description:"database URL (overrides config)"`
	Timeout    time.Duration `long:"timeout" description:"overall timeout" default:"2m"`
	Logger     core.Logger
}

// resolve determines the database URL and the readiness retry budget. The
// URL comes from the flag or env first, then the config file, then the
// built-in default; the retry budget always follows the config file.
func (o *DbOptions) resolve() (dsn string, maxRetries uint64) {
	maxRetries = defaultDatabaseConfig().MaxRetries

	conf, err := loadConfig(o.ConfigFile, o.Logger)
	if err == nil && conf.Database.MaxRetries > 0 {
		maxRetries = conf.Database.MaxRetries
	}

	if o.URL != "" {
		return o.URL, maxRetries
	}
	if err == nil {
		return conf.DSN(), maxRetries
	}
	return database.DefaultDSN, maxRetries
}

func (o *DbOptions) connect(ctx context.Context) (*database.DB, error) {
	dsn, maxRetries := o.resolve()
	o.Logger.Debugf("Connecting to %s", database.RedactDSN(dsn))

	db, err := database.Connect(ctx, dsn, o.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.WaitReady(ctx, maxRetries); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// DbSetupCommand creates the test database, applies migrations and seeds the
// baseline fixtures.
type DbSetupCommand struct {
	DbOptions
	SkipSeed bool `long:"skip-seed" description:"apply migrations without seeding fixtures"`
}

// Execute prepares the test database from scratch.
func (c *DbSetupCommand) Execute(_ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	dsn, _ := c.resolve()
	if err := database.EnsureDatabase(ctx, dsn, c.Logger); err != nil {
		return err
	}

	m, err := database.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	c.Logger.Noticef("Schema at version %d (dirty=%v)", version, dirty)

	if c.SkipSeed {
		return nil
	}

	db, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Seed(ctx); err != nil {
		return err
	}
	c.Logger.Noticef("Database ready at %s", database.RedactDSN(dsn))
	return nil
}

// DbCheckCommand reports the state of the core tables.
type DbCheckCommand struct {
	DbOptions
}

// Execute prints a per-table report and fails when tables are missing.
func (c *DbCheckCommand) Execute(_ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	db, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := db.Check(ctx)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		if s.Exists {
			c.Logger.Noticef("table %-14s present, %d rows", s.Name, s.Rows)
		} else {
			c.Logger.Errorf("table %-14s MISSING", s.Name)
		}
	}

	if missing := database.MissingTables(statuses); len(missing) > 0 {
		return fmt.Errorf("missing tables: %v (run `finbench db setup`)", missing)
	}
	return nil
}

// DbResetCommand drops and recreates the schema. Refuses to touch databases
// whose name does not mark them as test databases unless forced.
type DbResetCommand struct {
	DbOptions
	Force bool `long:"force" description:"reset even when the database name has no test_ prefix"`
	Seed  bool `long:"seed" description:"seed fixtures after the reset"`
}

// Execute wipes and rebuilds the schema.
func (c *DbResetCommand) Execute(_ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	db, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Reset(ctx, c.Force); err != nil {
		return err
	}
	c.Logger.Noticef("Schema rebuilt")

	if c.Seed {
		return db.Seed(ctx)
	}
	return nil
}
