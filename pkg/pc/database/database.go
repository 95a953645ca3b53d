package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/logger"
	"github.com/patientcare/offers/pkg/pc/migrate"
)

var ErrNotOpen = errors.New("database is not open")

// Database manages the SQLite file holding the submission attempt log.
type Database struct {
	DB            *sql.DB
	migrationsFS  fs.FS
	migrationPath string
	cfg           *config.Config
	log           logger.Logger
}

// New creates a new Database instance.
func New(migrationsFS fs.FS, cfg *config.Config, log logger.Logger) *Database {
	return &Database{
		migrationsFS: migrationsFS,
		cfg:          cfg,
		log:          log,
	}
}

// SetMigrationPath sets a custom migration path.
func (d *Database) SetMigrationPath(path string) {
	d.migrationPath = path
}

// Start opens the database connection and runs migrations.
func (d *Database) Start(ctx context.Context) error {
	if dbDir := filepath.Dir(d.cfg.Database.Path); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("cannot create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", d.cfg.Database.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}

	d.DB = db
	if err := d.PingContext(ctx); err != nil {
		db.Close()
		d.DB = nil
		return err
	}
	d.log.Infof("Database ready at %s", d.cfg.Database.Path)

	migrator := migrate.New(d.migrationsFS, "sqlite", d.log)
	migrator.SetDB(d.DB)
	if d.migrationPath != "" {
		migrator.SetPath(d.migrationPath)
	}
	if err := migrator.Run(ctx); err != nil {
		d.DB.Close()
		d.DB = nil
		return fmt.Errorf("cannot run migrations: %w", err)
	}

	return nil
}

// Stop closes the database connection.
func (d *Database) Stop(ctx context.Context) error {
	if d.DB == nil {
		return nil
	}
	d.log.Info("Closing attempt log database")
	err := d.DB.Close()
	d.DB = nil
	return err
}

// PingContext reports whether the attempt log database is reachable. It backs
// the database check on /health.
func (d *Database) PingContext(ctx context.Context) error {
	if d.DB == nil {
		return ErrNotOpen
	}
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping database: %w", err)
	}
	return nil
}

// GetDB returns the underlying sql.DB.
func (d *Database) GetDB() *sql.DB {
	return d.DB
}
