package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/patientcare/offers/pkg/pc/logger"
)

// Migration represents a database migration.
type Migration struct {
	Datetime string
	Name     string
	Up       string
	Down     string
}

// Migrator applies versioned SQL files from a filesystem.
type Migrator struct {
	db     *sql.DB
	log    logger.Logger
	fsys   fs.FS
	engine string
	path   string
}

// New creates a new Migrator.
func New(fsys fs.FS, engine string, log logger.Logger) *Migrator {
	return &Migrator{
		fsys:   fsys,
		engine: engine,
		log:    log,
	}
}

// SetDB sets the database connection.
func (m *Migrator) SetDB(db *sql.DB) {
	m.db = db
}

// SetPath sets a custom migration path.
func (m *Migrator) SetPath(path string) {
	m.path = path
}

// Run executes pending migrations in order, one transaction each.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("cannot create migrations table: %w", err)
	}

	fileMigrations, err := m.Load()
	if err != nil {
		return fmt.Errorf("cannot load file migrations: %w", err)
	}

	applied, err := m.loadApplied(ctx)
	if err != nil {
		return fmt.Errorf("cannot load database migrations: %w", err)
	}

	var pending []Migration
	for _, mig := range fileMigrations {
		if _, ok := applied[mig.key()]; !ok {
			pending = append(pending, mig)
		}
	}

	if len(pending) == 0 {
		m.log.Debug("No pending migrations")
		return nil
	}

	m.log.Infof("Running %d pending migration(s)", len(pending))

	for _, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %s failed: %w", mig.key(), err)
		}
		m.log.Infof("Applied migration: %s", mig.key())
	}

	return nil
}

func (mig Migration) key() string {
	return mig.Datetime + "-" + mig.Name
}

func (m *Migrator) dir() string {
	if m.path != "" {
		return m.path
	}
	return "assets/migrations/" + m.engine
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS migrations (
		id TEXT PRIMARY KEY,
		datetime TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

// Load reads every *.sql file under the migration directory, sorted by datetime.
// Files are named <datetime>-<name>.sql and split on "-- +migrate Up/Down".
func (m *Migrator) Load() ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(m.fsys, m.dir(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}

		parts := strings.SplitN(path.Base(p), "-", 2)
		if len(parts) < 2 {
			return fmt.Errorf("invalid migration filename: %s", d.Name())
		}

		content, err := fs.ReadFile(m.fsys, p)
		if err != nil {
			return fmt.Errorf("cannot read migration file %s: %w", p, err)
		}

		up, down := splitSections(string(content))
		migrations = append(migrations, Migration{
			Datetime: parts[0],
			Name:     strings.TrimSuffix(parts[1], ".sql"),
			Up:       up,
			Down:     down,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Datetime < migrations[j].Datetime
	})

	return migrations, nil
}

func splitSections(content string) (up, down string) {
	for _, section := range strings.Split(content, "-- +migrate ") {
		switch {
		case strings.HasPrefix(section, "Up"):
			up = strings.TrimSpace(strings.TrimPrefix(section, "Up"))
		case strings.HasPrefix(section, "Down"):
			down = strings.TrimSpace(strings.TrimPrefix(section, "Down"))
		}
	}
	return up, down
}

func (m *Migrator) loadApplied(ctx context.Context) (map[string]struct{}, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT datetime, name FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var mig Migration
		if err := rows.Scan(&mig.Datetime, &mig.Name); err != nil {
			return nil, err
		}
		applied[mig.key()] = struct{}{}
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	if mig.Up == "" {
		return fmt.Errorf("no Up section found")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.Up); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO migrations (id, datetime, name, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)",
		uuid.New().String(), mig.Datetime, mig.Name); err != nil {
		return err
	}

	return tx.Commit()
}
