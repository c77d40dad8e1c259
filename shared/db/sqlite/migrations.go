package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dfryer1193/photolog/photos/domain"
	"github.com/dfryer1193/photolog/shared/db"
	"github.com/rs/zerolog/log"
)

// SchemaVersion is the photos schema version this build expects
const SchemaVersion = 1

const (
	photosTable    = "photos"
	previousTable  = "photos_previous"
	createdAtIndex = "idx_photos_created_at"
)

// nowMillis is the SQLite expression for the current time in epoch milliseconds
const nowMillis = `CAST(ROUND((julianday('now') - 2440587.5) * 86400000) AS INTEGER)`

// MigrationPolicy decides what happens to stored photos when the schema version is bumped.
type MigrationPolicy string

const (
	// PolicyDestructive drops the photos table and recreates it empty.
	PolicyDestructive MigrationPolicy = "destructive"
	// PolicyPreserve recreates the photos table and copies every column both shapes share.
	PolicyPreserve MigrationPolicy = "preserve"
)

// UnmarshalText lets configuration loaders parse a MigrationPolicy
func (p *MigrationPolicy) UnmarshalText(text []byte) error {
	switch MigrationPolicy(strings.ToLower(strings.TrimSpace(string(text)))) {
	case "", PolicyDestructive:
		*p = PolicyDestructive
	case PolicyPreserve:
		*p = PolicyPreserve
	default:
		return fmt.Errorf("unknown migration policy %q", string(text))
	}
	return nil
}

// PayloadColumn returns the photos column holding the payload for kind
func PayloadColumn(kind domain.PayloadKind) string {
	if kind == domain.PayloadBlob {
		return "image"
	}
	return "uri"
}

func payloadType(kind domain.PayloadKind) string {
	if kind == domain.PayloadBlob {
		return "BLOB"
	}
	return "TEXT"
}

func createPhotosTableSQL(kind domain.PayloadKind) string {
	col := PayloadColumn(kind)
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			%s %s NOT NULL CHECK (length(%s) > 0),
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT (%s)
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s(created_at DESC, id DESC);
	`, photosTable, col, payloadType(kind), col, nowMillis, createdAtIndex, photosTable)
}

// photoColumns lists the current photos columns with the expression used to
// carry each one over from an older table
func photoColumns(kind domain.PayloadKind) []struct{ name, carry string } {
	col := PayloadColumn(kind)
	return []struct{ name, carry string }{
		{name: "id", carry: "id"},
		{name: col, carry: col},
		{name: "title", carry: "COALESCE(title, '')"},
		{name: "description", carry: "COALESCE(description, '')"},
		{name: "created_at", carry: "COALESCE(created_at, " + nowMillis + ")"},
	}
}

// runMigrations brings the photos schema to the target version.
// Nothing else may touch the database before it returns.
func runMigrations(ctx context.Context, sqlDB *sql.DB, cfg *SQLiteConfig) error {
	_, err := sqlDB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion, err := currentSchemaVersion(ctx, sqlDB)
	if err != nil {
		return err
	}

	target := cfg.targetVersion()
	kind := cfg.PayloadKind

	switch {
	case currentVersion > target:
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, target)
	case currentVersion == target:
		return ensurePhotosTable(ctx, sqlDB, kind)
	}

	name := "create_photos_table"
	if currentVersion > 0 {
		name = fmt.Sprintf("%s_photos_v%d_to_v%d", cfg.MigrationPolicy, currentVersion, target)
	}

	log.Info().
		Int("from", currentVersion).
		Int("to", target).
		Str("policy", string(cfg.MigrationPolicy)).
		Str("payload", string(kind)).
		Msg("Migrating photos schema")

	return db.RunInTransaction(ctx, sqlDB, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, sqlDB)

		var err error
		if cfg.MigrationPolicy == PolicyPreserve {
			err = preservePhotos(txCtx, executor, kind)
		} else {
			err = recreatePhotos(txCtx, executor, kind)
		}
		if err != nil {
			return fmt.Errorf("failed to execute migration %d (%s): %w", target, name, err)
		}

		_, err = executor.ExecContext(txCtx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			target,
			name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", target, err)
		}

		return nil
	})
}

func currentSchemaVersion(ctx context.Context, ex db.Executor) (int, error) {
	version := 0
	err := ex.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return version, nil
}

// recreatePhotos drops every stored photo and creates the current table shape
func recreatePhotos(ctx context.Context, ex db.Executor, kind domain.PayloadKind) error {
	exists, err := tableExists(ctx, ex, photosTable)
	if err != nil {
		return err
	}

	if exists {
		var dropped int64
		if err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+photosTable).Scan(&dropped); err != nil {
			return fmt.Errorf("failed to count photos: %w", err)
		}
		if dropped > 0 {
			log.Warn().Int64("photos", dropped).Msg("Destructive migration is discarding stored photos")
		}

		if _, err := ex.ExecContext(ctx, "DROP TABLE IF EXISTS "+photosTable); err != nil {
			return fmt.Errorf("failed to drop photos table: %w", err)
		}
	}

	if _, err := ex.ExecContext(ctx, createPhotosTableSQL(kind)); err != nil {
		return fmt.Errorf("failed to create photos table: %w", err)
	}
	return nil
}

// preservePhotos recreates the photos table and carries shared columns over
func preservePhotos(ctx context.Context, ex db.Executor, kind domain.PayloadKind) error {
	oldColumns, err := tableColumns(ctx, ex, photosTable)
	if err != nil {
		return err
	}
	if len(oldColumns) == 0 {
		return recreatePhotos(ctx, ex, kind)
	}

	payload := PayloadColumn(kind)
	if !oldColumns[payload] {
		return fmt.Errorf("cannot preserve photos: existing table has no %s column for the %s payload", payload, kind)
	}

	stmts := []string{
		"DROP INDEX IF EXISTS " + createdAtIndex,
		"ALTER TABLE " + photosTable + " RENAME TO " + previousTable,
		createPhotosTableSQL(kind),
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to rebuild photos table: %w", err)
		}
	}

	var names, carried []string
	for _, c := range photoColumns(kind) {
		if oldColumns[c.name] {
			names = append(names, c.name)
			carried = append(carried, c.carry)
		}
	}

	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		photosTable, strings.Join(names, ", "), strings.Join(carried, ", "), previousTable)
	res, err := ex.ExecContext(ctx, copySQL)
	if err != nil {
		return fmt.Errorf("failed to copy photos: %w", err)
	}
	if copied, err := res.RowsAffected(); err == nil {
		log.Info().Int64("photos", copied).Msg("Preserved photos across migration")
	}

	if err := carrySequence(ctx, ex); err != nil {
		return err
	}

	if _, err := ex.ExecContext(ctx, "DROP TABLE "+previousTable); err != nil {
		return fmt.Errorf("failed to drop previous photos table: %w", err)
	}
	return nil
}

// carrySequence keeps the AUTOINCREMENT high-water mark of the renamed table,
// so ids of photos deleted before the migration are never handed out again.
// The copy alone only raises the sequence to the largest surviving id.
func carrySequence(ctx context.Context, ex db.Executor) error {
	stmts := []string{
		fmt.Sprintf(`UPDATE sqlite_sequence
			SET seq = MAX(seq, COALESCE((SELECT seq FROM sqlite_sequence WHERE name = '%[2]s'), 0))
			WHERE name = '%[1]s'`, photosTable, previousTable),
		fmt.Sprintf(`INSERT INTO sqlite_sequence (name, seq)
			SELECT '%[1]s', seq FROM sqlite_sequence
			WHERE name = '%[2]s'
			AND NOT EXISTS (SELECT 1 FROM sqlite_sequence WHERE name = '%[1]s')`, photosTable, previousTable),
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to carry photo id sequence: %w", err)
		}
	}
	return nil
}

// ensurePhotosTable checks an up-to-date database still has the expected table shape
func ensurePhotosTable(ctx context.Context, ex db.Executor, kind domain.PayloadKind) error {
	columns, err := tableColumns(ctx, ex, photosTable)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		if _, err := ex.ExecContext(ctx, createPhotosTableSQL(kind)); err != nil {
			return fmt.Errorf("failed to create photos table: %w", err)
		}
		return nil
	}

	if payload := PayloadColumn(kind); !columns[payload] {
		return fmt.Errorf("photos table has no %s column for the %s payload; bump the schema version to migrate", payload, kind)
	}
	return nil
}

func tableExists(ctx context.Context, ex db.Executor, table string) (bool, error) {
	var count int
	err := ex.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for table %s: %w", table, err)
	}
	return count > 0, nil
}

// tableColumns returns the column names of table, or an empty set if it does not exist
func tableColumns(ctx context.Context, ex db.Executor, table string) (map[string]bool, error) {
	rows, err := ex.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}

	return columns, nil
}
