package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfryer1193/photolog/photos/domain"
	"github.com/dfryer1193/photolog/shared/config"
	"github.com/dfryer1193/photolog/shared/db"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	memoryPath = ":memory:"
	connectOp  = "connect photo database"
)

var _ db.Database = (*SQLiteDB)(nil)

// pragmas are applied by the driver to every pooled connection
var pragmas = []string{
	"journal_mode(WAL)",   // Write-Ahead Logging for better concurrency
	"synchronous(NORMAL)", // Balance between safety and performance
	"foreign_keys(1)",
	"busy_timeout(5000)", // Wait up to 5 seconds if database is locked
	"cache_size(-64000)", // Use 64MB cache (negative means KB)
}

type SQLiteConfig struct {
	Path            string             `env:"SQLITE_DB_PATH" envDefault:"./photos.db"`
	PayloadKind     domain.PayloadKind `env:"PHOTO_PAYLOAD_KIND" envDefault:"reference"`
	SchemaVersion   int                `env:"PHOTO_SCHEMA_VERSION"`
	MigrationPolicy MigrationPolicy    `env:"PHOTO_MIGRATION_POLICY" envDefault:"destructive"`
}

// NewSQLiteConfig reads the database configuration from the environment
func NewSQLiteConfig() (*SQLiteConfig, error) {
	cfg := &SQLiteConfig{}
	if err := config.ParseEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.SchemaVersion < 0 {
		return nil, fmt.Errorf("schema version must not be negative, got %d", cfg.SchemaVersion)
	}
	return cfg, nil
}

func (c *SQLiteConfig) targetVersion() int {
	if c.SchemaVersion > 0 {
		return c.SchemaVersion
	}
	return SchemaVersion
}

// SQLiteDB implements the db.Database interface for SQLite and owns the photos schema
type SQLiteDB struct {
	cfg SQLiteConfig
	db  *sql.DB
}

// NewSQLiteDB creates a new SQLite database instance. Nothing is opened until Connect.
func NewSQLiteDB(cfg *SQLiteConfig) *SQLiteDB {
	c := *cfg
	if c.PayloadKind == "" {
		c.PayloadKind = domain.PayloadReference
	}
	if c.MigrationPolicy == "" {
		c.MigrationPolicy = PolicyDestructive
	}
	return &SQLiteDB{cfg: c}
}

// Connect opens the database and migrates it to the configured schema version
func (s *SQLiteDB) Connect() error {
	return s.ConnectContext(context.Background())
}

// ConnectContext opens the database and migrates it to the configured schema version.
// The handle is only published once migrations succeed. Failures to reach the
// engine match domain.ErrStorageUnavailable; migration failures do not.
func (s *SQLiteDB) ConnectContext(ctx context.Context) error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}
	if strings.TrimSpace(s.cfg.Path) == "" {
		return fmt.Errorf("database path is required")
	}

	if s.cfg.Path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0755); err != nil {
			return domain.Wrap(domain.KindStorageUnavailable, connectOp, "failed to create database directory", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn(s.cfg.Path))
	if err != nil {
		return domain.Wrap(domain.KindStorageUnavailable, connectOp, "failed to open database", err)
	}
	if s.cfg.Path == memoryPath {
		// each connection to :memory: would get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return domain.Wrap(domain.KindStorageUnavailable, connectOp, "failed to ping database", err)
	}

	if err := runMigrations(ctx, sqlDB, &s.cfg); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = sqlDB

	log.Info().
		Str("path", s.cfg.Path).
		Str("payload", string(s.cfg.PayloadKind)).
		Int("schemaVersion", s.cfg.targetVersion()).
		Msg("Connected to photo database")

	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying *sql.DB instance, or nil before Connect
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

// PayloadKind returns the payload representation this database stores
func (s *SQLiteDB) PayloadKind() domain.PayloadKind {
	return s.cfg.PayloadKind
}

// SchemaVersion returns the latest schema version recorded in the migration ledger
func (s *SQLiteDB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.WithConn(ctx, s.db, func(ctx context.Context, ex db.Executor) error {
		var err error
		version, err = currentSchemaVersion(ctx, ex)
		return err
	})
	return version, err
}

// dsn builds a file: URI so that '?', '#' and '%' in path stay part of the file name
func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	if path == memoryPath {
		return path + "?" + q.Encode()
	}
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode()
}
