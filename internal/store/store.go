package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/onemodel/internal/blob"
)

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Options configures a Store. Zero values pick defaults.
type Options struct {
	// Dialect selects the engine. Defaults to SQLite.
	Dialect Dialect

	// Logger receives schema, base-data and allocator events. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records operation outcomes. Nil disables metrics.
	Metrics *Metrics

	// Clock supplies insertion, archival and observation dates. Defaults to time.Now.
	Clock func() time.Time

	// NewInstanceID generates OmInstance ids. Defaults to random UUIDs.
	NewInstanceID func() string

	// Blobs, when set, holds file-attribute content instead of FileAttributeContent.
	Blobs blob.Store
}

// Store is the knowledge-graph storage engine.
type Store struct {
	db            *sql.DB
	dialect       Dialect
	logger        *slog.Logger
	metrics       *Metrics
	now           func() time.Time
	newInstanceID func() string
	blobs         blob.Store
	base          BaseIDs

	// bound is the caller transaction of a view made by In.
	bound *Tx
}

// Open connects to the database named by dsn, creates or migrates the schema
// and ensures the base data exists.
//
// For SQLite the dsn is a file path or ":memory:". Every connection gets:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - a REGEXP function
//
// This function is idempotent - safe to call multiple times on one database.
func Open(dsn string, opts Options) (*Store, error) {
	if opts.Dialect == "" {
		opts.Dialect = SQLite
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewInstanceID == nil {
		opts.NewInstanceID = uuid.NewString
	}

	db, err := sql.Open(opts.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Each SQLite :memory: connection is its own database, so pin the pool to one.
	if opts.Dialect == SQLite && isMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &Store{
		db:            db,
		dialect:       opts.Dialect,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		now:           opts.Clock,
		newInstanceID: opts.NewInstanceID,
		blobs:         opts.Blobs,
	}

	ctx := context.Background()
	if err := s.applySchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := s.ensureBaseData(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create base data: %w", err)
	}
	return s, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// Close closes the database connection. Closing a view made by In is a
// no-op; the store it came from owns the connection.
func (s *Store) Close() error {
	if s.db == nil || s.bound != nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the engine in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// applySchema creates tables if they don't exist and runs migrations.
// A database written by a newer version is refused.
func (s *Store) applySchema(ctx context.Context) error {
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return &Error{
			Code:    CodeSchemaVersion,
			Op:      "open",
			Message: fmt.Sprintf("database schema version %d is newer than supported version %d", version, currentSchemaVersion),
		}
	}

	for _, stmt := range splitStatements(s.dialect.schema()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement %q: %w", firstLine(stmt), err)
		}
	}

	if err := s.runMigrations(ctx, version); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if version == 0 {
		s.logger.Info("created schema", "dialect", s.dialect, "version", currentSchemaVersion)
	}
	return nil
}

// schemaVersion returns the recorded version, or 0 for a fresh database.
func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM om_db_version").Scan(&version)
	if err != nil {
		if isMissingTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return int(version.Int64), nil
}

func isMissingTable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist")
}

// runMigrations brings an existing database up to currentSchemaVersion and
// records the version. There are no incremental steps yet; the schema bundle
// is idempotent.
func (s *Store) runMigrations(ctx context.Context, version int) error {
	if version == currentSchemaVersion {
		return nil
	}
	r := s.reader()
	if _, err := r.exec(ctx, "DELETE FROM om_db_version"); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	if _, err := r.exec(ctx, "INSERT INTO om_db_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

// scanOne maps sql.ErrNoRows to a NOT_FOUND store error.
func scanOne(err error, op, what string, ids ...int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(op, what, ids...)
	}
	return wrap(op, err, ids...)
}
