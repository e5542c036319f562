package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ernie/altcheck/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// dialect captures the differences between the two backends
type dialect struct {
	driver     string
	schema     string
	dollarArgs bool // postgres uses $1, $2 placeholders
}

var (
	sqliteDialect   = dialect{driver: "sqlite", schema: sqliteSchema}
	postgresDialect = dialect{driver: "pgx", schema: postgresSchema, dollarArgs: true}
)

// rebind rewrites ? placeholders for the backend
func (d dialect) rebind(query string) string {
	if !d.dollarArgs {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store provides database access. Every call leases a connection from the
// database/sql pool and returns it before the call completes.
type Store struct {
	db      *sql.DB
	dialect dialect
	closed  atomic.Bool
}

// New creates a new SQLite-backed Store with the given database path
func New(dbPath string) (*Store, error) {
	return openSQLite(context.Background(), dbPath)
}

// Open creates a Store for the configured backend. Any failure here is
// fatal to the caller; a Store is never returned half-initialised.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return openSQLite(ctx, cfg.Path)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, dbPath string) (*Store, error) {
	// Pragmas go in the DSN so that every pooled connection gets them
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w: %v", ErrStorageUnavailable, err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return initStore(ctx, db, sqliteDialect)
}

// PostgresDSN builds a connection URL from the configured fields
func PostgresDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout/time.Second)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open(postgresDialect.driver, PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w: %v", ErrStorageUnavailable, err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return initStore(ctx, db, postgresDialect)
}

// initStore verifies connectivity and creates the schema
func initStore(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w: %v", ErrStorageUnavailable, err)
	}

	for _, stmt := range strings.Split(d.schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w: %v", ErrStorageUnavailable, err)
		}
	}

	return &Store{db: db, dialect: d}, nil
}

// Close closes the database connection pool
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the store is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Driver returns the database/sql driver name in use
func (s *Store) Driver() string {
	return s.dialect.driver
}

func (s *Store) ready() error {
	if s == nil || s.db == nil || s.closed.Load() {
		return ErrStorageUnavailable
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}
