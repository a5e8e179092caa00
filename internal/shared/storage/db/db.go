package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"findoc-backend/internal/shared/telemetry"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	_ "modernc.org/sqlite"             // register sqlite as database/sql driver
)

// Dialect names the SQL flavour behind a *sql.DB.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

var (
	openDB = sql.Open

	singletonMu    sync.Mutex
	singletonDB    *sql.DB
	singletonGroup singleflight.Group
)

// ParseURL maps DATABASE_URL to a driver name, DSN and dialect.
// "sqlite:path" and "file:path" select the embedded SQLite driver; anything else is Postgres.
func ParseURL(databaseURL string) (driverName, dsn string, dialect Dialect) {
	raw := strings.TrimSpace(databaseURL)
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		return "sqlite", sqliteDSN(raw[len("sqlite://"):]), DialectSQLite
	case strings.HasPrefix(lower, "sqlite:"):
		return "sqlite", sqliteDSN(raw[len("sqlite:"):]), DialectSQLite
	case strings.HasPrefix(lower, "file:"):
		return "sqlite", sqliteDSN(raw[len("file:"):]), DialectSQLite
	default:
		return "pgx", raw, DialectPostgres
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

// Connect opens a *sql.DB using the provided DATABASE_URL and verifies connectivity.
// The returned *sql.DB should be shared and re-used by callers.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	driverName, dsn, dialect := ParseURL(databaseURL)
	db, err := openDB(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialect == DialectSQLite {
		// one writer at a time
		opts.MaxOpenConns = 1
		opts.MaxIdleConns = 1
	}
	opts.apply(db)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logPoolStats(db, dialect)
	return db, nil
}

// GetSingleton returns the process-wide *sql.DB for warm Lambda invocations. Concurrent cold
// callers share one Connect; a failed Connect is not cached, so the next call retries.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if db := loadSingleton(); db != nil {
		return db, nil
	}
	v, err, shared := singletonGroup.Do("db", func() (any, error) {
		if db := loadSingleton(); db != nil {
			return db, nil
		}
		db, err := Connect(ctx, databaseURL, opts)
		if err != nil {
			return nil, err
		}
		singletonMu.Lock()
		singletonDB = db
		singletonMu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.Info("db.singleton", map[string]any{"event": "cold_start", "shared": shared})
	return v.(*sql.DB), nil
}

func loadSingleton() *sql.DB {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singletonDB
}

// Rebind rewrites "?" placeholders to "$n" for Postgres; SQLite keeps "?".
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func logPoolStats(db *sql.DB, dialect Dialect) {
	stats := db.Stats()
	telemetry.Info("db.pool", map[string]any{
		"dialect":  string(dialect),
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
		"max_open": stats.MaxOpenConnections,
	})
}
