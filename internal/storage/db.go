package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names a supported SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Options selects and locates the SQL database. Path is used by sqlite;
// the network fields by postgres and mysql. A non-empty DSN wins over both.
type Options struct {
	Driver   Driver
	Path     string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DB wraps the SQL connection shared by the page and draft stores.
type DB struct {
	conn   *sql.DB
	driver Driver
}

// Open connects to the database described by opts and runs migrations.
func Open(opts Options) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	dsn, err := opts.dsn()
	if err != nil {
		return nil, err
	}
	if opts.Driver == DriverSQLite && opts.DSN == "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open(string(opts.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	switch opts.Driver {
	case DriverSQLite:
		// SQLite only supports one writer.
		conn.SetMaxOpenConns(1)
	default:
		conn.SetMaxOpenConns(5)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(10 * time.Minute)
	}

	db := &DB{conn: conn, driver: opts.Driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (o Options) dsn() (string, error) {
	if o.DSN != "" {
		return o.DSN, nil
	}
	switch o.Driver {
	case DriverSQLite:
		if o.Path == "" {
			return "", fmt.Errorf("sqlite: path is required")
		}
		return o.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	case DriverPostgres:
		return buildPostgresDSN(o), nil
	case DriverMySQL:
		return buildMySQLDSN(o), nil
	}
	return "", fmt.Errorf("unsupported driver: %s", o.Driver)
}

func buildPostgresDSN(o Options) string {
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, port, o.User, o.Password, o.Database, sslMode,
	)
}

func buildMySQLDSN(o Options) string {
	port := o.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		o.User, o.Password, o.Host, port, o.Database,
	)
	if o.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Driver() Driver {
	return db.driver
}

// rebind rewrites ? placeholders into the driver's native form.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
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

func (db *DB) exec(ctx context.Context, q sqlExecer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, db.rebind(query), args...)
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) types() (id, text, ts string) {
	switch db.driver {
	case DriverMySQL:
		return "VARCHAR(64)", "LONGTEXT", "DATETIME(6)"
	case DriverPostgres:
		return "VARCHAR(64)", "TEXT", "TIMESTAMPTZ"
	}
	return "TEXT", "TEXT", "DATETIME"
}

func (db *DB) migrate() error {
	id, text, ts := db.types()
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			id ` + id + ` PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			slug VARCHAR(255) NOT NULL,
			is_published INTEGER NOT NULL DEFAULT 0,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS page_sections (
			page_id ` + id + ` NOT NULL,
			position INTEGER NOT NULL,
			type VARCHAR(32) NOT NULL,
			content ` + text + ` NOT NULL,
			is_visible INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (page_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS page_drafts (
			id ` + id + ` PRIMARY KEY,
			page_id ` + id + ` NOT NULL,
			label VARCHAR(255) NOT NULL,
			sections_json ` + text + ` NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX idx_page_drafts_page ON page_drafts(page_id)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			// Index creation is not idempotent on every driver.
			if strings.HasPrefix(m, "CREATE INDEX") && isDuplicate(err) {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", firstLine(m), err)
		}
	}
	return nil
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
