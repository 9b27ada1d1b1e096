package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	sqldblogger "github.com/simukti/sqldb-logger"

	"github.com/ripcoord/ripcoord/pkg/logger"
)

const (
	sqlDialect          = "postgres"
	sqlConnectionString = "host=%s user=%s password=%s dbname=%s port=%s sslmode=%s"

	connectionFailureDelay = 3 * time.Second
	connectionMaxRetries   = 5
)

var (
	//go:embed migrations/*.sql
	migrations embed.FS

	dbLog = logger.Get("Store")
)

// Config is the coordinator's database connection configuration, loaded
// from TOML with env overlay alongside the rest of the coordinator config.
type Config struct {
	Host     string `toml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `toml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `toml:"user" env:"DB_USER" env-default:"ripcoord"`
	Password string `toml:"password" env:"DB_PASSWORD" env-default:"ripcoord"`
	Name     string `toml:"name" env:"DB_NAME" env-default:"ripcoord"`
	SSLMode  string `toml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
}

// Manager owns the pooled connection and exposes the one transaction helper
// every call site in this package builds on.
type Manager interface {
	Connect(config Config) error
	GetSqlxDB() *sqlx.DB
	WrapTx(wrapper func(tx *sqlx.Tx) error) error
	Close() error
}

// Queryable is implemented by both *sqlx.DB and *sqlx.Tx, letting query
// helpers in this package accept either interchangeably.
//
//nolint:interfacebloat
type Queryable interface {
	sqlx.Ext
	sqlx.ExecerContext
	sqlx.PreparerContext
	sqlx.QueryerContext
	sqlx.Preparer

	GetContext(context.Context, interface{}, string, ...interface{}) error
	SelectContext(context.Context, interface{}, string, ...interface{}) error
	Get(interface{}, string, ...interface{}) error
	Select(interface{}, string, ...interface{}) error
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
	QueryRow(string, ...interface{}) *sql.Row
	NamedExec(string, interface{}) (sql.Result, error)
	NamedExecContext(context.Context, string, interface{}) (sql.Result, error)
}

type manager struct {
	rawDB *sql.DB
	db    *sqlx.DB
}

// New constructs an unconnected Manager; call Connect before use.
func New() Manager {
	return &manager{}
}

func (m *manager) Connect(config Config) error {
	dsn := fmt.Sprintf(sqlConnectionString, config.Host, config.User, config.Password, config.Name, config.Port, config.SSLMode)
	rawDB, err := sql.Open(sqlDialect, dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	rawDB = sqldblogger.OpenDriver(dsn, rawDB.Driver(), &sqlLogger{dbLog})

	attempt := 1
	for {
		if err := rawDB.Ping(); err != nil {
			if attempt >= connectionMaxRetries {
				dbLog.Errorf("all %d connection attempts failed: %v\n", connectionMaxRetries, err)
				return fmt.Errorf("failed to connect to database after %d attempts: %w", connectionMaxRetries, err)
			}
			dbLog.Warnf("connection attempt (%d/%d) failed, retrying in %s...\n", attempt, connectionMaxRetries, connectionFailureDelay)
			attempt++
			time.Sleep(connectionFailureDelay)
			continue
		}

		m.rawDB = rawDB
		m.db = sqlx.NewDb(rawDB, sqlDialect)
		break
	}

	if err := m.executeMigrations(); err != nil {
		return err
	}

	dbLog.Emit(logger.SUCCESS, "database connection established\n")
	return nil
}

// executeMigrations runs the embedded SQL migrations found under
// migrations/. Must only be called after a successful Connect.
func (m *manager) executeMigrations() error {
	if m.rawDB == nil {
		return errors.New("cannot run migrations before the database has connected")
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(dbLog)
	if err := goose.SetDialect(sqlDialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	dbLog.Infof("checking for pending migrations...\n")
	if err := goose.Status(m.rawDB, "migrations"); err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if err := goose.Up(m.rawDB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	dbLog.Emit(logger.SUCCESS, "migrations up to date\n")
	return nil
}

func (m *manager) GetSqlxDB() *sqlx.DB { return m.db }

func (m *manager) Close() error {
	if m.rawDB == nil {
		return nil
	}
	return m.rawDB.Close()
}

// WrapTx begins a transaction, invokes f, and commits on success or rolls
// back on error. Used for every multi-row mutation so partial-write states
// are never observable (spec §5).
func (m *manager) WrapTx(f func(tx *sqlx.Tx) error) error {
	if m.db == nil {
		return errors.New("database manager has not connected")
	}
	return WrapTx(m.db, f)
}

// WrapTx is the free-function form, usable directly against a *sqlx.DB.
func WrapTx(db *sqlx.DB, f func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := f(tx); err != nil {
		dbLog.Errorf("transaction failed, rolling back: %v\n", err)
		return fmt.Errorf("transaction failed: %w", err)
	}

	return tx.Commit()
}

type sqlLogger struct {
	logger logger.Logger
}

func (l *sqlLogger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]any) {
	switch level {
	case sqldblogger.LevelTrace:
		l.logger.Verbosef("%s - %v\n", msg, data)
	case sqldblogger.LevelDebug, sqldblogger.LevelInfo:
		if query, ok := data["query"]; ok {
			l.logger.Debugf("%s [%v] -- %s\n", msg, data["duration"], query)
		} else {
			l.logger.Debugf("%s [%v]\n", msg, data["duration"])
		}
	case sqldblogger.LevelError:
		l.logger.Errorf("%s - %v\n", msg, data)
	}
}

// JSONColumn decodes a jsonb column into T on demand; used for ad hoc
// aggregate query projections where a dedicated Scanner type isn't worth
// declaring in models.go.
type JSONColumn[T any] struct {
	val *T
}

func (j *JSONColumn[T]) Scan(src any) error {
	if src == nil {
		j.val = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("JSONColumn.Scan: expected []byte, got %T", src)
	}
	j.val = new(T)
	return json.Unmarshal(b, j.val)
}

func (j *JSONColumn[T]) Get() *T { return j.val }
