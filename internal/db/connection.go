package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/epl-xg-merge/internal/config"
)

// Connection holds the database connection
type Connection struct {
	DB  *sqlx.DB
	DSN string
}

// DSNFromEnv returns DATABASE_URL when set, otherwise a DSN assembled from the PG*
// variables.
func DSNFromEnv() string {
	if url := config.GetEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := config.GetEnv("PGHOST", "localhost")
	port := config.GetEnv("PGPORT", "5432")
	user := config.GetEnv("PGUSER", "xgmerge")
	password := config.GetEnv("PGPASSWORD", "xgmerge")
	dbname := config.GetEnv("PGDATABASE", "xgmerge")
	sslmode := config.GetEnv("PGSSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
}

// NewConnection opens and pings a connection built from the environment
func NewConnection(ctx context.Context) (*Connection, error) {
	return Open(ctx, DSNFromEnv())
}

// Open connects to dsn and applies the pool settings
func Open(ctx context.Context, dsn string) (*Connection, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	db.SetMaxOpenConns(config.GetEnvInt("DB_MAX_OPEN_CONNS", 10))
	db.SetMaxIdleConns(config.GetEnvInt("DB_MAX_IDLE_CONNS", 5))
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Connection{DB: db, DSN: dsn}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}
