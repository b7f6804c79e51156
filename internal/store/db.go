package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type DB struct {
	Pool    *sql.DB
	Dialect Dialect
}

// DialectFor picks the backend for a database URL. Anything that is not a
// postgres URL is treated as a SQLite path.
func DialectFor(url string) Dialect {
	u := strings.ToLower(strings.TrimSpace(url))
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

func Open(url string) (*DB, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("open store: empty database url")
	}

	dialect := DialectFor(url)

	var (
		pool *sql.DB
		err  error
	)
	switch dialect {
	case DialectPostgres:
		pool, err = sql.Open("pgx", url)
		if err != nil {
			return nil, err
		}
		pool.SetMaxOpenConns(4)
	default:
		// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
		path := strings.TrimPrefix(url, "sqlite://")
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
		pool, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		pool.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	}
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, classify(err))
	}

	return &DB{Pool: pool, Dialect: dialect}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(q string) string {
	if d.Dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	res, err := d.Pool.ExecContext(ctx, d.rebind(q), args...)
	return res, classify(err)
}

func (d *DB) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	rows, err := d.Pool.QueryContext(ctx, d.rebind(q), args...)
	return rows, classify(err)
}

func (d *DB) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return d.Pool.QueryRowContext(ctx, d.rebind(q), args...)
}

// insertID runs an INSERT ... RETURNING id statement.
func (d *DB) insertID(ctx context.Context, q string, args ...any) (int64, error) {
	var id int64
	if err := d.queryRow(ctx, q, args...).Scan(&id); err != nil {
		return 0, classify(err)
	}
	return id, nil
}
