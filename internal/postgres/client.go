package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/qazuor/qzpay-sub003/internal/config"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
)

// Client wraps the sqlx pool and carries transactions through context, so
// repositories stay oblivious to transaction boundaries.
type Client struct {
	db     *sqlx.DB
	logger *logger.Logger
}

type txKey struct{}

// NewClient opens a connection pool against the configured database
func NewClient(cfg *config.Configuration, log *logger.Logger) (*Client, error) {
	pg := cfg.Postgres
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to connect to postgres").
			WithHint("Check the postgres configuration").
			Mark(ierr.ErrSystem)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	log.Infow("connected to postgres", "host", pg.Host, "dbname", pg.DBName)
	return &Client{db: db, logger: log}, nil
}

// Querier is the read/write surface shared by *sqlx.DB and *sqlx.Tx
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Querier returns the ambient transaction when one is in flight, the pool
// otherwise.
func (c *Client) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return c.db
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error or panic. Nested calls join the outer transaction.
func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ierr.WithError(err).
			WithMessage("failed to begin transaction").
			Mark(ierr.ErrSystem)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.logger.Errorw("rollback after panic failed", "error", rbErr)
			}
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Errorw("transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to commit transaction").
			Mark(ierr.ErrSystem)
	}
	return nil
}

// Ping verifies connectivity; used by readiness probes
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.db.Close()
}
