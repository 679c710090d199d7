package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/jmoiron/sqlx"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/postgres"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// placeholder returns the n-th positional bind, $1-based
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// paginate appends LIMIT/OFFSET unless the filter is an unlimited scan
func paginate(query string, args []any, filter types.BaseFilter) (string, []any) {
	if filter.IsUnlimited() {
		return query, args
	}
	args = append(args, filter.GetLimit())
	query += ` LIMIT ` + placeholder(len(args))
	args = append(args, filter.GetOffset())
	query += ` OFFSET ` + placeholder(len(args))
	return query, args
}

// sqlxNamedExec runs a named statement against the ambient querier
func sqlxNamedExec(ctx context.Context, client *postgres.Client, query string, arg any) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, client.Querier(ctx), query, arg)
}

func selectList(ctx context.Context, client *postgres.Client, dest any, query string, args ...any) error {
	return client.Querier(ctx).SelectContext(ctx, dest, query, args...)
}

func wrapReadErr(err error, msg string) error {
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("Database read failed").
		Mark(ierr.ErrSystem)
}

func wrapWriteErr(err error, msg string) error {
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("Database write failed").
		Mark(ierr.ErrSystem)
}
