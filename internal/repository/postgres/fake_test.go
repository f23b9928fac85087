package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recorder captures Exec and Query calls. Queries always fail, so only the SQL is observable.
type recorder struct {
	execs     []string
	args      [][]any
	execErr   error
	queries   []string
	queryArgs [][]any
}

func (r *recorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.execs = append(r.execs, sql)
	r.args = append(r.args, args)
	return pgconn.CommandTag{}, r.execErr
}

func (r *recorder) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.queries = append(r.queries, sql)
	r.queryArgs = append(r.queryArgs, args)
	return nil, errors.New("recorder: queries return no rows")
}

func (r *recorder) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("QueryRow not supported by recorder")
}

func (r *recorder) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("SendBatch not supported by recorder")
}
