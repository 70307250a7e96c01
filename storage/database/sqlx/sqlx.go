// Package sqlxrepos implements the core repositories on PostgreSQL,
// building queries with squirrel and scanning rows with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
)

// psql builds queries with postgres $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// getExec returns the service-provided executor if any, the repository's
// default otherwise. Services pass a transaction here to scope several
// writes to one unit of work.
func getExec(dflt core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return dflt
}

func queryAll(ctx context.Context, exec core.DBExecutor, q sq.SelectBuilder, dest interface{}) error {
	stmt, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	rows, err := exec.QueryContext(ctx, stmt, args...)
	if err != nil {
		return errors.Wrap(err, "querying")
	}
	defer func() { _ = rows.Close() }()
	return errors.Wrap(sqlx.StructScan(rows, dest), "scanning rows")
}

func queryExists(ctx context.Context, exec core.DBExecutor, q sq.SelectBuilder) (bool, error) {
	stmt, args, err := q.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	var exists bool
	if err = exec.QueryRowContext(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "querying existence")
	}
	return exists, nil
}

func execStmt(ctx context.Context, exec core.DBExecutor, q sq.Sqlizer) (sql.Result, error) {
	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, stmt, args...)
	return res, errors.Wrap(err, "executing")
}
