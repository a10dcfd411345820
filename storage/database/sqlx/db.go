package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	invalidTextRepr     = "22P02"
	connectionException = "08"
)

type txKey struct{}

// TxManager runs functions in a database transaction carried by the context.
type TxManager struct {
	db *sqlx.DB
}

var _ core.TxManager = (*TxManager)(nil) // interface compliance check

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapErr(err, "transaction", "", "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return mapErr(err, "transaction", "", "committing transaction")
	}
	return nil
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

// getExec returns the transaction carried by ctx, or db.
func getExec(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// forUpdate locks selected rows when ctx carries a transaction.
func forUpdate(ctx context.Context) string {
	if inTx(ctx) {
		return " FOR UPDATE"
	}
	return ""
}

// mapErr maps driver errors to core error kinds.
func mapErr(err error, resource, key, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundError(resource, key)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == uniqueViolation:
			return core.NewConflictError(resource, key, "already exists ("+pqErr.Constraint+")")
		case pqErr.Code == foreignKeyViolation:
			return core.NewNotFoundError(referencedResource(pqErr.Constraint), key)
		case pqErr.Code == invalidTextRepr:
			return core.NewNotFoundError(resource, key)
		case string(pqErr.Code.Class()) == connectionException:
			return core.NewUnavailableError(msg, err)
		}
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return core.NewUnavailableError(msg, err)
	}
	return errors.Wrap(err, msg)
}

// referencedResource guesses the referenced resource from a "<table>_<column>_fkey" constraint name.
func referencedResource(constraint string) string {
	name := strings.TrimSuffix(constraint, "_fkey")
	if i := strings.LastIndex(name, "_"); i >= 0 {
		name = name[:i]
	}
	for _, col := range []string{"student", "subject", "report", "enrollment"} {
		if strings.HasSuffix(name, col) {
			return col
		}
	}
	return "reference"
}

// where builds an AND-ed WHERE clause with "?" bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders ordering on the allowed fields (field -> column), falling back to def.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, def string) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		list = append(list, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(list) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(list, ", ") + ", " + def
}

// prefixColumns qualifies a comma separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// selectAll expands slice args, rebinds and selects into dest.
func selectAll(ctx context.Context, exec sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func getOne(ctx context.Context, exec sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

// checkAffected turns an update or delete that touched nothing into a NotFoundError.
func checkAffected(res sql.Result, resource, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected")
	}
	if n == 0 {
		return core.NewNotFoundError(resource, key)
	}
	return nil
}
