package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/chatarchive/internal/repository"
)

// DBTX is the slice of pgx the stores use. *pgxpool.Pool and pgx.Tx both
// satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

// add appends cond, replacing each "?" with the next placeholder.
func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w *where) addIf(cond string, arg *string) {
	if arg != nil {
		w.add(cond, *arg)
	}
}

func (w *where) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders an ORDER BY clause. Client-facing column names are mapped
// through allowed; tiebreak keeps paging stable when the sort column has
// duplicates.
func orderBy(s *repository.Sort, allowed map[string]string, def, tiebreak string) (string, error) {
	if s == nil {
		return " ORDER BY " + def, nil
	}
	col, ok := allowed[s.Column]
	if !ok {
		return "", fmt.Errorf("%w: %q", repository.ErrInvalidSort, s.Column)
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s", col, dir, tiebreak), nil
}

// limitOffset appends LIMIT/OFFSET placeholders for q to w's args.
func limitOffset(w *where, q repository.ListQuery) (string, []any) {
	args := append([]any{}, w.args...)
	args = append(args, q.PerPage, q.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

// count runs SELECT count(*) over from with w's conditions.
func count(ctx context.Context, db DBTX, from string, w *where) (int64, error) {
	var total int64
	if err := db.QueryRow(ctx, "SELECT count(*) FROM "+from+w.String(), w.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
