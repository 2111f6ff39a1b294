package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

// stubTx records every statement. execFunc, when set, decides the result;
// otherwise each statement reports one affected row per VALUES tuple.
type stubTx struct {
	execFunc func(call execCall, n int) (pgconn.CommandTag, error)

	calls      []execCall
	committed  bool
	rolledBack bool
	commitErr  error
}

func (s *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	call := execCall{sql: sql, args: args}
	s.calls = append(s.calls, call)
	if s.execFunc != nil {
		return s.execFunc(call, len(s.calls)-1)
	}
	verb := "INSERT 0"
	if strings.HasPrefix(sql, "UPDATE") {
		verb = "UPDATE"
	}
	return pgconn.NewCommandTag(fmt.Sprintf("%s %d", verb, strings.Count(sql, "), (")+1)), nil
}

func (s *stubTx) Commit(ctx context.Context) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = true
	return nil
}

func (s *stubTx) Rollback(ctx context.Context) error {
	if s.committed {
		return errors.New("tx is closed")
	}
	s.rolledBack = true
	return nil
}

type stubStore struct {
	tx       *stubTx
	beginErr error
	begins   int
}

func (s *stubStore) Begin(ctx context.Context) (Tx, error) {
	s.begins++
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}

type stubArchiver struct {
	err   error
	moves [][2]string
}

func (a *stubArchiver) Move(ctx context.Context, src, dst string) error {
	if a.err != nil {
		return a.err
	}
	a.moves = append(a.moves, [2]string{src, dst})
	return nil
}
