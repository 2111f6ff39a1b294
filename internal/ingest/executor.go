package ingest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultChunkSize bounds the rows per statement. Postgres caps bind
// parameters at 65535; 100 rows of the widest table stays far below that.
const DefaultChunkSize = 100

// StepReport is what one executed step did.
type StepReport struct {
	Statement Statement
	Rows      int
	Chunks    int
	Affected  int64
}

// Report summarizes an executed plan.
type Report struct {
	Steps []StepReport
}

// Rows returns the number of rows submitted.
func (r *Report) Rows() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Rows
	}
	return n
}

// Affected returns the number of rows the store reported as written.
// Rows skipped by insert-if-absent or missing update targets don't count.
func (r *Report) Affected() int64 {
	var n int64
	for _, s := range r.Steps {
		n += s.Affected
	}
	return n
}

// Executor writes a plan in fixed-size chunks, one set-oriented statement
// per chunk, sequentially on the caller's transaction.
type Executor struct {
	chunkSize int
	tracer    trace.Tracer
}

func NewExecutor(chunkSize int) *Executor {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Executor{
		chunkSize: chunkSize,
		tracer:    otel.Tracer("github.com/lalith-99/chatarchive/internal/ingest"),
	}
}

// Execute runs every step of plan in order. The first failing chunk stops the
// run; the error wraps ErrStore and the caller is expected to roll back.
func (e *Executor) Execute(ctx context.Context, tx Execer, plan *Plan) (*Report, error) {
	report := &Report{}
	for _, step := range plan.Steps {
		sr, err := e.executeStep(ctx, tx, step)
		report.Steps = append(report.Steps, sr)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (e *Executor) executeStep(ctx context.Context, tx Execer, step Step) (StepReport, error) {
	sr := StepReport{Statement: step.Statement, Rows: len(step.Rows)}
	for start := 0; start < len(step.Rows); start += e.chunkSize {
		end := min(start+e.chunkSize, len(step.Rows))
		affected, err := e.executeChunk(ctx, tx, step.Statement, step.Rows[start:end], sr.Chunks)
		if err != nil {
			return sr, fmt.Errorf("%w: %s chunk %d (rows %d-%d): %w",
				ErrStore, step.Statement, sr.Chunks, start, end-1, err)
		}
		sr.Chunks++
		sr.Affected += affected
	}
	return sr, nil
}

func (e *Executor) executeChunk(ctx context.Context, tx Execer, stmt Statement, rows []Tuple, index int) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "ingest.chunk", trace.WithAttributes(
		attribute.String("db.sql.table", stmt.Table.Name),
		attribute.String("ingest.op", string(stmt.Op)),
		attribute.Int("ingest.chunk", index),
		attribute.Int("ingest.rows", len(rows)),
	))
	defer span.End()

	sql, args := stmt.Render(rows)
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	return tag.RowsAffected(), nil
}
