package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is where a file's run stands.
type State string

const (
	StateReceived State = "received"
	StateParsed   State = "parsed"
	StateLoaded   State = "loaded"
	StateArchived State = "archived"
	StateFailed   State = "failed"
)

// Source names one batch file.
type Source struct {
	Path string
	Kind Kind
	// ArchivePath is where the file goes after a successful load. Empty
	// leaves it in place.
	ArchivePath string
}

// Result is the terminal report of one run. A failed run records the last
// state it reached in FailedAt.
type Result struct {
	File     string
	Kind     Kind
	State    State
	FailedAt State
	Err      error

	Inserts  int
	Updates  int
	Rows     int
	Affected int64
	Skipped  int
	Duration time.Duration
}

func (r *Result) OK() bool {
	return r.State != StateFailed
}

func (r *Result) fail(err error) {
	r.FailedAt = r.State
	r.State = StateFailed
	r.Err = err
}

type Option func(*Ingestor)

// WithArchiver sets the archiving collaborator. Without one, files are
// never moved.
func WithArchiver(a Archiver) Option {
	return func(in *Ingestor) { in.archiver = a }
}

// WithOnLoaded registers a callback run after a batch has been committed,
// before archiving.
func WithOnLoaded(fn func(ctx context.Context, kind Kind)) Option {
	return func(in *Ingestor) { in.onLoaded = fn }
}

// Ingestor drives one file at a time through parse, load and archive.
// Errors never escape Run or Ingest; they're logged and returned in the
// Result so a bad file can't take the host down.
type Ingestor struct {
	store    Store
	loader   *Loader
	archiver Archiver
	onLoaded func(ctx context.Context, kind Kind)
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewIngestor(store Store, loader *Loader, logger *zap.Logger, opts ...Option) *Ingestor {
	in := &Ingestor{
		store:  store,
		loader: loader,
		logger: logger,
		tracer: otel.Tracer("github.com/lalith-99/chatarchive/internal/ingest"),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest reads src from disk and loads it with the loader for its kind.
func (in *Ingestor) Ingest(ctx context.Context, src Source) Result {
	read := func() ([]byte, error) {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return data, nil
	}
	return in.run(ctx, src, read, in.loader.For(src.Kind))
}

// Run loads data, the contents of src, with load.
func (in *Ingestor) Run(ctx context.Context, src Source, data []byte, load LoadFunc) Result {
	return in.run(ctx, src, func() ([]byte, error) { return data, nil }, load)
}

func (in *Ingestor) run(ctx context.Context, src Source, read func() ([]byte, error), load LoadFunc) (res Result) {
	start := time.Now()
	res = Result{File: src.Path, Kind: src.Kind, State: StateReceived}

	ctx, span := in.tracer.Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("ingest.file", src.Path),
		attribute.String("ingest.kind", string(src.Kind)),
	))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			res.fail(fmt.Errorf("panic: %v", p))
		}
		res.Duration = time.Since(start)
		in.finish(span, &res)
	}()

	data, err := read()
	if err != nil {
		res.fail(err)
		return res
	}

	batch, err := ParseBatch(data)
	if err != nil {
		res.fail(err)
		return res
	}
	res.State = StateParsed
	res.Inserts, res.Updates = len(batch.Inserts), len(batch.Updates)

	outcome, err := in.loadInTx(ctx, load, batch)
	if outcome != nil {
		res.Skipped = len(outcome.Skipped)
		for _, s := range outcome.Skipped {
			in.logger.Warn("skipped malformed record",
				zap.String("file", src.Path),
				zap.String("kind", string(src.Kind)),
				zap.String("list", s.List),
				zap.Int("index", s.Index),
				zap.Error(s.Err),
			)
		}
	}
	if err != nil {
		res.fail(err)
		return res
	}
	// Counts only mean anything once committed.
	res.Rows = outcome.Report.Rows()
	res.Affected = outcome.Report.Affected()
	res.State = StateLoaded
	for range res.Skipped {
		recordSkipped(src.Kind)
	}
	for _, s := range outcome.Report.Steps {
		recordRows(s.Statement, s.Affected)
	}

	if in.onLoaded != nil {
		in.onLoaded(ctx, src.Kind)
	}

	if in.archiver == nil || src.ArchivePath == "" {
		return res
	}
	if err := in.archiver.Move(ctx, src.Path, src.ArchivePath); err != nil {
		res.fail(fmt.Errorf("archive: %w", err))
		return res
	}
	res.State = StateArchived
	return res
}

// loadInTx runs load on a fresh transaction and commits it. The transaction
// is rolled back on every other exit path, panics included.
func (in *Ingestor) loadInTx(ctx context.Context, load LoadFunc, batch *Batch) (*Outcome, error) {
	tx, err := in.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrStore, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			in.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	outcome, err := load(ctx, tx, batch)
	if err != nil {
		return outcome, err
	}
	if outcome == nil {
		outcome = &Outcome{Report: &Report{}}
	}
	if outcome.Report == nil {
		outcome.Report = &Report{}
	}
	if err := tx.Commit(ctx); err != nil {
		return outcome, fmt.Errorf("%w: commit: %w", ErrStore, err)
	}
	committed = true
	return outcome, nil
}

func (in *Ingestor) finish(span trace.Span, res *Result) {
	recordRun(res.Kind, res.State, res.Duration.Seconds())

	fields := []zap.Field{
		zap.String("file", res.File),
		zap.String("kind", string(res.Kind)),
		zap.String("state", string(res.State)),
		zap.Int("inserts", res.Inserts),
		zap.Int("updates", res.Updates),
		zap.Int("rows", res.Rows),
		zap.Int64("affected", res.Affected),
		zap.Int("skipped", res.Skipped),
		zap.Duration("duration", res.Duration),
	}
	span.SetAttributes(
		attribute.String("ingest.state", string(res.State)),
		attribute.Int("ingest.rows", res.Rows),
		attribute.Int64("ingest.affected", res.Affected),
	)

	if res.OK() {
		in.logger.Info("ingestion finished", fields...)
		return
	}
	span.RecordError(res.Err)
	span.SetStatus(codes.Error, res.Err.Error())
	fields = append(fields, zap.String("failed_at", string(res.FailedAt)), zap.Error(res.Err))
	in.logger.Error("ingestion failed", fields...)
}
