package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lalith-99/chatarchive/internal/cache"
	"github.com/lalith-99/chatarchive/internal/db"
	"github.com/lalith-99/chatarchive/internal/ingest"
	"github.com/lalith-99/chatarchive/internal/observ"
	"github.com/lalith-99/chatarchive/internal/trigger"
)

// One file is loaded at a time.
const cliMaxConns = 4

// pipeline is the ingestor with everything it needs connected.
type pipeline struct {
	ingestor *ingest.Ingestor
	closers  []func()
}

func newPipeline(ctx context.Context, e *env) (*pipeline, error) {
	p := &pipeline{}

	shutdownTracer, err := initTracer(ctx, e)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, func() { _ = shutdownTracer(context.Background()) })

	database, err := db.New(ctx, e.cfg.DatabaseURL, cliMaxConns, e.logger)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	p.closers = append(p.closers, database.Close)

	pageCache, err := cache.New(ctx, e.cfg.RedisURL, e.cfg.CacheTTL, e.logger)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("connect to cache: %w", err)
	}
	p.closers = append(p.closers, func() { _ = pageCache.Close() })

	loader := ingest.NewLoader(ingest.NewExecutor(e.cfg.Ingest.ChunkSize), e.cfg.Ingest.SkipMalformed)
	p.ingestor = ingest.NewIngestor(ingest.NewPoolStore(database.Pool()), loader, e.logger,
		ingest.WithArchiver(ingest.DirArchiver{}),
		ingest.WithOnLoaded(invalidate(pageCache, e.logger)),
	)
	return p, nil
}

func (p *pipeline) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func initTracer(ctx context.Context, e *env) (func(context.Context) error, error) {
	return observ.InitTracer(ctx, e.cfg.OTelEnabled, e.cfg.OTelEndpoint, "chatarchive-ingest", e.logger)
}

// cacheResources lists the API list caches a committed batch of kind
// makes stale. Messages carry reactions, which can add emojis.
func cacheResources(kind ingest.Kind) []string {
	switch kind {
	case ingest.KindMessages:
		return []string{"messages", "emojis"}
	default:
		return []string{string(kind)}
	}
}

type bumper interface {
	Bump(ctx context.Context, resources ...string) error
}

func invalidate(c bumper, logger *zap.Logger) func(ctx context.Context, kind ingest.Kind) {
	return func(ctx context.Context, kind ingest.Kind) {
		if err := c.Bump(ctx, cacheResources(kind)...); err != nil {
			// Stale pages expire with CACHE_TTL anyway.
			logger.Warn("cache invalidation failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

// eventSource turns a file-dropped event into an ingestion source. Without
// an explicit archive path the file goes to archiveDir under its own name.
func eventSource(ev trigger.Event, archiveDir string) (ingest.Source, error) {
	kind, err := ingest.ParseKind(ev.Kind)
	if err != nil {
		return ingest.Source{}, err
	}
	src := ingest.Source{Path: ev.Path, Kind: kind, ArchivePath: ev.ArchivePath}
	if src.ArchivePath == "" && archiveDir != "" {
		src.ArchivePath = filepath.Join(archiveDir, filepath.Base(ev.Path))
	}
	return src, nil
}

// report prints one line per result and fails if any run failed.
func report(out io.Writer, results []ingest.Result) error {
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
			fmt.Fprintf(out, "FAIL %s (%s) at %s: %v\n", r.File, r.Kind, r.FailedAt, r.Err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%s) %s: %d rows, %d affected, %d skipped in %s\n",
			r.File, r.Kind, r.State, r.Rows, r.Affected, r.Skipped, r.Duration.Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}
