package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IngestDir ingests every regular file in dir, in name order, as kind.
// Loaded files are moved to archiveDir under the same name. One file's
// failure doesn't stop the rest; check each Result.
func (in *Ingestor) IngestDir(ctx context.Context, dir string, kind Kind, archiveDir string) ([]Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		src := Source{Path: filepath.Join(dir, e.Name()), Kind: kind}
		if archiveDir != "" {
			src.ArchivePath = filepath.Join(archiveDir, e.Name())
		}
		results = append(results, in.Ingest(ctx, src))
	}
	return results, nil
}
