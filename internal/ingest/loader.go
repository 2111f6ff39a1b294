package ingest

import (
	"context"
	"encoding/json"
	"fmt"
)

// LoadFunc writes one parsed batch through tx.
type LoadFunc func(ctx context.Context, tx Execer, batch *Batch) (*Outcome, error)

// SkippedRecord is a malformed record dropped in lenient mode.
type SkippedRecord struct {
	List  string
	Index int
	Err   error
}

// Outcome is what a load did with a batch.
type Outcome struct {
	Skipped []SkippedRecord
	Report  *Report
}

// Loader builds per-kind load functions: normalize every record, plan the
// writes, execute the plan.
type Loader struct {
	executor      *Executor
	skipMalformed bool
}

// NewLoader returns a loader. With skipMalformed set, a record that fails
// normalization is left out and reported in the Outcome; otherwise it fails
// the whole batch.
func NewLoader(executor *Executor, skipMalformed bool) *Loader {
	return &Loader{executor: executor, skipMalformed: skipMalformed}
}

// For returns the load function for kind.
func (l *Loader) For(kind Kind) LoadFunc {
	if _, err := ParseKind(string(kind)); err != nil {
		return func(context.Context, Execer, *Batch) (*Outcome, error) {
			return nil, err
		}
	}
	normalize := NormalizerFor(kind)

	return func(ctx context.Context, tx Execer, batch *Batch) (*Outcome, error) {
		out := &Outcome{}
		planner := NewPlanner(kind)

		lists := []struct {
			name    string
			records []json.RawMessage
			add     func(Rows)
		}{
			{"inserts", batch.Inserts, planner.AddInsert},
			{"updates", batch.Updates, planner.AddUpdate},
		}
		for _, list := range lists {
			for i, raw := range list.records {
				rows, err := normalize(raw)
				if err != nil {
					if !l.skipMalformed {
						return out, fmt.Errorf("%s %s[%d]: %w", kind, list.name, i, err)
					}
					out.Skipped = append(out.Skipped, SkippedRecord{List: list.name, Index: i, Err: err})
					continue
				}
				list.add(rows)
			}
		}

		report, err := l.executor.Execute(ctx, tx, planner.Plan())
		out.Report = report
		if err != nil {
			return out, err
		}
		return out, nil
	}
}
