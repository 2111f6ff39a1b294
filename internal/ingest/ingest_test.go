package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestIngestor(store Store, skipMalformed bool, opts ...Option) (*Ingestor, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	loader := NewLoader(NewExecutor(DefaultChunkSize), skipMalformed)
	return NewIngestor(store, loader, zap.New(core), opts...), logs
}

const usersBatch = `{"inserts":[{"id":"U1","name":"alice","fullName":"Alice A","title":"eng","avatarId":"a1","offset":"UTC-05:00"}],"updates":[]}`

func TestIngestor_Run_Success(t *testing.T) {
	tx := &stubTx{}
	store := &stubStore{tx: tx}
	archiver := &stubArchiver{}
	var loadedKinds []Kind
	in, logs := newTestIngestor(store, false,
		WithArchiver(archiver),
		WithOnLoaded(func(_ context.Context, k Kind) { loadedKinds = append(loadedKinds, k) }),
	)

	src := Source{Path: "in/users.json", Kind: KindUsers, ArchivePath: "archive/users.json"}
	res := in.Run(context.Background(), src, []byte(usersBatch), in.loader.For(KindUsers))

	require.NoError(t, res.Err)
	assert.Equal(t, StateArchived, res.State)
	assert.True(t, res.OK())
	assert.Equal(t, 1, res.Inserts)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, int64(1), res.Affected)

	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	require.Len(t, tx.calls, 1)
	assert.Equal(t, []any{"U1", "alice", "Alice A", "eng", "a1", "UTC-05:00"}, tx.calls[0].args)

	assert.Equal(t, [][2]string{{"in/users.json", "archive/users.json"}}, archiver.moves)
	assert.Equal(t, []Kind{KindUsers}, loadedKinds)

	entries := logs.FilterMessage("ingestion finished").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "in/users.json", entries[0].ContextMap()["file"])
	assert.Equal(t, "archived", entries[0].ContextMap()["state"])
}

func TestIngestor_Run_NoArchivePathStopsAtLoaded(t *testing.T) {
	archiver := &stubArchiver{}
	in, _ := newTestIngestor(&stubStore{tx: &stubTx{}}, false, WithArchiver(archiver))

	res := in.Run(context.Background(), Source{Path: "users.json", Kind: KindUsers}, []byte(usersBatch), in.loader.For(KindUsers))
	assert.Equal(t, StateLoaded, res.State)
	assert.Empty(t, archiver.moves)
}

func TestIngestor_Run_ParseErrorIsSwallowed(t *testing.T) {
	store := &stubStore{tx: &stubTx{}}
	archiver := &stubArchiver{}
	in, logs := newTestIngestor(store, false, WithArchiver(archiver))

	res := in.Run(context.Background(), Source{Path: "bad.json", Kind: KindUsers, ArchivePath: "a/bad.json"}, []byte(`{"inserts": [`), in.loader.For(KindUsers))

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateReceived, res.FailedAt)
	assert.ErrorIs(t, res.Err, ErrParse)
	assert.Zero(t, store.begins)
	assert.Empty(t, archiver.moves)

	entries := logs.FilterMessage("ingestion failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bad.json", entries[0].ContextMap()["file"])
}

func TestIngestor_Run_MalformedRecordFailsWholeRun(t *testing.T) {
	tx := &stubTx{}
	archiver := &stubArchiver{}
	in, _ := newTestIngestor(&stubStore{tx: tx}, false, WithArchiver(archiver))

	data := `{"inserts":[
		{"id":"M1","channel":"C1","user":"U1","content":"ok"},
		{"channel":"C1","user":"U1","content":"no id"}
	]}`
	res := in.Run(context.Background(), Source{Path: "m.json", Kind: KindMessages, ArchivePath: "a/m.json"}, []byte(data), in.loader.For(KindMessages))

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateParsed, res.FailedAt)
	assert.ErrorIs(t, res.Err, ErrMalformedRecord)
	assert.Contains(t, res.Err.Error(), "inserts[1]")
	assert.Empty(t, tx.calls, "nothing written")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
	assert.Empty(t, archiver.moves)
}

func TestIngestor_Run_SkipMalformedLoadsTheRest(t *testing.T) {
	tx := &stubTx{}
	in, logs := newTestIngestor(&stubStore{tx: tx}, true)

	data := `{"inserts":[
		{"id":"M1","channel":"C1","user":"U1","content":"ok"},
		{"channel":"C1","user":"U1","content":"no id"}
	],"updates":[{"id":"M0","user":null}]}`
	res := in.Run(context.Background(), Source{Path: "m.json", Kind: KindMessages}, []byte(data), in.loader.For(KindMessages))

	require.NoError(t, res.Err)
	assert.Equal(t, StateLoaded, res.State)
	assert.Equal(t, 2, res.Skipped)
	assert.True(t, tx.committed)
	require.Len(t, tx.calls, 1)
	assert.Equal(t, "M1", tx.calls[0].args[0])

	skipped := logs.FilterMessage("skipped malformed record").All()
	require.Len(t, skipped, 2)
	assert.Equal(t, "inserts", skipped[0].ContextMap()["list"])
	assert.Equal(t, int64(1), skipped[0].ContextMap()["index"])
	assert.Equal(t, "updates", skipped[1].ContextMap()["list"])
}

func TestIngestor_Run_StoreErrorRollsBack(t *testing.T) {
	tx := &stubTx{commitErr: errors.New("serialization failure")}
	archiver := &stubArchiver{}
	in, _ := newTestIngestor(&stubStore{tx: tx}, false, WithArchiver(archiver))

	res := in.Run(context.Background(), Source{Path: "u.json", Kind: KindUsers, ArchivePath: "a/u.json"}, []byte(usersBatch), in.loader.For(KindUsers))

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrStore)
	assert.True(t, tx.rolledBack)
	assert.Empty(t, archiver.moves)
}

func TestIngestor_Run_BeginError(t *testing.T) {
	in, _ := newTestIngestor(&stubStore{beginErr: errors.New("pool closed")}, false)

	res := in.Run(context.Background(), Source{Path: "u.json", Kind: KindUsers}, []byte(usersBatch), in.loader.For(KindUsers))
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrStore)
}

func TestIngestor_Run_RecoversFromPanic(t *testing.T) {
	tx := &stubTx{}
	in, _ := newTestIngestor(&stubStore{tx: tx}, false)

	boom := func(context.Context, Execer, *Batch) (*Outcome, error) { panic("boom") }
	var res Result
	require.NotPanics(t, func() {
		res = in.Run(context.Background(), Source{Path: "u.json", Kind: KindUsers}, []byte(usersBatch), boom)
	})

	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Err.Error(), "panic: boom")
	assert.True(t, tx.rolledBack)
}

func TestIngestor_Run_ArchiveFailureLeavesDataCommitted(t *testing.T) {
	tx := &stubTx{}
	in, _ := newTestIngestor(&stubStore{tx: tx}, false, WithArchiver(&stubArchiver{err: errors.New("read-only fs")}))

	res := in.Run(context.Background(), Source{Path: "u.json", Kind: KindUsers, ArchivePath: "a/u.json"}, []byte(usersBatch), in.loader.For(KindUsers))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateLoaded, res.FailedAt)
	assert.True(t, tx.committed)
}

func TestIngestor_Ingest_MissingFile(t *testing.T) {
	store := &stubStore{tx: &stubTx{}}
	in, _ := newTestIngestor(store, false)

	res := in.Ingest(context.Background(), Source{Path: filepath.Join(t.TempDir(), "nope.json"), Kind: KindUsers})
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateReceived, res.FailedAt)
	assert.ErrorIs(t, res.Err, os.ErrNotExist)
	assert.Zero(t, store.begins)
}

func TestIngestor_IngestDir(t *testing.T) {
	src := t.TempDir()
	archive := filepath.Join(t.TempDir(), "done")
	require.NoError(t, os.WriteFile(filepath.Join(src, "002.json"), []byte(`{"inserts":[{"id":"C2","name":"random"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "001.json"), []byte(`{"inserts":[{"id":"C1","name":"general"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "003.json"), []byte(`not json`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".hidden"), []byte(`{}`), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "nested"), 0o755))

	tx := &stubTx{}
	in, _ := newTestIngestor(&stubStore{tx: tx}, false, WithArchiver(DirArchiver{}))

	results, err := in.IngestDir(context.Background(), src, KindChannels, archive)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, filepath.Join(src, "001.json"), results[0].File)
	assert.Equal(t, StateArchived, results[0].State)
	assert.Equal(t, StateArchived, results[1].State)
	assert.Equal(t, StateFailed, results[2].State)

	assert.FileExists(t, filepath.Join(archive, "001.json"))
	assert.FileExists(t, filepath.Join(archive, "002.json"))
	assert.NoFileExists(t, filepath.Join(src, "001.json"))
	assert.FileExists(t, filepath.Join(src, "003.json"), "failed file stays in place")

	require.Len(t, tx.calls, 2)
	assert.Equal(t, "C1", tx.calls[0].args[0])
}

func TestLoader_UnknownKind(t *testing.T) {
	in, _ := newTestIngestor(&stubStore{tx: &stubTx{}}, false)
	res := in.Run(context.Background(), Source{Path: "x.json", Kind: "emojis"}, []byte(`[]`), in.loader.For("emojis"))
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Err.Error(), "unknown kind")
}
