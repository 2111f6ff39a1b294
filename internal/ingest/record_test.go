package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatch(t *testing.T) {
	b, err := ParseBatch([]byte(`{"inserts":[{"id":"C1"}],"updates":[{"id":"C2"},{"id":"C3"}]}`))
	require.NoError(t, err)
	assert.Len(t, b.Inserts, 1)
	assert.Len(t, b.Updates, 2)

	b, err = ParseBatch([]byte(" \n[{\"id\":\"C1\"},{\"id\":\"C2\"}]"))
	require.NoError(t, err)
	assert.Len(t, b.Inserts, 2, "bare array is an inserts-only batch")
	assert.Empty(t, b.Updates)

	b, err = ParseBatch([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, b.Inserts)
}

func TestParseBatch_Errors(t *testing.T) {
	for _, doc := range []string{"", "   ", `{"inserts":`, `{"inserts":{}}`, `"text"`} {
		_, err := ParseBatch([]byte(doc))
		assert.ErrorIs(t, err, ErrParse, "doc %q", doc)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("messages")
	require.NoError(t, err)
	assert.Equal(t, KindMessages, k)

	_, err = ParseKind("emojis")
	assert.Error(t, err)
}
