package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementRender_InsertIsConditionalOnKey(t *testing.T) {
	stmt := Statement{Table: UsersTable, Op: OpInsert}
	rows := []Tuple{
		{"U1", "alice", "Alice A", "eng", "a1", "UTC-05:00"},
		{"U2", "bob", nil, nil, nil, nil},
	}

	sql, args := stmt.Render(rows)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO sl_users (id, name, full_name, description, avatar_id, tz_offset)"))
	assert.Contains(t, sql, "($1::text, $2::text, $3::text, $4::text, $5::text, $6::text), ($7::text,")
	assert.Contains(t, sql, "AS v (id, name, full_name, description, avatar_id, tz_offset)")
	assert.True(t, strings.HasSuffix(sql, "ON CONFLICT (id) DO NOTHING"))
	assert.NotContains(t, sql, "WHERE EXISTS")
	require.Len(t, args, 12)
	assert.Equal(t, "U1", args[0])
	assert.Equal(t, "U2", args[6])
	assert.Nil(t, args[8])
}

func TestStatementRender_InsertDefaultsAndParentGuard(t *testing.T) {
	sql, _ := Statement{Table: MessagesTable, Op: OpInsert}.Render([]Tuple{{"M1", "C1", nil, "U1", nil, nil}})
	assert.Contains(t, sql, "COALESCE(v.content, '')")
	assert.Contains(t, sql, "COALESCE(v.deleted, false)")
	assert.Contains(t, sql, "$6::boolean")
	assert.Contains(t, sql, "ON CONFLICT (id, channel_id) DO NOTHING")

	sql, _ = Statement{Table: ReactionsTable, Op: OpInsert}.Render([]Tuple{{"M1", "C1", "U1", "E1"}})
	assert.Contains(t, sql, "WHERE EXISTS (SELECT 1 FROM sl_messages p WHERE p.id = v.message_id AND p.channel_id = v.channel_id)")
	assert.Contains(t, sql, "ON CONFLICT (message_id, channel_id, user_id, emoji_id) DO NOTHING")
}

func TestStatementRender_UpdateTouchesOnlyMutableColumns(t *testing.T) {
	stmt := Statement{Table: MessagesTable, Op: OpUpdate}
	row := stmt.Project(Tuple{"M1", "C1", "T1", "U1", "edited", true})
	assert.Equal(t, Tuple{"M1", "C1", "edited", true}, row)

	sql, args := stmt.Render([]Tuple{row})

	assert.True(t, strings.HasPrefix(sql, "UPDATE sl_messages AS t"))
	assert.Contains(t, sql, "SET content = COALESCE(v.content, t.content), deleted = COALESCE(v.deleted, t.deleted)")
	assert.Contains(t, sql, "AS v (id, channel_id, content, deleted)")
	assert.True(t, strings.HasSuffix(sql, "WHERE t.id = v.id AND t.channel_id = v.channel_id"))
	assert.NotContains(t, sql, "thread_id")
	assert.NotContains(t, sql, "archived_at")
	assert.Equal(t, []any{"M1", "C1", "edited", true}, args)
}

func TestStatementRender_UserUpdateOverwritesNullableFields(t *testing.T) {
	sql, _ := Statement{Table: UsersTable, Op: OpUpdate}.Render([]Tuple{{"U1", "alice", nil, nil, nil, nil}})
	assert.Contains(t, sql, "full_name = v.full_name")
	assert.Contains(t, sql, "avatar_id = COALESCE(v.avatar_id, t.avatar_id)")
	assert.NotContains(t, sql, "id = v.id,")
}

func TestStatementKeyOf(t *testing.T) {
	ins := Statement{Table: MessagesTable, Op: OpInsert}
	upd := Statement{Table: MessagesTable, Op: OpUpdate}
	full := Tuple{"M1", "C1", nil, "U1", "hi", nil}

	assert.Equal(t, ins.KeyOf(full), upd.KeyOf(upd.Project(full)))
	assert.NotEqual(t, ins.KeyOf(full), ins.KeyOf(Tuple{"M1", "C2", nil, "U1", "hi", nil}))
}
