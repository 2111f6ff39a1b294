package ingest

import (
	"fmt"
	"strings"
)

// Tuple is one row of column values in a table's canonical column order.
type Tuple []any

// Column describes one archive column as the loader writes it.
type Column struct {
	Name string
	// Type is the SQL type used to cast VALUES placeholders.
	Type string
	// InsertDefault replaces a NULL value on insert.
	InsertDefault string
	// KeepOnNull makes an update leave the stored value alone when the
	// incoming value is NULL (the record didn't carry the field).
	KeepOnNull bool
}

// Parent restricts inserts to rows whose parent already exists.
type Parent struct {
	Table string
	// On maps child columns to parent columns.
	On [][2]string
}

// Table is an archive table plus the rules the planner applies to it.
type Table struct {
	Name    string
	Columns []Column
	Key     []string
	Mutable []string
	Parent  *Parent
}

var (
	UsersTable = &Table{
		Name: "sl_users",
		Columns: []Column{
			{Name: "id", Type: "text"},
			{Name: "name", Type: "text"},
			{Name: "full_name", Type: "text"},
			{Name: "description", Type: "text"},
			{Name: "avatar_id", Type: "text", KeepOnNull: true},
			{Name: "tz_offset", Type: "text"},
		},
		Key:     []string{"id"},
		Mutable: []string{"name", "full_name", "description", "avatar_id", "tz_offset"},
	}

	ChannelsTable = &Table{
		Name: "sl_channels",
		Columns: []Column{
			{Name: "id", Type: "text"},
			{Name: "name", Type: "text"},
			{Name: "description", Type: "text"},
		},
		Key:     []string{"id"},
		Mutable: []string{"name", "description"},
	}

	MessagesTable = &Table{
		Name: "sl_messages",
		Columns: []Column{
			{Name: "id", Type: "text"},
			{Name: "channel_id", Type: "text"},
			{Name: "thread_id", Type: "text"},
			{Name: "user_id", Type: "text"},
			{Name: "content", Type: "text", InsertDefault: "''", KeepOnNull: true},
			{Name: "deleted", Type: "boolean", InsertDefault: "false", KeepOnNull: true},
		},
		Key:     []string{"id", "channel_id"},
		Mutable: []string{"content", "deleted"},
	}

	EmojisTable = &Table{
		Name: "sl_emojis",
		Columns: []Column{
			{Name: "id", Type: "text"},
			{Name: "url", Type: "text"},
		},
		Key: []string{"id"},
	}

	FilesTable = &Table{
		Name: "sl_files",
		Columns: []Column{
			{Name: "message_id", Type: "text"},
			{Name: "channel_id", Type: "text"},
			{Name: "url", Type: "text"},
		},
		Key: []string{"message_id", "channel_id", "url"},
		Parent: &Parent{
			Table: "sl_messages",
			On:    [][2]string{{"message_id", "id"}, {"channel_id", "channel_id"}},
		},
	}

	ReactionsTable = &Table{
		Name: "sl_reactions",
		Columns: []Column{
			{Name: "message_id", Type: "text"},
			{Name: "channel_id", Type: "text"},
			{Name: "user_id", Type: "text"},
			{Name: "emoji_id", Type: "text"},
		},
		Key: []string{"message_id", "channel_id", "user_id", "emoji_id"},
		Parent: &Parent{
			Table: "sl_messages",
			On:    [][2]string{{"message_id", "id"}, {"channel_id", "channel_id"}},
		},
	}
)

func (t *Table) column(name string) (int, Column) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, c
		}
	}
	panic(fmt.Sprintf("ingest: table %s has no column %s", t.Name, name))
}

// Op is the write policy of a statement.
type Op string

const (
	// OpInsert inserts rows whose key is absent and ignores the rest.
	OpInsert Op = "insert"
	// OpUpdate overwrites mutable columns of rows that exist. Missing rows
	// are silently skipped.
	OpUpdate Op = "update"
)

// Statement is one set-oriented write shape: a table and a policy.
type Statement struct {
	Table *Table
	Op    Op
}

func (s Statement) String() string {
	return s.Table.Name + "/" + string(s.Op)
}

// Columns returns the columns a row of this statement carries, in order.
// Inserts carry every column; updates carry the key then the mutable columns.
func (s Statement) Columns() []Column {
	if s.Op == OpInsert {
		return s.Table.Columns
	}
	cols := make([]Column, 0, len(s.Table.Key)+len(s.Table.Mutable))
	for _, name := range s.Table.Key {
		_, c := s.Table.column(name)
		cols = append(cols, c)
	}
	for _, name := range s.Table.Mutable {
		_, c := s.Table.column(name)
		cols = append(cols, c)
	}
	return cols
}

// Project maps a canonical table tuple onto this statement's columns.
func (s Statement) Project(t Tuple) Tuple {
	if s.Op == OpInsert {
		return t
	}
	cols := s.Columns()
	out := make(Tuple, len(cols))
	for i, c := range cols {
		idx, _ := s.Table.column(c.Name)
		out[i] = t[idx]
	}
	return out
}

// KeyOf returns a comparable key for a projected row.
func (s Statement) KeyOf(row Tuple) string {
	cols := s.Columns()
	var b strings.Builder
	for _, name := range s.Table.Key {
		for i, c := range cols {
			if c.Name == name {
				fmt.Fprintf(&b, "%v\x00", row[i])
				break
			}
		}
	}
	return b.String()
}

// Render builds the SQL and bind arguments for rows. The existence check is
// part of the statement itself (ON CONFLICT / UPDATE ... FROM), so concurrent
// runs racing on the same keys can't both insert.
func (s Statement) Render(rows []Tuple) (string, []any) {
	cols := s.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	args := make([]any, 0, len(rows)*len(cols))
	var values strings.Builder
	for r, row := range rows {
		if r > 0 {
			values.WriteString(", ")
		}
		values.WriteByte('(')
		for i, c := range cols {
			if i > 0 {
				values.WriteString(", ")
			}
			args = append(args, row[i])
			fmt.Fprintf(&values, "$%d::%s", len(args), c.Type)
		}
		values.WriteByte(')')
	}
	source := fmt.Sprintf("(VALUES %s) AS v (%s)", values.String(), strings.Join(names, ", "))

	if s.Op == OpUpdate {
		return s.renderUpdate(source), args
	}
	return s.renderInsert(source, cols, names), args
}

func (s Statement) renderInsert(source string, cols []Column, names []string) string {
	selects := make([]string, len(cols))
	for i, c := range cols {
		if c.InsertDefault != "" {
			selects[i] = fmt.Sprintf("COALESCE(v.%s, %s)", c.Name, c.InsertDefault)
		} else {
			selects[i] = "v." + c.Name
		}
	}

	var q strings.Builder
	fmt.Fprintf(&q, "INSERT INTO %s (%s)\nSELECT %s\nFROM %s",
		s.Table.Name, strings.Join(names, ", "), strings.Join(selects, ", "), source)

	if p := s.Table.Parent; p != nil {
		conds := make([]string, len(p.On))
		for i, on := range p.On {
			conds[i] = fmt.Sprintf("p.%s = v.%s", on[1], on[0])
		}
		fmt.Fprintf(&q, "\nWHERE EXISTS (SELECT 1 FROM %s p WHERE %s)", p.Table, strings.Join(conds, " AND "))
	}

	fmt.Fprintf(&q, "\nON CONFLICT (%s) DO NOTHING", strings.Join(s.Table.Key, ", "))
	return q.String()
}

func (s Statement) renderUpdate(source string) string {
	sets := make([]string, len(s.Table.Mutable))
	for i, name := range s.Table.Mutable {
		_, c := s.Table.column(name)
		if c.KeepOnNull {
			sets[i] = fmt.Sprintf("%s = COALESCE(v.%s, t.%s)", name, name, name)
		} else {
			sets[i] = fmt.Sprintf("%s = v.%s", name, name)
		}
	}
	conds := make([]string, len(s.Table.Key))
	for i, k := range s.Table.Key {
		conds[i] = fmt.Sprintf("t.%s = v.%s", k, k)
	}
	return fmt.Sprintf("UPDATE %s AS t\nSET %s\nFROM %s\nWHERE %s",
		s.Table.Name, strings.Join(sets, ", "), source, strings.Join(conds, " AND "))
}
