// Package ingest loads exported chat archive batches into Postgres.
//
// A batch file carries one entity kind and two lists, inserts and updates.
// Each run goes file -> parse -> normalize -> plan -> execute -> archive on a
// single transaction, and every write is idempotent so a re-delivered file
// can simply be processed again.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrParse means the batch document is not valid JSON. Fatal for the file.
	ErrParse = errors.New("parse error")
	// ErrMalformedRecord means a record lacks a structurally required field.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrStore wraps failures from the relational store.
	ErrStore = errors.New("store error")
)

// Kind is the entity kind a batch file carries.
type Kind string

const (
	KindUsers    Kind = "users"
	KindChannels Kind = "channels"
	KindMessages Kind = "messages"
)

// Kinds lists every kind in the order a full import should load them.
var Kinds = []Kind{KindChannels, KindUsers, KindMessages}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindUsers, KindChannels, KindMessages:
		return k, nil
	}
	return "", fmt.Errorf("unknown kind %q (want users, channels or messages)", s)
}

// Batch is one export document. Records stay raw until normalization so
// that a single bad record can be reported (or skipped) on its own.
type Batch struct {
	Inserts []json.RawMessage `json:"inserts"`
	Updates []json.RawMessage `json:"updates"`
}

// ParseBatch decodes a batch document. Older exports were a bare JSON array
// of records; those are read as an inserts-only batch.
func ParseBatch(data []byte) (*Batch, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}

	var b Batch
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &b.Inserts); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		return &b, nil
	}
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return &b, nil
}

// RawUser is a user record as exported upstream.
type RawUser struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	FullName *string `json:"fullName"`
	Title    *string `json:"title"`
	AvatarID *string `json:"avatarId"`
	Offset   *string `json:"offset"`
}

// RawChannel is a channel record as exported upstream.
type RawChannel struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

// RawMessage is a message record with its nested files and reactions.
// User must be present but may be null for anonymized authors.
type RawMessage struct {
	ID        string                 `json:"id" validate:"required"`
	Channel   string                 `json:"channel" validate:"required"`
	Thread    *string                `json:"thread"`
	User      Field[string]          `json:"user" validate:"required"`
	Content   *string                `json:"content"`
	Deleted   *bool                  `json:"deleted"`
	Files     []string               `json:"files" validate:"dive,required"`
	Reactions map[string]RawReaction `json:"reactions" validate:"dive,keys,required,endkeys,required"`
}

// RawReaction is one emoji group on a message.
type RawReaction struct {
	URL   string   `json:"url" validate:"required"`
	Users []string `json:"users" validate:"dive,required"`
}

// Field tracks whether a JSON key was present at all, which a plain pointer
// can't tell apart from an explicit null.
type Field[T any] struct {
	Present bool
	Value   *T
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Present = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}
