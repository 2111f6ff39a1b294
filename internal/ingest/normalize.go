package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// A Field is "required" when its key appeared, null or not.
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		return f.Interface().(Field[string]).Present
	}, Field[string]{})
	return v
}

// Rows is one normalized record: the primary entity tuple plus whatever
// secondary tuples it carried.
type Rows struct {
	Primary   Tuple
	Emojis    []Tuple
	Files     []Tuple
	Reactions []Tuple
}

// Normalizer turns one raw record into canonical tuples for its kind.
type Normalizer func(raw json.RawMessage) (Rows, error)

// NormalizerFor returns the normalizer for kind.
func NormalizerFor(kind Kind) Normalizer {
	switch kind {
	case KindUsers:
		return NormalizeUser
	case KindChannels:
		return NormalizeChannel
	case KindMessages:
		return NormalizeMessage
	}
	panic(fmt.Sprintf("ingest: no normalizer for kind %q", kind))
}

// PrimaryTable returns the table records of kind are written to.
func PrimaryTable(kind Kind) *Table {
	switch kind {
	case KindUsers:
		return UsersTable
	case KindChannels:
		return ChannelsTable
	case KindMessages:
		return MessagesTable
	}
	panic(fmt.Sprintf("ingest: no table for kind %q", kind))
}

func decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Namespace()
			}
			return fmt.Errorf("%w: missing or empty %s", ErrMalformedRecord, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return nil
}

// nullable turns an optional pointer into a bind value, NULL when absent.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func NormalizeUser(raw json.RawMessage) (Rows, error) {
	var u RawUser
	if err := decode(raw, &u); err != nil {
		return Rows{}, err
	}
	return Rows{Primary: Tuple{
		u.ID,
		u.Name,
		nullable(u.FullName),
		nullable(u.Title),
		nullable(u.AvatarID),
		nullable(u.Offset),
	}}, nil
}

func NormalizeChannel(raw json.RawMessage) (Rows, error) {
	var c RawChannel
	if err := decode(raw, &c); err != nil {
		return Rows{}, err
	}
	return Rows{Primary: Tuple{c.ID, c.Name, nullable(c.Description)}}, nil
}

// NormalizeMessage flattens a message and its files and reactions. Files
// and reactions are deduplicated here so every tuple is its own fingerprint.
func NormalizeMessage(raw json.RawMessage) (Rows, error) {
	var m RawMessage
	if err := decode(raw, &m); err != nil {
		return Rows{}, err
	}

	rows := Rows{Primary: Tuple{
		m.ID,
		m.Channel,
		nullable(m.Thread),
		nullable(m.User.Value),
		nullable(m.Content),
		nullable(m.Deleted),
	}}

	seenFiles := make(map[string]struct{}, len(m.Files))
	for _, url := range m.Files {
		if _, ok := seenFiles[url]; ok {
			continue
		}
		seenFiles[url] = struct{}{}
		rows.Files = append(rows.Files, Tuple{m.ID, m.Channel, url})
	}

	// Map iteration order is random; sort emoji ids so the generated SQL is
	// stable from run to run.
	emojiIDs := make([]string, 0, len(m.Reactions))
	for id := range m.Reactions {
		emojiIDs = append(emojiIDs, id)
	}
	slices.Sort(emojiIDs)

	for _, emojiID := range emojiIDs {
		r := m.Reactions[emojiID]
		rows.Emojis = append(rows.Emojis, Tuple{emojiID, r.URL})

		seenUsers := make(map[string]struct{}, len(r.Users))
		for _, userID := range r.Users {
			if _, ok := seenUsers[userID]; ok {
				continue
			}
			seenUsers[userID] = struct{}{}
			rows.Reactions = append(rows.Reactions, Tuple{m.ID, m.Channel, userID, emojiID})
		}
	}
	return rows, nil
}
