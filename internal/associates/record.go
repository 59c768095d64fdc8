package associates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errEmptyRecord = errors.New("associates: empty record")

// Record is a single friend entry stored under its name.
type Record struct {
	Value     string `json:"value"`
	LikeCount int64  `json:"likeCount"`
}

// UnmarshalJSON accepts both the current object shape and the legacy shape,
// where the field held the bare value and no like count.
func (r *Record) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errEmptyRecord
	}

	if data[0] != '{' {
		*r = Record{Value: scalarString(data)}

		return nil
	}

	var obj struct {
		Value     json.RawMessage `json:"value"`
		LikeCount *int64          `json:"likeCount"`
	}

	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("associates: decode record: %w", err)
	}

	rec := Record{}
	if len(obj.Value) > 0 {
		rec.Value = scalarString(obj.Value)
	}

	if obj.LikeCount != nil {
		rec.LikeCount = *obj.LikeCount
	}

	*r = rec

	return nil
}

// ValueFromJSON converts a JSON value from a request into a record value.
// It reports false for an absent or null value. Zero, false and the empty
// string are defined values.
func ValueFromJSON(raw []byte) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	return scalarString(raw), true
}

// scalarString renders a raw JSON scalar as the string value of a record.
// Strings are unquoted, null becomes empty and anything else keeps its literal text.
func scalarString(raw []byte) string {
	raw = bytes.TrimSpace(raw)

	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}

	return string(raw)
}

// Document is the content of the shared associates document.
type Document map[string]Record

// Has reports whether name is a key of the document.
func (d Document) Has(name string) bool {
	_, ok := d[name]

	return ok
}

// Snapshot is the result of reading the document from a Repository.
type Snapshot struct {
	Exists   bool
	Document Document
}

// NamedRecord is a record together with the name it is stored under.
type NamedRecord struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	LikeCount int64  `json:"likeCount"`
}

// EncodeRecord serializes a record in the current field shape.
func EncodeRecord(rec Record) (json.RawMessage, error) {
	return json.Marshal(rec)
}

// DecodeRecord parses a stored field, tolerating the legacy shape.
func DecodeRecord(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, err
	}

	return rec, nil
}

// DecodeDocument parses the raw fields of a stored document.
func DecodeDocument(fields map[string]json.RawMessage) (Document, error) {
	doc := make(Document, len(fields))

	for name, raw := range fields {
		rec, err := DecodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}

		doc[name] = rec
	}

	return doc, nil
}
