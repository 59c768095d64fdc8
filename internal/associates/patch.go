package associates

import (
	"encoding/json"
	"errors"
)

var errUnknownPatchOp = errors.New("associates: unknown patch op")

// PatchOp selects how a FieldPatch changes its field.
type PatchOp int

const (
	// PatchInsert writes a new field and fails with ErrFieldExists if the name is taken.
	PatchInsert PatchOp = iota + 1
	// PatchMerge overwrites the provided sub-fields of an existing field.
	PatchMerge
	// PatchRemove deletes the field from the document.
	PatchRemove
)

func (op PatchOp) String() string {
	switch op {
	case PatchInsert:
		return "insert"
	case PatchMerge:
		return "merge"
	case PatchRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// FieldPatch is a targeted change to one field of the document.
// Nil Value or LikeCount leave the stored sub-field as it is on merge.
type FieldPatch struct {
	Op        PatchOp
	Value     *string
	LikeCount *int64
}

// InsertPatch creates a patch that adds rec under a new name.
func InsertPatch(rec Record) FieldPatch {
	return FieldPatch{Op: PatchInsert, Value: &rec.Value, LikeCount: &rec.LikeCount}
}

// MergePatch creates a patch that updates the given sub-fields of an existing record.
func MergePatch(value *string, likeCount *int64) FieldPatch {
	return FieldPatch{Op: PatchMerge, Value: value, LikeCount: likeCount}
}

// RemovePatch creates a tombstone patch.
func RemovePatch() FieldPatch {
	return FieldPatch{Op: PatchRemove}
}

// Apply computes the new stored form of a field from its current stored form.
// present reports whether the field currently exists. A nil result with a nil
// error means the field must be removed.
func (p FieldPatch) Apply(current json.RawMessage, present bool) (json.RawMessage, error) {
	switch p.Op {
	case PatchInsert:
		if present {
			return nil, ErrFieldExists
		}

		return EncodeRecord(p.merge(Record{}))
	case PatchMerge:
		if !present {
			return nil, ErrFieldMissing
		}

		rec, err := DecodeRecord(current)
		if err != nil {
			return nil, err
		}

		return EncodeRecord(p.merge(rec))
	case PatchRemove:
		if !present {
			return nil, ErrFieldMissing
		}

		return nil, nil
	default:
		return nil, errUnknownPatchOp
	}
}

func (p FieldPatch) merge(rec Record) Record {
	if p.Value != nil {
		rec.Value = *p.Value
	}

	if p.LikeCount != nil {
		rec.LikeCount = *p.LikeCount
	}

	return rec
}

// Sets returns the sub-fields the patch provides, keyed by their stored names.
func (p FieldPatch) Sets() map[string]any {
	sets := make(map[string]any, 2)

	if p.Value != nil {
		sets["value"] = *p.Value
	}

	if p.LikeCount != nil {
		sets["likeCount"] = *p.LikeCount
	}

	return sets
}
