package associates

import "context"

// DocumentKey addresses the shared document in the backing store.
type DocumentKey struct {
	Collection string
	ID         string
}

// DefaultDocumentKey is the well-known location of the associates document.
var DefaultDocumentKey = DocumentKey{Collection: "people", ID: "associates"}

func (k DocumentKey) String() string {
	return k.Collection + "/" + k.ID
}

// Repository reads and writes the single associates document.
//
// Implementations must apply each FieldPatch as one atomic conditional write:
// the presence check for the name and the write itself may not interleave
// with another patch of the same document.
type Repository interface {
	// Fetch reads the document. A missing document is reported through
	// Snapshot.Exists rather than an error.
	Fetch(ctx context.Context) (*Snapshot, error)

	// InitializeEmpty creates the document as an empty mapping if it does not exist.
	InitializeEmpty(ctx context.Context) error

	// ApplyFieldPatch changes exactly one field, leaving all others untouched.
	// It returns ErrDocumentMissing, ErrFieldExists or ErrFieldMissing when
	// the patch's condition does not hold at write time.
	ApplyFieldPatch(ctx context.Context, name string, patch FieldPatch) error
}
