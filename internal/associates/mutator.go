package associates

import (
	"context"
	"errors"
	"fmt"
)

// AddInput holds the fields of an add request. Nil means the field was omitted.
type AddInput struct {
	Name      *string
	Value     *string
	LikeCount *int64
}

// UpdateInput holds the fields of an update request. Nil means the field was omitted.
type UpdateInput struct {
	Name         *string
	NewValue     *string
	NewLikeCount *int64
}

// Mutator validates and applies add, update and delete operations to the
// fields of the associates document.
type Mutator struct {
	repo Repository
}

// NewMutator creates a Mutator backed by repo.
func NewMutator(repo Repository) *Mutator {
	return &Mutator{repo: repo}
}

// List returns the whole document. An absent or empty document is reported as not found.
func (m *Mutator) List(ctx context.Context) (Document, error) {
	snap, err := m.repo.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	if !snap.Exists || len(snap.Document) == 0 {
		return nil, notFound("No friends found")
	}

	return snap.Document, nil
}

// Add stores a new record under a name that is not yet used and returns the
// updated document. The document is created first if it does not exist.
func (m *Mutator) Add(ctx context.Context, in AddInput) (Document, error) {
	if in.Name == nil && in.Value == nil && in.LikeCount == nil {
		return nil, invalid("Invalid request: No data received")
	}

	// Value only has to be present: an empty string is a valid value.
	if in.Name == nil || *in.Name == "" || in.Value == nil {
		return nil, invalid("Both name and value are required")
	}

	rec := Record{Value: *in.Value}

	if in.LikeCount != nil {
		if *in.LikeCount < 0 {
			return nil, invalid("'likeCount' must not be negative")
		}

		rec.LikeCount = *in.LikeCount
	}

	name := *in.Name

	snap, err := m.repo.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	if !snap.Exists {
		if err := m.repo.InitializeEmpty(ctx); err != nil {
			return nil, fmt.Errorf("initialize document: %w", err)
		}
	} else if snap.Document.Has(name) {
		return nil, nameExists(name)
	}

	if err := m.repo.ApplyFieldPatch(ctx, name, InsertPatch(rec)); err != nil {
		if errors.Is(err, ErrFieldExists) {
			return nil, nameExists(name)
		}

		return nil, fmt.Errorf("insert %q: %w", name, err)
	}

	snap, err = m.repo.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	return snap.Document, nil
}

// Update overwrites the provided sub-fields of an existing record and keeps
// the others. It returns the merged record.
func (m *Mutator) Update(ctx context.Context, in UpdateInput) (*NamedRecord, error) {
	if in.Name == nil || *in.Name == "" {
		return nil, invalid("'name' is required")
	}

	if in.NewValue == nil && in.NewLikeCount == nil {
		return nil, invalid("At least one of 'newValue' or 'newLikeCount' is required")
	}

	if in.NewLikeCount != nil && *in.NewLikeCount < 0 {
		return nil, invalid("'newLikeCount' must not be negative")
	}

	name := *in.Name

	if err := m.requireField(ctx, name, "No data found in the database"); err != nil {
		return nil, err
	}

	if err := m.repo.ApplyFieldPatch(ctx, name, MergePatch(in.NewValue, in.NewLikeCount)); err != nil {
		return nil, m.patchError(name, "No data found in the database", err)
	}

	snap, err := m.repo.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	rec, ok := snap.Document[name]
	if !ok {
		// Removed by a concurrent delete after our write.
		return nil, personNotFound(name)
	}

	return &NamedRecord{Name: name, Value: rec.Value, LikeCount: rec.LikeCount}, nil
}

// Delete removes the field stored under name and returns a confirmation message.
func (m *Mutator) Delete(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", invalid("Name is required")
	}

	if err := m.requireField(ctx, name, "No data found"); err != nil {
		return "", err
	}

	if err := m.repo.ApplyFieldPatch(ctx, name, RemovePatch()); err != nil {
		return "", m.patchError(name, "No data found", err)
	}

	return fmt.Sprintf("Person %q successfully deleted", name), nil
}

// requireField checks the snapshot preconditions shared by update and delete.
func (m *Mutator) requireField(ctx context.Context, name, missingDocMsg string) error {
	snap, err := m.repo.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}

	if !snap.Exists {
		return notFound(missingDocMsg)
	}

	if !snap.Document.Has(name) {
		return personNotFound(name)
	}

	return nil
}

func (m *Mutator) patchError(name, missingDocMsg string, err error) error {
	switch {
	case errors.Is(err, ErrDocumentMissing):
		return notFound(missingDocMsg)
	case errors.Is(err, ErrFieldMissing):
		return personNotFound(name)
	default:
		return fmt.Errorf("patch %q: %w", name, err)
	}
}

func nameExists(name string) error {
	return conflict(fmt.Sprintf("The name %q already exists", name))
}

func personNotFound(name string) error {
	return notFound(fmt.Sprintf("Person %q not found", name))
}
