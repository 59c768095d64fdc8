package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/serroba/associates-api/internal/associates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

// testRepository runs the behaviour every associates.Repository must share.
// newRepo must return a repository whose document does not exist yet.
func testRepository(t *testing.T, newRepo func(t *testing.T) associates.Repository) {
	t.Helper()

	ctx := context.Background()

	t.Run("fetch reports a missing document without error", func(t *testing.T) {
		repo := newRepo(t)

		snap, err := repo.Fetch(ctx)

		require.NoError(t, err)
		assert.False(t, snap.Exists)
		assert.Empty(t, snap.Document)
	})

	t.Run("initialize creates an empty document and is idempotent", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.InitializeEmpty(ctx))
		require.NoError(t, repo.InitializeEmpty(ctx))

		snap, err := repo.Fetch(ctx)
		require.NoError(t, err)
		assert.True(t, snap.Exists)
		assert.Empty(t, snap.Document)
	})

	t.Run("patches fail when the document is missing", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.ApplyFieldPatch(ctx, "alice", associates.InsertPatch(associates.Record{Value: "friend"}))
		assert.ErrorIs(t, err, associates.ErrDocumentMissing)

		err = repo.ApplyFieldPatch(ctx, "alice", associates.MergePatch(ptr("x"), nil))
		assert.ErrorIs(t, err, associates.ErrDocumentMissing)

		err = repo.ApplyFieldPatch(ctx, "alice", associates.RemovePatch())
		assert.ErrorIs(t, err, associates.ErrDocumentMissing)
	})

	t.Run("insert writes a new field only once", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.InitializeEmpty(ctx))

		err := repo.ApplyFieldPatch(ctx, "alice", associates.InsertPatch(associates.Record{Value: "friend"}))
		require.NoError(t, err)

		err = repo.ApplyFieldPatch(ctx, "alice", associates.InsertPatch(associates.Record{Value: "other"}))
		require.ErrorIs(t, err, associates.ErrFieldExists)

		snap, err := repo.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, associates.Document{"alice": {Value: "friend", LikeCount: 0}}, snap.Document)
	})

	t.Run("merge keeps omitted sub-fields", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.InitializeEmpty(ctx))
		require.NoError(t, repo.ApplyFieldPatch(ctx, "alice",
			associates.InsertPatch(associates.Record{Value: "friend", LikeCount: 2})))

		require.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.MergePatch(nil, ptr(int64(5)))))

		snap, err := repo.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, associates.Record{Value: "friend", LikeCount: 5}, snap.Document["alice"])

		require.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.MergePatch(ptr("best friend"), nil)))

		snap, err = repo.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, associates.Record{Value: "best friend", LikeCount: 5}, snap.Document["alice"])
	})

	t.Run("merge of a missing field fails", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.InitializeEmpty(ctx))

		err := repo.ApplyFieldPatch(ctx, "bob", associates.MergePatch(ptr("x"), nil))

		assert.ErrorIs(t, err, associates.ErrFieldMissing)
	})

	t.Run("remove deletes the key and leaves other fields", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.InitializeEmpty(ctx))
		require.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.InsertPatch(associates.Record{Value: "a"})))
		require.NoError(t, repo.ApplyFieldPatch(ctx, "bob", associates.InsertPatch(associates.Record{Value: "b"})))

		require.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.RemovePatch()))

		snap, err := repo.Fetch(ctx)
		require.NoError(t, err)
		assert.True(t, snap.Exists)
		assert.NotContains(t, snap.Document, "alice")
		assert.Equal(t, associates.Record{Value: "b"}, snap.Document["bob"])

		err = repo.ApplyFieldPatch(ctx, "alice", associates.RemovePatch())
		assert.ErrorIs(t, err, associates.ErrFieldMissing)
	})

	t.Run("removing the last field keeps the document", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.InitializeEmpty(ctx))
		require.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.InsertPatch(associates.Record{Value: "a"})))
		require.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.RemovePatch()))

		snap, err := repo.Fetch(ctx)
		require.NoError(t, err)
		assert.True(t, snap.Exists)
		assert.Empty(t, snap.Document)
	})

	t.Run("concurrent inserts of one name succeed exactly once", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.InitializeEmpty(ctx))

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)

		for i := range 8 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				err := repo.ApplyFieldPatch(ctx, "alice",
					associates.InsertPatch(associates.Record{Value: fmt.Sprintf("v%d", i)}))

				mu.Lock()
				defer mu.Unlock()

				switch {
				case err == nil:
					succeeded++
				case assert.ErrorIs(t, err, associates.ErrFieldExists):
					conflicts++
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 7, conflicts)
	})

	t.Run("concurrent merges of different sub-fields are both applied", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.InitializeEmpty(ctx))
		require.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.InsertPatch(associates.Record{Value: "friend"})))

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()

			assert.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.MergePatch(ptr("best friend"), nil)))
		}()

		go func() {
			defer wg.Done()

			assert.NoError(t, repo.ApplyFieldPatch(ctx, "alice", associates.MergePatch(nil, ptr(int64(7)))))
		}()

		wg.Wait()

		snap, err := repo.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, associates.Record{Value: "best friend", LikeCount: 7}, snap.Document["alice"])
	})
}
