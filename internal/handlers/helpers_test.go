package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/serroba/associates-api/internal/associates"
	"github.com/serroba/associates-api/internal/audit"
	"github.com/serroba/associates-api/internal/handlers"
	"github.com/serroba/associates-api/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("dial tcp 10.0.0.5:6379: connection refused")

type eventRecorder struct {
	mu     sync.Mutex
	events []*audit.ChangeEvent
	err    error
}

func (r *eventRecorder) publish(event *audit.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return r.err
}

func (r *eventRecorder) all() []*audit.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*audit.ChangeEvent(nil), r.events...)
}

func sequentialIDs() handlers.IDGenerator {
	var (
		mu sync.Mutex
		n  int
	)

	return func() string {
		mu.Lock()
		defer mu.Unlock()

		n++

		return "evt-" + strconv.Itoa(n)
	}
}

// failingRepository fails every call with errStoreDown.
type failingRepository struct{}

func (failingRepository) Fetch(context.Context) (*associates.Snapshot, error) {
	return nil, errStoreDown
}

func (failingRepository) InitializeEmpty(context.Context) error {
	return errStoreDown
}

func (failingRepository) ApplyFieldPatch(context.Context, string, associates.FieldPatch) error {
	return errStoreDown
}

func newTestAPI(t *testing.T, repo associates.Repository) (humatest.TestAPI, *eventRecorder) {
	t.Helper()

	handlers.UseErrorEnvelope()

	_, api := humatest.New(t)
	recorder := &eventRecorder{}

	handler := handlers.NewFriendsHandler(
		associates.NewMutator(repo),
		recorder.publish,
		sequentialIDs(),
		zap.NewNop(),
	)
	handlers.RegisterRoutes(api, handler)

	return api, recorder
}

func newMemoryAPI(t *testing.T) (humatest.TestAPI, *store.MemoryStore, *eventRecorder) {
	t.Helper()

	repo := store.NewMemoryStore()
	api, recorder := newTestAPI(t, repo)

	return api, repo, recorder
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, body []byte) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))

	return env
}

func decodeDocument(t *testing.T, env envelope) map[string]associates.Record {
	t.Helper()

	var doc map[string]associates.Record
	require.NoError(t, json.Unmarshal(env.Data, &doc))

	return doc
}

func newSeededStore() *store.MemoryStore {
	repo := store.NewMemoryStore()
	repo.Seed("bob", json.RawMessage(`{"value":"pal","likeCount":0}`))

	return repo
}
