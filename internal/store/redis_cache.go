package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/associates-api/internal/associates"
)

// cacheSetScript stores a snapshot only while the generation observed before
// the store read is still current.
//
// KEYS[1] = cached snapshot
// KEYS[2] = generation counter
// ARGV[1] = observed generation, empty when unset
// ARGV[2] = snapshot payload
// ARGV[3] = TTL in milliseconds
// Returns 1 when the snapshot was stored, 0 when a write invalidated it meanwhile.
var cacheSetScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or ""
if gen ~= ARGV[1] then
    return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// cacheInvalidateScript bumps the generation and drops the cached snapshot.
//
// KEYS[1] = cached snapshot
// KEYS[2] = generation counter
var cacheInvalidateScript = redis.NewScript(`
redis.call("INCR", KEYS[2])
redis.call("DEL", KEYS[1])
return 1
`)

// RedisCacheRepository wraps a Repository with Redis caching for reads.
// Writes go to the underlying store and then bump a generation counter and
// drop the cached snapshot. A read only populates the cache when no write
// bumped the generation since it started, so a read that raced a write can
// never put the pre-write snapshot back.
type RedisCacheRepository struct {
	store  associates.Repository
	client *redis.Client
	key    string
	genKey string
	ttl    time.Duration
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
func NewRedisCacheRepository(
	store associates.Repository, client *redis.Client, doc associates.DocumentKey, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		key:    "cache:" + doc.String(),
		genKey: "cache:" + doc.String() + ":gen",
		ttl:    ttl,
	}
}

type cachedSnapshot struct {
	Exists   bool                `json:"exists"`
	Document associates.Document `json:"document"`
}

// Fetch returns the cached snapshot if present, otherwise reads the store and caches the result.
func (r *RedisCacheRepository) Fetch(ctx context.Context) (*associates.Snapshot, error) {
	if snap, err := r.getFromCache(ctx); err == nil {
		return snap, nil
	}

	gen, genErr := r.generation(ctx)

	snap, err := r.store.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		r.cacheSnapshot(ctx, snap, gen)
	}

	return snap, nil
}

func (r *RedisCacheRepository) InitializeEmpty(ctx context.Context) error {
	if err := r.store.InitializeEmpty(ctx); err != nil {
		return err
	}

	r.invalidate(ctx)

	return nil
}

func (r *RedisCacheRepository) ApplyFieldPatch(ctx context.Context, name string, patch associates.FieldPatch) error {
	err := r.store.ApplyFieldPatch(ctx, name, patch)

	// Invalidate on failure too: a failed condition means the cached view was stale.
	r.invalidate(ctx)

	return err
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context) (*associates.Snapshot, error) {
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedSnapshot
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, err
	}

	return &associates.Snapshot{Exists: cached.Exists, Document: cached.Document}, nil
}

// generation returns the current generation, empty before the first write.
func (r *RedisCacheRepository) generation(ctx context.Context) (string, error) {
	gen, err := r.client.Get(ctx, r.genKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}

	return gen, err
}

func (r *RedisCacheRepository) cacheSnapshot(ctx context.Context, snap *associates.Snapshot, gen string) {
	payload, err := json.Marshal(cachedSnapshot{Exists: snap.Exists, Document: snap.Document})
	if err != nil {
		return
	}

	keys := []string{r.key, r.genKey}
	_ = cacheSetScript.Run(ctx, r.client, keys, gen, payload, r.ttl.Milliseconds()).Err()
}

func (r *RedisCacheRepository) invalidate(ctx context.Context) {
	_ = cacheInvalidateScript.Run(ctx, r.client, []string{r.key, r.genKey}).Err()
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

// Compile-time check.
var _ associates.Repository = (*RedisCacheRepository)(nil)
