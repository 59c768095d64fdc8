package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/associates-api/internal/associates"
)

// maxMergeAttempts bounds the optimistic retries of a merge that keeps losing WATCH races.
const maxMergeAttempts = 10

// ErrTooMuchContention is returned when a merge could not be committed after maxMergeAttempts.
var ErrTooMuchContention = errors.New("store: too much contention on document")

// insertScript adds a field only when the document exists and the field does not.
//
// KEYS[1] = document hash
// KEYS[2] = document marker
// ARGV[1] = field name
// ARGV[2] = encoded record
// Returns -1 when the document is missing, 0 when the field exists, 1 on success.
var insertScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 0 then
    return -1
end
return redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2])
`)

// removeScript deletes a field when the document exists.
//
// KEYS[1] = document hash
// KEYS[2] = document marker
// ARGV[1] = field name
// Returns -1 when the document is missing, otherwise the number of removed fields.
var removeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 0 then
    return -1
end
return redis.call("HDEL", KEYS[1], ARGV[1])
`)

// RedisStore is a Redis implementation of associates.Repository.
// The document is a hash with one entry per name; a separate marker key
// records that the document exists, since Redis drops empty hashes.
type RedisStore struct {
	client    *redis.Client
	key       string // hash holding name -> encoded record
	markerKey string
}

// NewRedisStore creates a Redis-backed document store for the given document.
func NewRedisStore(client *redis.Client, doc associates.DocumentKey) *RedisStore {
	return &RedisStore{
		client:    client,
		key:       doc.String(),
		markerKey: doc.String() + ":created",
	}
}

func (r *RedisStore) Fetch(ctx context.Context) (*associates.Snapshot, error) {
	var (
		existsCmd *redis.IntCmd
		fieldsCmd *redis.MapStringStringCmd
	)

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		existsCmd = pipe.Exists(ctx, r.markerKey)
		fieldsCmd = pipe.HGetAll(ctx, r.key)

		return nil
	})
	if err != nil {
		return nil, err
	}

	if existsCmd.Val() == 0 {
		return &associates.Snapshot{}, nil
	}

	raw := make(map[string]json.RawMessage, len(fieldsCmd.Val()))
	for name, value := range fieldsCmd.Val() {
		raw[name] = json.RawMessage(value)
	}

	doc, err := associates.DecodeDocument(raw)
	if err != nil {
		return nil, err
	}

	return &associates.Snapshot{Exists: true, Document: doc}, nil
}

func (r *RedisStore) InitializeEmpty(ctx context.Context) error {
	return r.client.SetNX(ctx, r.markerKey, "1", 0).Err()
}

func (r *RedisStore) ApplyFieldPatch(ctx context.Context, name string, patch associates.FieldPatch) error {
	switch patch.Op {
	case associates.PatchInsert:
		return r.insert(ctx, name, patch)
	case associates.PatchMerge:
		return r.merge(ctx, name, patch)
	case associates.PatchRemove:
		return r.remove(ctx, name)
	default:
		return fmt.Errorf("store: unsupported patch op %s", patch.Op)
	}
}

func (r *RedisStore) insert(ctx context.Context, name string, patch associates.FieldPatch) error {
	encoded, err := patch.Apply(nil, false)
	if err != nil {
		return err
	}

	res, err := insertScript.Run(ctx, r.client, []string{r.key, r.markerKey}, name, string(encoded)).Int64()
	if err != nil {
		return err
	}

	switch res {
	case -1:
		return associates.ErrDocumentMissing
	case 0:
		return associates.ErrFieldExists
	default:
		return nil
	}
}

func (r *RedisStore) remove(ctx context.Context, name string) error {
	res, err := removeScript.Run(ctx, r.client, []string{r.key, r.markerKey}, name).Int64()
	if err != nil {
		return err
	}

	switch res {
	case -1:
		return associates.ErrDocumentMissing
	case 0:
		return associates.ErrFieldMissing
	default:
		return nil
	}
}

// merge runs a read-modify-write of one field as an optimistic transaction.
// A concurrent write to the document aborts the transaction and it is retried.
func (r *RedisStore) merge(ctx context.Context, name string, patch associates.FieldPatch) error {
	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, r.markerKey).Result()
		if err != nil {
			return err
		}

		if exists == 0 {
			return associates.ErrDocumentMissing
		}

		present := true

		current, err := tx.HGet(ctx, r.key, name).Bytes()
		if errors.Is(err, redis.Nil) {
			present = false
		} else if err != nil {
			return err
		}

		next, err := patch.Apply(current, present)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, name, string(next))

			return nil
		})

		return err
	}

	for range maxMergeAttempts {
		err := r.client.Watch(ctx, txf, r.key, r.markerKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return ErrTooMuchContention
}

// Ping checks Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Compile-time check.
var _ associates.Repository = (*RedisStore)(nil)
