package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

// RedisConfig contains configuration options for the Redis store
type RedisConfig struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "userhub:"
	KeyPrefix string
}

// RedisStore keeps records in a hash keyed by id. Ids come from INCR on a
// counter key, which Redis executes atomically, so several provider
// processes may share one store.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.Client == nil {
		return nil, mcperrors.StorageError("open", errors.New("redis client is required"))
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "userhub:"
	}
	return &RedisStore{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

func (s *RedisStore) counterKey() string { return s.keyPrefix + "next_id" }
func (s *RedisStore) recordsKey() string { return s.keyPrefix + "records" }

// List returns every record ordered by id.
func (s *RedisStore) List(ctx context.Context) ([]Record, error) {
	values, err := s.client.HGetAll(ctx, s.recordsKey()).Result()
	if err != nil {
		return nil, mcperrors.StorageError("list", err)
	}

	records := make([]Record, 0, len(values))
	for field, value := range values {
		var r Record
		if err := json.Unmarshal([]byte(value), &r); err != nil {
			return nil, mcperrors.StorageError("decode", fmt.Errorf("record %s: %w", field, err))
		}
		records = append(records, r)
	}
	sortByID(records)
	return records, nil
}

// Append reserves an id and writes the record.
func (s *RedisStore) Append(ctx context.Context, fields map[string]interface{}) (int, error) {
	id, err := s.client.Incr(ctx, s.counterKey()).Result()
	if err != nil {
		return 0, mcperrors.StorageError("append", err)
	}

	r := Record{ID: int(id), Fields: copyFields(fields)}
	data, err := json.Marshal(r)
	if err != nil {
		return 0, mcperrors.StorageError("encode", err)
	}
	if err := s.client.HSet(ctx, s.recordsKey(), strconv.Itoa(r.ID), data).Err(); err != nil {
		return 0, mcperrors.StorageError("append", err)
	}
	return r.ID, nil
}

// Get loads one record.
func (s *RedisStore) Get(ctx context.Context, id int) (Record, error) {
	value, err := s.client.HGet(ctx, s.recordsKey(), strconv.Itoa(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, mcperrors.RecordNotFound(id)
	}
	if err != nil {
		return Record{}, mcperrors.StorageError("get", err)
	}

	var r Record
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		return Record{}, mcperrors.StorageError("decode", err)
	}
	return r, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
