package vector

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "vector:text:"

// RedisStore persists records as JSON values in redis, one key per record.
// Similarity search scans the keyspace and re-ranks in process, which is
// fine for the corpus sizes this backend is meant for.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Upsert(ctx context.Context, rec TextRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal vector record: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(rec.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("store vector record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (TextRecord, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return TextRecord{}, ErrNotFound
		}
		return TextRecord{}, fmt.Errorf("load vector record: %w", err)
	}
	var rec TextRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return TextRecord{}, fmt.Errorf("decode vector record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete vector record: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]TextRecord, error) {
	var (
		records []TextRecord
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan vector records: %w", err)
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return nil, fmt.Errorf("load vector record %s: %w", key, err)
			}
			var rec TextRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil, fmt.Errorf("decode vector record %s: %w", key, err)
			}
			records = append(records, rec)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return records, nil
}

func (s *RedisStore) Search(ctx context.Context, query []float32, limit int) ([]SearchResult, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return rank(records, query, limit), nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
