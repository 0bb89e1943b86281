package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "storybook:history"

// RedisStore keeps records as JSON in a capped Redis list.
type RedisStore struct {
	redisClient *redis.Client
	key         string
	max         int
}

func NewRedisStore(redisClient *redis.Client, key string, max int) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &RedisStore{redisClient: redisClient, key: key, max: max}
}

func (s *RedisStore) Save(ctx context.Context, rec Record) (Record, error) {
	rec = prepare(rec)
	item, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, item)
		pipe.LTrim(ctx, s.key, 0, int64(s.max-1))
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("saving history record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > s.max {
		limit = s.max
	}
	data, err := s.redisClient.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("listing history: %w", err)
	}
	records := make([]Record, 0, len(data))
	for _, item := range data {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Open returns a RedisStore when addr is set and reachable, and a
// MemoryStore otherwise.
func Open(ctx context.Context, addr, password string, db, max int) (Store, error) {
	if addr == "" {
		return NewMemoryStore(max), nil
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewRedisStore(redisClient, DefaultKey, max), nil
}
