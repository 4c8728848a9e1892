package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/intake-processor/internal/models"
)

// RedisStore keeps records as JSON members of a sorted set scored by
// creation time.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(ctx context.Context, addr, password string, db int, key string) (*RedisStore, error) {
	if key == "" {
		key = "intake:patients"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Save(ctx context.Context, r models.PatientRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal patient: %w", err)
	}
	err = s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(r.CreatedAt.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}
	return nil
}

func (s *RedisStore) ListAll(ctx context.Context) ([]models.PatientRecord, error) {
	members, err := s.client.ZRevRange(ctx, s.key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return decodeRecords(members)
}

func decodeRecords(members []string) ([]models.PatientRecord, error) {
	out := make([]models.PatientRecord, 0, len(members))
	for _, m := range members {
		var r models.PatientRecord
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			return nil, fmt.Errorf("failed to decode patient: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
