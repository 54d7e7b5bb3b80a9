package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const draftKeyPrefix = "draft:booking:"

// RedisStore backs the draft store with Redis. TTL enforcement is native and
// single consumption rides on GETDEL, so no cleanup sweep is needed.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient dials Redis and verifies connectivity.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (s *RedisStore) Put(ctx context.Context, d *Draft, ttl time.Duration) error {
	cp := *d
	cp.ExpiresAt = time.Now().Add(ttl)
	data, err := json.Marshal(&cp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKeyPrefix+cp.BookingID, data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, bookingID string) (*Draft, error) {
	data, err := s.client.Get(ctx, draftKeyPrefix+bookingID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	return decodeDraft(data)
}

// Consume atomically fetches and deletes the draft. Concurrent callers for
// the same booking id see exactly one winner.
func (s *RedisStore) Consume(ctx context.Context, bookingID string) (*Draft, error) {
	data, err := s.client.GetDel(ctx, draftKeyPrefix+bookingID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	return decodeDraft(data)
}

func (s *RedisStore) Delete(ctx context.Context, bookingID string) error {
	return s.client.Del(ctx, draftKeyPrefix+bookingID).Err()
}

func decodeDraft(data []byte) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
