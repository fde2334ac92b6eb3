package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAttemptStore keeps the attempt log in one sorted set per
// (document, identity), scored by attempt time in milliseconds. Keys expire
// one window after the last failure.
type RedisAttemptStore struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisAttemptStore(rdb *redis.Client, window time.Duration) *RedisAttemptStore {
	return &RedisAttemptStore{rdb: rdb, window: window}
}

func attemptsKey(documentID uint, identity string) string {
	return fmt.Sprintf("access:attempts:%d:%s", documentID, identity)
}

func (s *RedisAttemptStore) CountSince(ctx context.Context, documentID uint, identity string, since time.Time) (int64, error) {
	return s.rdb.ZCount(ctx, attemptsKey(documentID, identity),
		strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
}

func (s *RedisAttemptStore) Record(ctx context.Context, documentID uint, identity string, at time.Time) error {
	key := attemptsKey(documentID, identity)
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: uuid.NewString()})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(at.Add(-s.window).UnixMilli(), 10))
	pipe.Expire(ctx, key, s.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisAttemptStore) Clear(ctx context.Context, documentID uint, identity string) error {
	return s.rdb.Del(ctx, attemptsKey(documentID, identity)).Err()
}
