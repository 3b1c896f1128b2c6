package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"persona-remixer-server/modules/common/apperr"
)

// RedisStore - 여러 인스턴스가 세션을 공유할 때 사용 (TTL 로 만료)
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisStore - Redis 세션 저장소 생성
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session TTL must be positive")
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (State, error) {
	raw, err := r.rdb.Get(ctx, keyPrefixSession+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, fmt.Errorf("%w: %s", apperr.ErrSessionNotFound, id)
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("failed to parse session %s: %w", id, err)
	}
	if st.RemixHistory == nil {
		st.RemixHistory = []string{}
	}
	return st, nil
}

func (r *RedisStore) Save(ctx context.Context, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", st.ID, err)
	}
	if err := r.rdb.Set(ctx, keyPrefixSession+st.ID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", st.ID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, keyPrefixSession+id, keyPrefixBusy+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) Acquire(ctx context.Context, id string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, keyPrefixBusy+id, "1", BusyLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire busy lock for %s: %w", id, err)
	}
	return ok, nil
}

func (r *RedisStore) Refresh(ctx context.Context, id string) error {
	if err := r.rdb.Expire(ctx, keyPrefixBusy+id, BusyLockTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh busy lock for %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) Release(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, keyPrefixBusy+id).Err(); err != nil {
		return fmt.Errorf("failed to release busy lock for %s: %w", id, err)
	}
	return nil
}
