package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock is a best-effort distributed lock keeping concurrent replicas
// from reconciling at the same time. The TTL bounds how long a crashed
// holder can block the others.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

func NewRunLock(client *redis.Client, key string, ttl time.Duration) *RunLock {
	return &RunLock{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// TryAcquire attempts to take the lock without blocking.
func (l *RunLock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// Release frees the lock if this instance still holds it. A lock that
// expired and was taken by another instance is left alone.
func (l *RunLock) Release(ctx context.Context) error {
	current, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if current != l.token {
		return nil
	}
	return l.client.Del(ctx, l.key).Err()
}
